// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
)

// MinSamplingPeriodMs is the shortest supported sampling period.
const MinSamplingPeriodMs = 100

// Validate checks cfg for values the module cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	if cfg.SamplingPeriodMs < MinSamplingPeriodMs {
		return fmt.Errorf("config: sampling_period_ms %d is below %d", cfg.SamplingPeriodMs, MinSamplingPeriodMs)
	}

	// ---- addresses ----

	for _, a := range []struct {
		name string
		v    uint16
	}{
		{"i2c.barometer_address", cfg.I2C.BarometerAddress},
		{"i2c.hygrometer_address", cfg.I2C.HygrometerAddress},
	} {
		if a.v == 0 || a.v > 0x7f {
			return fmt.Errorf("config: %s %#x is not a 7 bit address", a.name, a.v)
		}
	}
	if cfg.I2C.BarometerAddress == cfg.I2C.HygrometerAddress {
		return fmt.Errorf("config: barometer and hygrometer share address %#x", cfg.I2C.BarometerAddress)
	}
	if cfg.ShiftBus.SPIPort == "" && cfg.ShiftBus.BaseAddress == 0 {
		return errors.New("config: shift_bus needs base_address or spi_port")
	}
	if cfg.ShiftBus.BaseAddress%4 != 0 {
		return fmt.Errorf("config: shift_bus.base_address %#x is not word aligned", cfg.ShiftBus.BaseAddress)
	}
	if cfg.ShiftBus.Channel < 0 || cfg.ShiftBus.Channel > 1 {
		return fmt.Errorf("config: shift_bus.channel %d is not 0 or 1", cfg.ShiftBus.Channel)
	}
	if cfg.ShiftBus.MaxHz <= 0 {
		return fmt.Errorf("config: shift_bus.max_hz %d must be positive", cfg.ShiftBus.MaxHz)
	}
	if cfg.ShiftBus.SettleMs < 0 || cfg.ShiftBus.MaxSpins < 0 {
		return errors.New("config: shift_bus timing must not be negative")
	}

	// ---- broker ----

	if cfg.Broker.Endpoint == "" {
		return errors.New("config: broker.endpoint is required")
	}
	if cfg.Broker.Port <= 0 || cfg.Broker.Port > 65535 {
		return fmt.Errorf("config: broker.port %d out of range", cfg.Broker.Port)
	}
	if cfg.Broker.ClientID == "" {
		return errors.New("config: broker.client_id is required")
	}
	if cfg.Broker.ConnectTimeoutMs <= 0 || cfg.Broker.PublishTimeoutMs <= 0 {
		return errors.New("config: broker timeouts must be positive")
	}
	if cfg.Telemetry.MaxPayload <= 0 {
		return fmt.Errorf("config: telemetry.max_payload %d must be positive", cfg.Telemetry.MaxPayload)
	}
	if cfg.Telemetry.QoS < 0 || cfg.Telemetry.QoS > 2 {
		return fmt.Errorf("config: telemetry.qos %d is not 0, 1 or 2", cfg.Telemetry.QoS)
	}
	if cfg.Indicator.HalfPeriodMs < 0 {
		return errors.New("config: indicator.half_period_ms must not be negative")
	}

	// ---- poll bounds ----

	if cfg.Poll.IntervalMs <= 0 {
		return errors.New("config: poll.interval_ms must be positive")
	}
	for _, b := range []struct {
		name string
		v    int
	}{
		{"barometer_reset_attempts", cfg.Poll.BarometerResetAttempts},
		{"barometer_boot_attempts", cfg.Poll.BarometerBootAttempts},
		{"barometer_conversion_attempts", cfg.Poll.BarometerConversionAttempts},
		{"barometer_data_attempts", cfg.Poll.BarometerDataAttempts},
		{"hygrometer_boot_attempts", cfg.Poll.HygrometerBootAttempts},
		{"hygrometer_conversion_attempts", cfg.Poll.HygrometerConversionAttempts},
		{"hygrometer_data_attempts", cfg.Poll.HygrometerDataAttempts},
	} {
		if b.v <= 0 {
			return fmt.Errorf("config: poll.%s %d must be positive", b.name, b.v)
		}
	}
	return nil
}
