// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the start time settings of the remote I/O module.
//
// Every field has a default; a YAML file only needs to name what it
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full module configuration.
type Config struct {
	SamplingPeriodMs int             `yaml:"sampling_period_ms"`
	I2C              I2CConfig       `yaml:"i2c"`
	ShiftBus         ShiftBusConfig  `yaml:"shift_bus"`
	Indicator        IndicatorConfig `yaml:"indicator"`
	Broker           BrokerConfig    `yaml:"broker"`
	Telemetry        TelemetryConfig `yaml:"telemetry"`
	Poll             PollConfig      `yaml:"poll"`
}

// ---- REGISTER BUS ----

type I2CConfig struct {
	// Bus is the i2creg name; empty picks the first bus.
	Bus               string `yaml:"bus"`
	BarometerAddress  uint16 `yaml:"barometer_address"`
	HygrometerAddress uint16 `yaml:"hygrometer_address"`
}

// ---- SHIFT BUS ----

type ShiftBusConfig struct {
	// BaseAddress is the physical address of the AXI Quad SPI register
	// block. It is used when SPIPort is empty.
	BaseAddress uint64 `yaml:"base_address"`
	// SPIPort is an spireg name, used instead of the mapped controller.
	SPIPort  string `yaml:"spi_port"`
	MaxHz    int64  `yaml:"max_hz"`
	Channel  int    `yaml:"channel"`
	SettleMs int    `yaml:"settle_ms"`
	// MaxSpins bounds each busy wait; 0 spins forever.
	MaxSpins int `yaml:"max_spins"`
}

// ---- INDICATOR ----

type IndicatorConfig struct {
	// Pin is the gpioreg name of the LED; empty draws it on the console.
	Pin          string `yaml:"pin"`
	HalfPeriodMs int    `yaml:"half_period_ms"`
}

// ---- BROKER ----

type BrokerConfig struct {
	Endpoint         string `yaml:"endpoint"`
	Port             int    `yaml:"port"`
	TLS              bool   `yaml:"tls"`
	ClientID         string `yaml:"client_id"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
	PublishTimeoutMs int    `yaml:"publish_timeout_ms"`
}

// ---- TELEMETRY ----

type TelemetryConfig struct {
	MaxPayload int `yaml:"max_payload"`
	QoS        int `yaml:"qos"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs                   int `yaml:"interval_ms"`
	BarometerResetAttempts       int `yaml:"barometer_reset_attempts"`
	BarometerBootAttempts        int `yaml:"barometer_boot_attempts"`
	BarometerConversionAttempts  int `yaml:"barometer_conversion_attempts"`
	BarometerDataAttempts        int `yaml:"barometer_data_attempts"`
	HygrometerBootAttempts       int `yaml:"hygrometer_boot_attempts"`
	HygrometerConversionAttempts int `yaml:"hygrometer_conversion_attempts"`
	HygrometerDataAttempts       int `yaml:"hygrometer_data_attempts"`
}

// DefaultEndpoint is the broker host used when the configuration names
// none.
const DefaultEndpoint = "localhost"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SamplingPeriodMs: 500,
		I2C: I2CConfig{
			BarometerAddress:  0x5d,
			HygrometerAddress: 0x5f,
		},
		ShiftBus: ShiftBusConfig{
			BaseAddress: 0x41e00000,
			MaxHz:       5000000,
			SettleMs:    1,
		},
		Indicator: IndicatorConfig{
			Pin:          "47",
			HalfPeriodMs: 500,
		},
		Broker: BrokerConfig{
			Endpoint:         DefaultEndpoint,
			Port:             8883,
			TLS:              true,
			ClientID:         "MQTTUZed",
			ConnectTimeoutMs: 12000,
			PublishTimeoutMs: 10000,
		},
		Telemetry: TelemetryConfig{
			MaxPayload: 256,
			QoS:        1,
		},
		Poll: PollConfig{
			IntervalMs:                   1,
			BarometerResetAttempts:       100,
			BarometerBootAttempts:        100,
			BarometerConversionAttempts:  50,
			BarometerDataAttempts:        50,
			HygrometerBootAttempts:       1000,
			HygrometerConversionAttempts: 10000,
			HygrometerDataAttempts:       50,
		},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r over the defaults. Unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return buf.Bytes(), nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// SamplingPeriod is the steady state cycle period.
func (c *Config) SamplingPeriod() time.Duration { return ms(c.SamplingPeriodMs) }

// Settle is the shift bus settling delay.
func (s *ShiftBusConfig) Settle() time.Duration { return ms(s.SettleMs) }

// HalfPeriod is the LED on and off time per blink.
func (i *IndicatorConfig) HalfPeriod() time.Duration { return ms(i.HalfPeriodMs) }

// ConnectTimeout bounds the broker connection.
func (b *BrokerConfig) ConnectTimeout() time.Duration { return ms(b.ConnectTimeoutMs) }

// PublishTimeout bounds each publish acknowledgement.
func (b *BrokerConfig) PublishTimeout() time.Duration { return ms(b.PublishTimeoutMs) }

// Interval is the delay between poll attempts.
func (p *PollConfig) Interval() time.Duration { return ms(p.IntervalMs) }
