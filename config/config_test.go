// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func valid() *Config {
	c := Default()
	c.Broker.Endpoint = "broker.example.com"
	return c
}

func TestParseOverrides(t *testing.T) {
	const doc = `
sampling_period_ms: 1000
i2c:
  barometer_address: 0x5c
broker:
  endpoint: broker.example.com
  tls: false
  port: 1883
indicator:
  pin: ""
`
	got, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	want := valid()
	want.SamplingPeriodMs = 1000
	want.I2C.BarometerAddress = 0x5c
	want.Broker.TLS = false
	want.Broker.Port = 1883
	want.Indicator.Pin = ""
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if err := Validate(got); err != nil {
		t.Error(err)
	}
	if got.SamplingPeriod() != time.Second {
		t.Errorf("period=%s", got.SamplingPeriod())
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUnknownKey(t *testing.T) {
	if _, err := Parse(strings.NewReader("sampling_period: 10\n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad(t *testing.T) {
	want := valid()
	want.Poll.BarometerDataAttempts = 7
	b, err := Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "remoteio.yaml")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(valid()); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"period", func(c *Config) { c.SamplingPeriodMs = 99 }, "sampling_period_ms"},
		{"barometer address", func(c *Config) { c.I2C.BarometerAddress = 0 }, "barometer_address"},
		{"hygrometer address", func(c *Config) { c.I2C.HygrometerAddress = 0x80 }, "hygrometer_address"},
		{"shared address", func(c *Config) { c.I2C.HygrometerAddress = 0x5d }, "share"},
		{"no shift bus", func(c *Config) { c.ShiftBus.BaseAddress = 0 }, "shift_bus"},
		{"channel", func(c *Config) { c.ShiftBus.Channel = 2 }, "channel"},
		{"endpoint", func(c *Config) { c.Broker.Endpoint = "" }, "endpoint"},
		{"payload", func(c *Config) { c.Telemetry.MaxPayload = 0 }, "max_payload"},
		{"qos", func(c *Config) { c.Telemetry.QoS = 3 }, "qos"},
		{"poll", func(c *Config) { c.Poll.HygrometerBootAttempts = 0 }, "hygrometer_boot_attempts"},
		{"poll interval", func(c *Config) { c.Poll.IntervalMs = 0 }, "interval_ms"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := Validate(c)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v expected mention of %q", err, tc.want)
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaultValid(t *testing.T) {
	c := Default()
	if err := Validate(c); err != nil {
		t.Fatal(err)
	}
	if c.Broker.Endpoint != DefaultEndpoint {
		t.Fatalf("endpoint=%q", c.Broker.Endpoint)
	}
}

func TestValidateSPIPort(t *testing.T) {
	c := valid()
	c.ShiftBus.BaseAddress = 0
	c.ShiftBus.SPIPort = "SPI0.0"
	if err := Validate(c); err != nil {
		t.Fatal(err)
	}
}
