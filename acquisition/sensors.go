// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package acquisition

import (
	"context"

	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/remoteio/hts221"
	"github.com/GermanBionicSystems/remoteio/lps25hb"
	"github.com/GermanBionicSystems/remoteio/max31855"
	"github.com/GermanBionicSystems/remoteio/telemetry"
)

// sensor is one device started at bring-up and sampled every period.
//
// sample publishes its readings itself; a returned error is reported on
// status by the caller.
type sensor interface {
	status() telemetry.Topic
	// summary is published after the detailed message of a failed start.
	summary() string
	start(ctx context.Context, p *telemetry.Publisher) error
	sample(ctx context.Context, p *telemetry.Publisher) error
	stop() error
}

type barometer struct {
	d *lps25hb.Dev
}

func (b *barometer) status() telemetry.Topic { return telemetry.BarometerStatus }
func (b *barometer) summary() string         { return "Barometer start -> %08x" }

func (b *barometer) start(ctx context.Context, p *telemetry.Publisher) error {
	if err := b.d.Start(ctx); err != nil {
		return err
	}
	p.Publishf(telemetry.BarometerStatus, "Barometer started")
	return nil
}

func (b *barometer) sample(ctx context.Context, p *telemetry.Publisher) error {
	var r lps25hb.Reading
	if err := b.d.Sense(ctx, &r); err != nil {
		return err
	}
	p.Publishf(telemetry.BarometerPressure, "%.2f hPa", hectopascal(r.Pressure))
	p.Publishf(telemetry.BarometerTemperature, "%.2f C", celsius(r.Temperature))
	return nil
}

func (b *barometer) stop() error { return b.d.Stop() }

type thermocouple struct {
	d *max31855.Dev
}

func (t *thermocouple) status() telemetry.Topic { return telemetry.ThermocoupleStatus }
func (t *thermocouple) summary() string         { return "Thermocouple start -> %08x" }

func (t *thermocouple) start(ctx context.Context, p *telemetry.Publisher) error {
	if err := t.d.Start(ctx); err != nil {
		return err
	}
	p.Publishf(telemetry.ThermocoupleStatus, "PL Thermocouple started")
	return nil
}

func (t *thermocouple) sample(ctx context.Context, p *telemetry.Publisher) error {
	var r max31855.Reading
	if err := t.d.Sense(ctx, &r); err != nil {
		return err
	}
	p.Publishf(telemetry.ThermocoupleBoardTemperature, "%.1f C", celsius(r.Internal))
	p.Publishf(telemetry.ThermocoupleTemperature, "%.1f C", celsius(r.Thermocouple))
	return nil
}

func (t *thermocouple) stop() error { return t.d.Stop() }

type hygrometer struct {
	d *hts221.Dev
}

func (h *hygrometer) status() telemetry.Topic { return telemetry.HygrometerStatus }
func (h *hygrometer) summary() string         { return "Hygrometer start -> %08x" }

func (h *hygrometer) start(ctx context.Context, p *telemetry.Publisher) error {
	if err := h.d.Start(ctx); err != nil {
		return err
	}
	p.Publishf(telemetry.HygrometerStatus, "Hygrometer started")
	return nil
}

func (h *hygrometer) sample(ctx context.Context, p *telemetry.Publisher) error {
	var r hts221.Reading
	if err := h.d.Sense(ctx, &r); err != nil {
		return err
	}
	p.Publishf(telemetry.HygrometerHumidity, "%.2f %%rH", percentRH(r.Humidity))
	p.Publishf(telemetry.HygrometerTemperature, "%.2f C", celsius(r.Temperature))
	return nil
}

func (h *hygrometer) stop() error { return h.d.Stop() }

func hectopascal(p physic.Pressure) float64 {
	return float64(p) / float64(100*physic.Pascal)
}

func celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Kelvin)
}

func percentRH(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH)
}
