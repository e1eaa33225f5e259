// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package indicator drives the single status LED.
//
// The LED is blinked a few times on each lifecycle step and once for every
// message that could not be published.
package indicator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Output is the line the LED is wired to. gpio.PinOut satisfies it.
type Output interface {
	Out(l gpio.Level) error
}

// Opts holds the blink timing.
type Opts struct {
	// HalfPeriod is how long the LED stays on, then off, per blink.
	HalfPeriod time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	HalfPeriod: 500 * time.Millisecond,
}

// Dev is a status LED.
type Dev struct {
	out  Output
	opts Opts

	mu    sync.Mutex
	ready bool
}

// New returns a Dev on out. It stays dark until Init succeeds.
func New(out Output, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Dev{out: out, opts: *opts}
}

// Init turns the LED off and enables blinking.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.out == nil {
		return errors.New("indicator: no output")
	}
	if err := d.out.Out(gpio.Low); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	d.ready = true
	return nil
}

// Blink turns the LED on then off count times and leaves it on if finalOn
// is set. It blocks for count full periods. It does nothing before Init.
func (d *Dev) Blink(count int, finalOn bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return nil
	}
	for i := 0; i < count; i++ {
		if err := d.set(gpio.High); err != nil {
			return err
		}
		if err := d.set(gpio.Low); err != nil {
			return err
		}
	}
	if finalOn {
		return d.out.Out(gpio.High)
	}
	return nil
}

func (d *Dev) set(l gpio.Level) error {
	if err := d.out.Out(l); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	time.Sleep(d.opts.HalfPeriod)
	return nil
}

func (d *Dev) String() string {
	if s, ok := d.out.(fmt.Stringer); ok {
		return "indicator{" + s.String() + "}"
	}
	return "indicator"
}
