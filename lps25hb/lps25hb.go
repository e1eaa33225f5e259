// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lps25hb provides a driver for the ST LPS25HB barometer, used in
// one-shot mode.
//
// Datasheet
//
//	https://www.st.com/resource/en/datasheet/lps25hb.pdf
//
// Interpreting pressure and temperature readings, TN1228
//
//	https://www.st.com/resource/en/technical_note/tn1228-how-to-interpret-pressure-and-temperature-readings-in-the-lps25hb-pressure-sensor-stmicroelectronics.pdf
package lps25hb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/remoteio/fault"
	"github.com/GermanBionicSystems/remoteio/poll"
	"github.com/GermanBionicSystems/remoteio/regbus"
)

// DefaultAddress is the bus address with SA0 pulled high.
const DefaultAddress uint16 = 0x5d

const (
	regWhoAmI byte = 0x0f
	regCtrl1  byte = 0x20
	regCtrl2  byte = 0x21
	regStatus byte = 0x27

	ctrl1PD      byte = 0x80
	ctrl2Boot    byte = 0x80
	ctrl2SWReset byte = 0x04
	ctrl2OneShot byte = 0x01

	statusPDA byte = 0x02
	statusTDA byte = 0x01

	chipID byte = 0xbd
)

// State is the position of the driver in its start and sample sequence.
type State int

const (
	Uninitialized State = iota
	Verifying
	Resetting
	Booting
	PowerUp
	Ready
	Triggering
	WaitingDataReady
	Decoding
)

var stateNames = [...]string{
	"Uninitialized", "Verifying", "Resetting", "Booting", "PowerUp", "Ready",
	"Triggering", "WaitingDataReady", "Decoding",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Opts holds the poll bounds. Each bound is a number of attempts spaced by
// PollInterval.
type Opts struct {
	PollInterval       time.Duration
	ResetAttempts      int
	BootAttempts       int
	ConversionAttempts int
	DataAttempts       int
	// PowerUpDelay is waited after powering the device up.
	PowerUpDelay time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	PollInterval:       time.Millisecond,
	ResetAttempts:      100,
	BootAttempts:       100,
	ConversionAttempts: 50,
	DataAttempts:       50,
	PowerUpDelay:       time.Millisecond,
}

// Reading is one pressure and temperature sample.
type Reading struct {
	Pressure    physic.Pressure
	Temperature physic.Temperature
}

// Dev is a handle to a LPS25HB.
type Dev struct {
	d    regbus.Dev
	opts Opts

	mu    sync.Mutex
	state State
}

// New returns a driver for the device at addr on bus. The device is not
// touched until Start.
func New(bus regbus.Registers, addr uint16, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Dev{d: regbus.Dev{Bus: bus, Addr: addr}, opts: *opts}
}

// Start verifies the chip identity, resets and boots it, then powers it up.
func (d *Dev) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Verifying
	err := d.start(ctx)
	if err != nil {
		d.state = Uninitialized
		return err
	}
	d.state = Ready
	return nil
}

func (d *Dev) start(ctx context.Context) error {
	id, err := d.d.ReadRegister(regWhoAmI)
	if err != nil {
		return fault.Retemplate(err, fault.BusError, "ReadRegister(WHO_AM_I) -> %08x")
	}
	if id != chipID {
		return fault.New(fault.UnexpectedDevice, int(id), "LPS25HB WHO_AM_I = %08x != BD")
	}

	d.state = Resetting
	if err := d.d.WriteRegister(regCtrl2, ctrl2SWReset); err != nil {
		return fault.Retemplate(err, fault.BusError, "WriteRegister(CTRL_REG2::SWRESET) -> %08x")
	}
	if err := d.waitClear(ctx, ctrl2SWReset, d.opts.ResetAttempts); err != nil {
		return pollError(err, fault.ResetTimeout, "Barometer software reset timeout")
	}

	d.state = Booting
	if err := d.d.WriteRegister(regCtrl2, ctrl2Boot); err != nil {
		return fault.Retemplate(err, fault.BusError, "WriteRegister(CTRL_REG2::BOOT) -> %08x")
	}
	if err := d.waitClear(ctx, ctrl2Boot, d.opts.BootAttempts); err != nil {
		return pollError(err, fault.BootTimeout, "Barometer boot timeout")
	}

	d.state = PowerUp
	if err := d.d.WriteRegister(regCtrl1, ctrl1PD); err != nil {
		return fault.Retemplate(err, fault.BusError, "WriteRegister(CTRL_REG1::PD) -> %08x")
	}
	return poll.Sleep(ctx, d.opts.PowerUpDelay)
}

// Sense triggers a one-shot conversion and decodes the result into r.
func (d *Dev) Sense(ctx context.Context, r *Reading) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Ready {
		return fault.New(fault.NotStarted, fault.Failure, "Barometer not started")
	}
	defer func() { d.state = Ready }()

	d.state = Triggering
	if err := d.d.WriteRegister(regCtrl2, ctrl2OneShot); err != nil {
		return fault.Retemplate(err, fault.BusError, "WriteRegister(CTRL_REG2::ONE_SHOT) -> %08x")
	}
	if err := d.waitClear(ctx, ctrl2OneShot, d.opts.ConversionAttempts); err != nil {
		return pollError(err, fault.ConversionTimeout, "Timed out waiting for ONE_SHOT")
	}

	d.state = WaitingDataReady
	var buf [6]byte
	const ready = statusPDA | statusTDA
	err := poll.Until(ctx, d.opts.DataAttempts, d.opts.PollInterval, func() (bool, error) {
		if err := d.d.ReadRegisters(regStatus, buf[:]); err != nil {
			return false, fault.Retemplate(err, fault.BusError, "ReadRegisters(6@STATUS_REG) -> %08x")
		}
		return buf[0]&ready == ready, nil
	})
	if err != nil {
		return pollError(err, fault.DataNotReady, "Timed out waiting for P_DA and T_DA")
	}

	d.state = Decoding
	r.Pressure = decodePressure(buf[1:4])
	r.Temperature = decodeTemperature(buf[4:6])
	return nil
}

// Stop releases the driver. The device is left as is.
func (d *Dev) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Uninitialized
	return nil
}

// State returns the current driver state.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dev) String() string {
	return fmt.Sprintf("lps25hb{%s}", &d.d)
}

// waitClear polls CTRL_REG2 until mask self clears.
func (d *Dev) waitClear(ctx context.Context, mask byte, attempts int) error {
	return poll.Until(ctx, attempts, d.opts.PollInterval, func() (bool, error) {
		v, err := d.d.ReadRegister(regCtrl2)
		if err != nil {
			return false, fault.Retemplate(err, fault.BusError, "ReadRegister(CTRL_REG2) -> %08x")
		}
		return v&mask == 0, nil
	})
}

func pollError(err error, k fault.Kind, msg string) error {
	if errors.Is(err, poll.ErrExhausted) {
		return fault.New(k, fault.Failure, msg)
	}
	return err
}

// decodePressure converts the 24 bit two's complement little endian
// PRESS_OUT registers. One hPa is 4096 LSB.
func decodePressure(b []byte) physic.Pressure {
	raw := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
	return physic.Pressure(raw) * 100 * physic.Pascal / 4096
}

// decodeTemperature converts the 16 bit two's complement little endian
// TEMP_OUT registers: 42.5°C + raw/480.
func decodeTemperature(b []byte) physic.Temperature {
	raw := int16(uint16(b[0]) | uint16(b[1])<<8)
	return physic.ZeroCelsius + 42500*physic.MilliKelvin + physic.Temperature(raw)*physic.Kelvin/480
}
