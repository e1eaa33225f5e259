// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hts221 provides a driver for the ST HTS221 relative humidity and
// temperature sensor, used in one-shot mode.
//
// Readings are converted with the two point factory calibration stored in
// the device, as described in TN1218.
//
// Datasheet
//
//	https://www.st.com/resource/en/datasheet/hts221.pdf
//
// Interpreting humidity and temperature readings, TN1218
//
//	https://www.st.com/resource/en/technical_note/tn1218-interpreting-humidity-and-temperature-readings-in-the-hts221-digital-humidity-sensor-stmicroelectronics.pdf
package hts221

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

// DefaultAddress is the fixed bus address of the HTS221.
const DefaultAddress uint16 = 0x5f

const (
	regWhoAmI byte = 0x0f
	regCtrl1  byte = 0x20
	regCtrl2  byte = 0x21
	regStatus byte = 0x27
	regCalib0 byte = 0x30

	ctrl1PD      byte = 0x80
	ctrl2Boot    byte = 0x80
	ctrl2OneShot byte = 0x01

	statusHDA byte = 0x02
	statusTDA byte = 0x01

	chipID byte = 0xbc
)

// State is the position of the driver in its start and sample sequence.
type State int

const (
	Uninitialized State = iota
	Verifying
	Booting
	Calibrating
	PowerUp
	Ready
	Triggering
	WaitingDataReady
	Decoding
)

var stateNames = [...]string{
	"Uninitialized", "Verifying", "Booting", "Calibrating", "PowerUp", "Ready",
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
	BootAttempts       int
	ConversionAttempts int
	DataAttempts       int
	PowerUpDelay       time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	PollInterval:       time.Millisecond,
	BootAttempts:       1000,
	ConversionAttempts: 10000,
	DataAttempts:       50,
	PowerUpDelay:       time.Millisecond,
}

// Calibration is the raw content of the calibration registers 0x30 to 0x3F.
type Calibration [16]byte

// Reading is one relative humidity and temperature sample.
type Reading struct {
	Humidity    physic.RelativeHumidity
	Temperature physic.Temperature
}

// Dev is a handle to a HTS221.
type Dev struct {
	d    regbus.Dev
	opts Opts

	mu    sync.Mutex
	state State
	calib Calibration
}

// New returns a driver for the device at addr on bus. The device is not
// touched until Start.
func New(bus regbus.Registers, addr uint16, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Dev{d: regbus.Dev{Bus: bus, Addr: addr}, opts: *opts}
}

// Start verifies the chip identity, reboots it, reads its calibration and
// powers it up.
func (d *Dev) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Verifying
	if err := d.start(ctx); err != nil {
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
		return fault.New(fault.UnexpectedDevice, int(id), "HTS221 WHO_AM_I = %08x != BC")
	}

	d.state = Booting
	if err := d.d.WriteRegister(regCtrl2, ctrl2Boot); err != nil {
		return fault.Retemplate(err, fault.BusError, "WriteRegister(CTRL_REG2::BOOT) -> %08x")
	}
	if err := d.waitClear(ctx, ctrl2Boot, d.opts.BootAttempts); err != nil {
		return pollError(err, fault.BootTimeout, "Hygrometer boot timeout")
	}

	d.state = Calibrating
	var c Calibration
	if err := d.d.ReadRegisters(regCalib0, c[:]); err != nil {
		return fault.Retemplate(err, fault.BusError, "ReadRegisters(16@CALIB_0) -> %08x")
	}
	d.calib = c

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
		return fault.New(fault.NotStarted, fault.Failure, "Hygrometer not started")
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
	var buf [5]byte
	const ready = statusHDA | statusTDA
	err := poll.Until(ctx, d.opts.DataAttempts, d.opts.PollInterval, func() (bool, error) {
		if err := d.d.ReadRegisters(regStatus, buf[:]); err != nil {
			return false, fault.Retemplate(err, fault.BusError, "ReadRegisters(5@STATUS_REG) -> %08x")
		}
		return buf[0]&ready == ready, nil
	})
	if err != nil {
		return pollError(err, fault.DataNotReady, "Timed out waiting for H_DA and T_DA")
	}

	d.state = Decoding
	h, t, err := d.calib.decode(int16(uint16(buf[1])|uint16(buf[2])<<8), int16(uint16(buf[3])|uint16(buf[4])<<8))
	if err != nil {
		return err
	}
	r.Humidity = h
	r.Temperature = t
	return nil
}

// Calibration returns the calibration read by Start.
func (d *Dev) Calibration() Calibration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calib
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
	return fmt.Sprintf("hts221{%s}", &d.d)
}

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

func (c *Calibration) int16At(i int) int16 {
	return int16(uint16(c[i]) | uint16(c[i+1])<<8)
}

// decode interpolates the raw humidity and temperature outputs between the
// two calibration points. Humidity is clamped to 0..100%rH.
func (c *Calibration) decode(hOut, tOut int16) (physic.RelativeHumidity, physic.Temperature, error) {
	h0 := float64(c[0]) / 2
	h1 := float64(c[1]) / 2
	t0 := float64(uint16(c[2])|uint16(c[5]&0x03)<<8) / 8
	t1 := float64(uint16(c[3])|uint16(c[5]&0x0c)<<6) / 8
	h0Out := c.int16At(6)
	h1Out := c.int16At(10)
	t0Out := c.int16At(12)
	t1Out := c.int16At(14)
	if h0Out == h1Out {
		return 0, 0, fault.New(fault.InvalidCalibration, fault.Failure, "HTS221 calibration H0_T0_OUT == H1_T0_OUT")
	}
	if t0Out == t1Out {
		return 0, 0, fault.New(fault.InvalidCalibration, fault.Failure, "HTS221 calibration T0_OUT == T1_OUT")
	}

	rh := h0 + (h1-h0)*float64(int32(hOut)-int32(h0Out))/float64(int32(h1Out)-int32(h0Out))
	if rh < 0 {
		rh = 0
	} else if rh > 100 {
		rh = 100
	}
	deg := t0 + (t1-t0)*float64(int32(tOut)-int32(t0Out))/float64(int32(t1Out)-int32(t0Out))

	h := physic.RelativeHumidity(rh*float64(physic.PercentRH) + 0.5)
	t := physic.ZeroCelsius + physic.Temperature(deg*float64(physic.Kelvin))
	return h, t, nil
}
