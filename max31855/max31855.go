// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package max31855 reads the Maxim MAX31855 thermocouple to digital
// converter.
//
// The chip is read only: every conversion is a 32 bit frame shifted out
// while clocking zeros in. The frame holds the thermocouple temperature in
// 0.25°C steps, the cold junction (internal) temperature in 0.0625°C steps
// and the fault flags.
//
// Datasheet
//
//	https://www.analog.com/media/en/technical-documentation/data-sheets/MAX31855.pdf
package max31855

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/remoteio/fault"
	"github.com/GermanBionicSystems/remoteio/shiftbus"
)

// Fault is a fault reported in the conversion frame.
type Fault int

const (
	NoFault Fault = iota
	OpenCircuit
	ShortToGND
	ShortToVCC
	// GenericFault is the summary bit, set along with any of the above.
	GenericFault
)

func (f Fault) String() string {
	switch f {
	case NoFault:
		return "No Fault"
	case OpenCircuit:
		return "Open Circuit"
	case ShortToGND:
		return "Short to GND"
	case ShortToVCC:
		return "Short to VCC"
	case GenericFault:
		return "Fault"
	}
	return fmt.Sprintf("Fault(%d)", int(f))
}

// FaultError is returned by Sense when the chip flagged a fault. No
// temperature is decoded then.
type FaultError struct {
	Fault Fault
	Frame [4]byte
}

func (e *FaultError) Error() string {
	return e.Fault.String()
}

// Reading is one conversion.
type Reading struct {
	Thermocouple physic.Temperature
	Internal     physic.Temperature
}

// Dev is a handle to a MAX31855 on a shift bus channel.
type Dev struct {
	t  shiftbus.Transactor
	ch shiftbus.Channel

	mu      sync.Mutex
	started bool
}

// New returns a driver for the chip selected by ch on t.
func New(t shiftbus.Transactor, ch shiftbus.Channel) *Dev {
	return &Dev{t: t, ch: ch}
}

// Start initializes the bus controller. The chip itself has no setup.
func (d *Dev) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.t.Init(ctx); err != nil {
		return fault.Retemplate(err, fault.BusError, "Thermocouple bus init failure")
	}
	d.started = true
	return nil
}

// Sense reads one conversion frame into r.
//
// Fault flags are checked in the order open circuit, short to GND, short to
// VCC, then the summary bit; the first one set is returned as a
// *FaultError.
func (d *Dev) Sense(ctx context.Context, r *Reading) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return fault.New(fault.NotStarted, fault.Failure, "Thermocouple not started")
	}
	rx, err := d.t.Execute(ctx, d.ch, make([]byte, 4))
	if err != nil {
		return fault.Retemplate(err, fault.BusError, "SPI Transaction failure")
	}
	var frame [4]byte
	copy(frame[:], rx)
	if f := checkFault(frame); f != NoFault {
		return &FaultError{Fault: f, Frame: frame}
	}
	r.Thermocouple, r.Internal = decode(frame)
	return nil
}

// Stop releases the driver.
func (d *Dev) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("max31855{%s}", d.ch)
}

func checkFault(b [4]byte) Fault {
	switch {
	case b[3]&0x01 != 0:
		return OpenCircuit
	case b[3]&0x02 != 0:
		return ShortToGND
	case b[3]&0x04 != 0:
		return ShortToVCC
	case b[1]&0x01 != 0:
		return GenericFault
	}
	return NoFault
}

// decode extracts the 14 bit thermocouple field D[31:18] and the 12 bit
// internal field D[15:4], both two's complement.
func decode(b [4]byte) (thermocouple, internal physic.Temperature) {
	tc := int32(int16(uint16(b[0])<<8|uint16(b[1])) >> 2)
	in := int32(int16(uint16(b[2])<<8|uint16(b[3])) >> 4)
	thermocouple = physic.ZeroCelsius + physic.Temperature(tc)*250*physic.MilliKelvin
	internal = physic.ZeroCelsius + physic.Temperature(in)*62500*physic.MicroKelvin
	return thermocouple, internal
}
