// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package regbus implements register access on a shared multi-drop bus.
//
// Devices on the bus expose byte registers. A read sends the first register
// number with a repeated start, then receives the data with a stop. A write
// sends the register number followed by the data. Setting AutoIncrement on
// the register number makes the device advance to the next register for
// each byte of a multi-byte transfer.
//
// Each bus phase is guarded by a Token. A whole register transaction also
// runs inside the bus critical section so that the two phases of a read are
// not split by another bus user.
package regbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/remoteio/fault"
)

// AutoIncrement is the register address bit enabling multi-byte transfers.
const AutoIncrement byte = 0x80

// Condition is the bus condition ending a controller transfer.
type Condition int

const (
	// Stop releases the bus after the transfer.
	Stop Condition = iota
	// RepeatedStart keeps the bus for a following transfer.
	RepeatedStart
)

func (c Condition) String() string {
	if c == RepeatedStart {
		return "RepeatedStart"
	}
	return "Stop"
}

// Controller is the bus controller hardware abstraction.
//
// Send and Recv return the number of bytes actually transferred.
type Controller interface {
	Start() error
	Stop() error
	Send(addr uint16, w []byte, c Condition) (int, error)
	Recv(addr uint16, r []byte, c Condition) (int, error)
}

// Registers is register level access to the devices of a bus.
type Registers interface {
	ReadRegisters(addr uint16, reg byte, r []byte) error
	ReadRegister(addr uint16, reg byte) (byte, error)
	WriteRegisters(addr uint16, w []byte) error
	WriteRegister(addr uint16, reg, value byte) error
}

var errNotStarted = errors.New("regbus: controller not started")

// Bus is a shared register bus.
type Bus struct {
	ctrl  Controller
	token *Token

	// critical spans a whole register transaction.
	critical sync.Mutex
	started  bool
}

// New returns a Bus driving ctrl. token is owned by the caller, which must
// keep it open for as long as the Bus is used.
func New(ctrl Controller, token *Token) *Bus {
	return &Bus{ctrl: ctrl, token: token}
}

// Start brings the controller up.
func (b *Bus) Start() error {
	b.critical.Lock()
	defer b.critical.Unlock()
	b.token.Take()
	defer b.token.Give()
	if err := b.ctrl.Start(); err != nil {
		return fault.Wrap(fault.BusError, fault.Failure, "regbus: controller start -> %08x", err)
	}
	b.started = true
	return nil
}

// Stop brings a started controller down. It is a no-op otherwise.
func (b *Bus) Stop() error {
	b.critical.Lock()
	defer b.critical.Unlock()
	if !b.started {
		return nil
	}
	b.token.Take()
	defer b.token.Give()
	b.started = false
	return b.ctrl.Stop()
}

// Started reports whether Start succeeded and Stop was not called since.
func (b *Bus) Started() bool {
	b.critical.Lock()
	defer b.critical.Unlock()
	return b.started
}

// ReadRegisters reads len(r) consecutive registers starting at reg.
//
// r is left untouched on failure.
func (b *Bus) ReadRegisters(addr uint16, reg byte, r []byte) error {
	if len(r) > 1 {
		reg |= AutoIncrement
	}
	b.critical.Lock()
	defer b.critical.Unlock()
	if !b.started {
		return fault.Wrap(fault.BusError, 0, "ReadRegisters -> %08x", errNotStarted)
	}
	if err := b.send(addr, []byte{reg}, RepeatedStart, "ReadRegisters::Send(Addr) -> %08x"); err != nil {
		return err
	}
	tmp := make([]byte, len(r))
	if err := b.recv(addr, tmp, "ReadRegisters::Recv(Data) -> %08x"); err != nil {
		return err
	}
	copy(r, tmp)
	return nil
}

// ReadRegister reads a single register.
func (b *Bus) ReadRegister(addr uint16, reg byte) (byte, error) {
	var r [1]byte
	if err := b.ReadRegisters(addr, reg, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// WriteRegisters writes w[1:] to consecutive registers starting at w[0].
//
// w is not modified.
func (b *Bus) WriteRegisters(addr uint16, w []byte) error {
	if len(w) == 0 {
		return fault.New(fault.BusError, 0, "WriteRegisters: empty buffer -> %08x")
	}
	buf := make([]byte, len(w))
	copy(buf, w)
	if len(buf) > 2 {
		buf[0] |= AutoIncrement
	}
	b.critical.Lock()
	defer b.critical.Unlock()
	if !b.started {
		return fault.Wrap(fault.BusError, 0, "WriteRegisters -> %08x", errNotStarted)
	}
	return b.send(addr, buf, Stop, "WriteRegisters::Send(Buf) -> %08x")
}

// WriteRegister writes a single register.
func (b *Bus) WriteRegister(addr uint16, reg, value byte) error {
	return b.WriteRegisters(addr, []byte{reg, value})
}

func (b *Bus) send(addr uint16, w []byte, c Condition, template string) error {
	b.token.Take()
	n, err := b.ctrl.Send(addr, w, c)
	b.token.Give()
	if err != nil || n != len(w) {
		return fault.Wrap(fault.BusError, n, template, err)
	}
	return nil
}

func (b *Bus) recv(addr uint16, r []byte, template string) error {
	b.token.Take()
	n, err := b.ctrl.Recv(addr, r, Stop)
	b.token.Give()
	if err != nil || n != len(r) {
		return fault.Wrap(fault.BusError, n, template, err)
	}
	return nil
}

func (b *Bus) String() string {
	return fmt.Sprintf("regbus(%v)", b.ctrl)
}

// Dev is a device at a fixed address on a register bus.
type Dev struct {
	Bus  Registers
	Addr uint16
}

// ReadRegisters reads len(r) consecutive registers starting at reg.
func (d *Dev) ReadRegisters(reg byte, r []byte) error {
	return d.Bus.ReadRegisters(d.Addr, reg, r)
}

// ReadRegister reads a single register.
func (d *Dev) ReadRegister(reg byte) (byte, error) {
	return d.Bus.ReadRegister(d.Addr, reg)
}

// WriteRegister writes a single register.
func (d *Dev) WriteRegister(reg, value byte) error {
	return d.Bus.WriteRegister(d.Addr, reg, value)
}

func (d *Dev) String() string {
	return fmt.Sprintf("%v@0x%02x", d.Bus, d.Addr)
}

var _ Registers = &Bus{}
