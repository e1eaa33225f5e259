// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regbus

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// I2C adapts a periph I²C bus to Controller.
//
// periph expresses a repeated start as a single Tx with both a write and a
// read buffer. A Send ending with RepeatedStart is therefore held and
// completed by the next Recv to the same address. A failure in either phase,
// an address NACK included, is thus reported by the Recv.
type I2C struct {
	bus i2c.Bus

	mu          sync.Mutex
	running     bool
	pending     []byte
	pendingAddr uint16
}

// NewI2C returns a Controller using b. The caller keeps ownership of b.
func NewI2C(b i2c.Bus) *I2C {
	return &I2C{bus: b}
}

var errStopped = errors.New("regbus: i2c controller stopped")

// Start implements Controller.
func (c *I2C) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.pending = nil
	return nil
}

// Stop implements Controller.
func (c *I2C) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.pending = nil
	return nil
}

// Send implements Controller.
func (c *I2C) Send(addr uint16, w []byte, cond Condition) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0, errStopped
	}
	if cond == RepeatedStart {
		c.pending = append(c.pending[:0], w...)
		c.pendingAddr = addr
		return len(w), nil
	}
	c.pending = nil
	if err := c.bus.Tx(addr, w, nil); err != nil {
		return 0, err
	}
	return len(w), nil
}

// Recv implements Controller.
func (c *I2C) Recv(addr uint16, r []byte, cond Condition) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0, errStopped
	}
	var w []byte
	if c.pending != nil && c.pendingAddr == addr {
		w = c.pending
	}
	c.pending = nil
	if err := c.bus.Tx(addr, w, r); err != nil {
		return 0, err
	}
	return len(r), nil
}

func (c *I2C) String() string {
	return "i2c(" + c.bus.String() + ")"
}

var _ Controller = &I2C{}
