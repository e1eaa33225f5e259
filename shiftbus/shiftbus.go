// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package shiftbus drives raw shift transactions on a synchronous serial
// bus.
//
// The Controller talks to a Xilinx AXI Quad SPI core in manual slave select
// mode. Bytes are loaded into the transmit FIFO while the core is inhibited,
// a channel is selected, and releasing the inhibit bit clocks the whole
// transfer out at once. Each received byte lands in its own receive FIFO
// slot.
//
// Datasheet
//
// https://docs.amd.com/v/u/en-US/pg153-axi-quad-spi
package shiftbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/remoteio/fault"
	"github.com/GermanBionicSystems/remoteio/poll"
)

// Register byte offsets.
const (
	regSRR uint32 = 0x40 // Software reset
	regCR  uint32 = 0x60 // Control
	regSR  uint32 = 0x64 // Status
	regDTR uint32 = 0x68 // Data transmit
	regDRR uint32 = 0x6c // Data receive
	regSSR uint32 = 0x70 // Slave select
	regRFO uint32 = 0x78 // Receive FIFO occupancy
)

// Control register bits.
const (
	crEnable       uint32 = 0x002
	crMaster       uint32 = 0x004
	crManualSS     uint32 = 0x080
	crTransInhibit uint32 = 0x100

	modeIdle = crTransInhibit | crManualSS | crMaster | crEnable
	modeRun  = crManualSS | crMaster | crEnable
)

// Status register bits.
const (
	srRxEmpty uint32 = 0x01
	srTxEmpty uint32 = 0x04
)

const resetValue uint32 = 0x0a

// RegisterSpan is the size of the register window used by the Controller.
const RegisterSpan = 0x80

// Channel is a slave select pattern. A cleared bit selects that slave.
type Channel uint32

const (
	Channel0    Channel = 0xfffffffe
	Channel1    Channel = 0xfffffffd
	ChannelNone Channel = 0xffffffff
)

func (c Channel) String() string {
	switch c {
	case Channel0:
		return "Channel0"
	case Channel1:
		return "Channel1"
	case ChannelNone:
		return "ChannelNone"
	}
	return fmt.Sprintf("Channel(%#08x)", uint32(c))
}

// Registers is 32 bit register access to the controller.
type Registers interface {
	Read32(off uint32) uint32
	Write32(off, v uint32)
}

// Transactor runs full duplex shift transactions.
type Transactor interface {
	// Init resets and configures the bus controller, deselecting every
	// channel.
	Init(ctx context.Context) error
	// Execute shifts tx out on channel ch and returns as many bytes
	// received.
	Execute(ctx context.Context, ch Channel, tx []byte) ([]byte, error)
}

// Opts holds the controller timing.
type Opts struct {
	// Settle is the delay after a reset and after asserting slave select.
	Settle time.Duration
	// MaxSpins bounds each busy wait on the status registers. 0 spins
	// forever.
	MaxSpins int
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Settle: time.Millisecond,
}

// Controller is an AXI Quad SPI core driven through its registers.
type Controller struct {
	regs Registers
	opts Opts

	mu sync.Mutex
}

// New returns a Controller using regs.
func New(regs Registers, opts *Opts) *Controller {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Controller{regs: regs, opts: *opts}
}

// Init implements Transactor.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs.Write32(regSRR, resetValue)
	if err := poll.Sleep(ctx, c.opts.Settle); err != nil {
		return err
	}
	c.regs.Write32(regCR, modeIdle)
	c.regs.Write32(regSSR, uint32(ChannelNone))
	return poll.Sleep(ctx, c.opts.Settle)
}

// Execute implements Transactor.
//
// The status waits are busy loops without any yield. With Opts.MaxSpins set
// to 0 they wait forever on a controller that never completes.
func (c *Controller) Execute(ctx context.Context, ch Channel, tx []byte) ([]byte, error) {
	if len(tx) == 0 {
		return nil, fault.New(fault.BusError, 0, "Execute(TxCount) -> %08x")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range tx {
		c.regs.Write32(regDTR, uint32(b))
	}
	c.regs.Write32(regSSR, uint32(ch))
	defer func() {
		c.regs.Write32(regCR, modeIdle)
		c.regs.Write32(regSSR, uint32(ChannelNone))
	}()
	if err := poll.Sleep(ctx, c.opts.Settle); err != nil {
		return nil, err
	}
	c.regs.Write32(regCR, modeRun)

	if !c.spin(func() bool { return c.regs.Read32(regSR)&srTxEmpty != 0 }) {
		return nil, fault.New(fault.BusError, 0, "Execute(TxEmpty) -> %08x")
	}
	// Occupancy reads one less than the number of bytes held.
	want := uint32(len(tx) - 1)
	if !c.spin(func() bool { return c.regs.Read32(regRFO) == want }) {
		return nil, fault.New(fault.BusError, 0, "Execute(RxOccupancy) -> %08x")
	}

	rx := make([]byte, len(tx))
	n := 0
	for c.regs.Read32(regSR)&srRxEmpty == 0 {
		v := c.regs.Read32(regDRR)
		if n < len(rx) {
			rx[n] = byte(v)
		}
		n++
	}
	if n != len(tx) {
		return nil, fault.New(fault.BusError, n, "Execute(RxCount) -> %08x")
	}
	return rx, nil
}

func (c *Controller) spin(ready func() bool) bool {
	for i := 0; c.opts.MaxSpins <= 0 || i < c.opts.MaxSpins; i++ {
		if ready() {
			return true
		}
	}
	return false
}

func (c *Controller) String() string {
	return "axi-qspi"
}

var _ Transactor = &Controller{}
