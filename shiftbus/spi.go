// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package shiftbus

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/GermanBionicSystems/remoteio/fault"
)

// SPI runs transactions through a periph SPI port, for boards where the
// kernel owns the controller and drives chip select itself.
type SPI struct {
	conn spi.Conn
	ch   Channel
}

// NewSPI connects to p. The port serves a single channel, ch.
func NewSPI(p spi.Port, ch Channel, maxHz physic.Frequency) (*SPI, error) {
	c, err := p.Connect(maxHz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("shiftbus: %w", err)
	}
	return &SPI{conn: c, ch: ch}, nil
}

// Init implements Transactor. The kernel driver already configured the
// controller.
func (s *SPI) Init(ctx context.Context) error {
	return ctx.Err()
}

// Execute implements Transactor.
func (s *SPI) Execute(ctx context.Context, ch Channel, tx []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ch != s.ch {
		return nil, fault.New(fault.BusError, 0, "Execute(Channel) -> %08x")
	}
	if len(tx) == 0 {
		return nil, fault.New(fault.BusError, 0, "Execute(TxCount) -> %08x")
	}
	rx := make([]byte, len(tx))
	if err := s.conn.Tx(tx, rx); err != nil {
		return nil, fault.Wrap(fault.BusError, 0, "Execute(Tx) -> %08x", err)
	}
	return rx, nil
}

func (s *SPI) String() string {
	return fmt.Sprintf("%s/%s", s.conn, s.ch)
}

var _ Transactor = &SPI{}
