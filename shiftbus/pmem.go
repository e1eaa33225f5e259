// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package shiftbus

import (
	"fmt"

	"periph.io/x/host/v3/pmem"
)

// Mapped is the controller register window mapped from physical memory.
type Mapped struct {
	view *pmem.View
	regs []uint32
}

// MapRegisters maps the controller registers at physical address base. It
// normally requires root.
func MapRegisters(base uint64) (*Mapped, error) {
	v, err := pmem.Map(base, RegisterSpan)
	if err != nil {
		return nil, fmt.Errorf("shiftbus: %w", err)
	}
	return &Mapped{view: v, regs: v.Uint32()}, nil
}

// Read32 implements Registers.
func (m *Mapped) Read32(off uint32) uint32 {
	return m.regs[off/4]
}

// Write32 implements Registers.
func (m *Mapped) Write32(off, v uint32) {
	m.regs[off/4] = v
}

// Close unmaps the register window.
func (m *Mapped) Close() error {
	return m.view.Close()
}

func (m *Mapped) String() string {
	return fmt.Sprintf("pmem(0x%x)", m.view.PhysAddr())
}

var _ Registers = &Mapped{}
