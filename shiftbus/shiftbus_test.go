// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package shiftbus

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/GermanBionicSystems/remoteio/fault"
)

type write struct {
	off, v uint32
}

// fakeCore simulates the FIFOs of the controller. Releasing the inhibit bit
// shifts the whole transmit FIFO out and fills the receive FIFO from
// response.
type fakeCore struct {
	writes   []write
	tx       []byte
	rx       []uint32
	response []byte
	// lose drops that many received bytes while still reporting them in the
	// occupancy register.
	lose  int
	stuck bool
	rfo   uint32
}

func (f *fakeCore) Read32(off uint32) uint32 {
	switch off {
	case regSR:
		var v uint32
		if len(f.tx) == 0 {
			v |= srTxEmpty
		}
		if len(f.rx) == 0 {
			v |= srRxEmpty
		}
		return v
	case regRFO:
		return f.rfo
	case regDRR:
		v := f.rx[0]
		f.rx = f.rx[1:]
		return v
	}
	return 0
}

func (f *fakeCore) Write32(off, v uint32) {
	f.writes = append(f.writes, write{off, v})
	switch off {
	case regDTR:
		f.tx = append(f.tx, byte(v))
	case regCR:
		if v&crTransInhibit == 0 && !f.stuck {
			for i := range f.tx {
				var b byte
				if i < len(f.response) {
					b = f.response[i]
				}
				if i >= len(f.tx)-f.lose {
					continue
				}
				// Upper bits of a receive slot are not data.
				f.rx = append(f.rx, 0xffffff00|uint32(b))
			}
			f.rfo = uint32(len(f.tx) - 1)
			f.tx = nil
		}
	}
}

var allowWrite = cmp.AllowUnexported(write{})

func TestInit(t *testing.T) {
	f := &fakeCore{}
	c := New(f, &Opts{})
	if err := c.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []write{{regSRR, 0x0a}, {regCR, 0x186}, {regSSR, 0xffffffff}}
	if diff := cmp.Diff(f.writes, want, allowWrite); diff != "" {
		t.Errorf("Init() difference (-got +want):\n%s", diff)
	}
}

func TestExecute(t *testing.T) {
	f := &fakeCore{response: []byte{0x01, 0x90, 0x19, 0x00}}
	c := New(f, &Opts{})
	rx, err := c.Execute(context.Background(), Channel0, make([]byte, 4))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rx, f.response) {
		t.Errorf("rx=%#v expected %#v", rx, f.response)
	}
	want := []write{
		{regDTR, 0}, {regDTR, 0}, {regDTR, 0}, {regDTR, 0},
		{regSSR, 0xfffffffe},
		{regCR, 0x086},
		{regCR, 0x186},
		{regSSR, 0xffffffff},
	}
	if diff := cmp.Diff(f.writes, want, allowWrite); diff != "" {
		t.Errorf("Execute() difference (-got +want):\n%s", diff)
	}
}

func TestExecuteShortReceive(t *testing.T) {
	f := &fakeCore{response: []byte{1, 2, 3, 4}, lose: 1}
	c := New(f, &Opts{})
	rx, err := c.Execute(context.Background(), Channel1, make([]byte, 4))
	if !errors.Is(err, fault.BusError) {
		t.Fatalf("err=%v expected BusError", err)
	}
	if fault.Code(err) != 3 {
		t.Errorf("code=%d expected 3", fault.Code(err))
	}
	if rx != nil {
		t.Errorf("rx=%v expected nil", rx)
	}
	last := f.writes[len(f.writes)-2:]
	if diff := cmp.Diff(last, []write{{regCR, 0x186}, {regSSR, 0xffffffff}}, allowWrite); diff != "" {
		t.Errorf("controller not released (-got +want):\n%s", diff)
	}
}

func TestExecuteBoundedSpin(t *testing.T) {
	f := &fakeCore{stuck: true}
	c := New(f, &Opts{MaxSpins: 10})
	_, err := c.Execute(context.Background(), Channel0, make([]byte, 4))
	if !errors.Is(err, fault.BusError) {
		t.Fatalf("err=%v expected BusError", err)
	}
	if got := f.writes[len(f.writes)-1]; got != (write{regSSR, 0xffffffff}) {
		t.Errorf("last write %#v, expected deselect", got)
	}
}

func TestExecuteEmpty(t *testing.T) {
	f := &fakeCore{}
	c := New(f, nil)
	if _, err := c.Execute(context.Background(), Channel0, nil); !errors.Is(err, fault.BusError) {
		t.Fatalf("err=%v expected BusError", err)
	}
	if len(f.writes) != 0 {
		t.Errorf("unexpected writes %v", f.writes)
	}
}

func TestExecuteCancelled(t *testing.T) {
	f := &fakeCore{response: []byte{1, 2}}
	c := New(f, &Opts{Settle: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Execute(ctx, Channel0, make([]byte, 2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v expected context.Canceled", err)
	}
	if got := f.writes[len(f.writes)-1]; got != (write{regSSR, 0xffffffff}) {
		t.Errorf("last write %#v, expected deselect", got)
	}
}

func TestSPI(t *testing.T) {
	pb := &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       []conntest.IO{{W: []byte{0, 0, 0, 0}, R: []byte{0x01, 0x90, 0x19, 0x00}}},
			DontPanic: true,
		},
	}
	s, err := NewSPI(pb, Channel0, 5*physic.MegaHertz)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	rx, err := s.Execute(context.Background(), Channel0, make([]byte, 4))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rx, []byte{0x01, 0x90, 0x19, 0x00}, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Execute() difference (-got +want):\n%s", diff)
	}
	if _, err := s.Execute(context.Background(), Channel1, make([]byte, 4)); !errors.Is(err, fault.BusError) {
		t.Errorf("err=%v expected BusError for a foreign channel", err)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestChannelString(t *testing.T) {
	for ch, want := range map[Channel]string{
		Channel0:    "Channel0",
		Channel1:    "Channel1",
		ChannelNone: "ChannelNone",
		0xfffffffb:  "Channel(0xfffffffb)",
	} {
		if got := ch.String(); got != want {
			t.Errorf("%#x.String()=%q expected %q", uint32(ch), got, want)
		}
	}
}
