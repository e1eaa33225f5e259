// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max31855

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/GermanBionicSystems/remoteio/fault"
	"github.com/GermanBionicSystems/remoteio/shiftbus"
)

type fakeBus struct {
	inits    int
	channels []shiftbus.Channel
	frame    []byte
	err      error
}

func (f *fakeBus) Init(ctx context.Context) error {
	f.inits++
	return nil
}

func (f *fakeBus) Execute(ctx context.Context, ch shiftbus.Channel, tx []byte) ([]byte, error) {
	f.channels = append(f.channels, ch)
	for _, b := range tx {
		if b != 0 {
			return nil, fmt.Errorf("unexpected tx %#v", tx)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.frame, nil
}

func celsius(t physic.Temperature) string {
	return fmt.Sprintf("%.1f", float64(t-physic.ZeroCelsius)/float64(physic.Kelvin))
}

func TestDecode(t *testing.T) {
	for _, tc := range []struct {
		frame            [4]byte
		thermo, internal string
	}{
		{[4]byte{0x64, 0x00, 0x7f, 0x00}, "1600.0", "127.0"},
		{[4]byte{0x01, 0x90, 0x19, 0x00}, "25.0", "25.0"},
		{[4]byte{0xf0, 0x60, 0xc9, 0x00}, "-250.0", "-55.0"},
		{[4]byte{0x00, 0x08, 0xff, 0xf0}, "0.5", "-0.1"},
	} {
		th, in := decode(tc.frame)
		if s := celsius(th); s != tc.thermo {
			t.Errorf("decode(%#v) thermocouple=%s expected %s", tc.frame, s, tc.thermo)
		}
		if s := celsius(in); s != tc.internal {
			t.Errorf("decode(%#v) internal=%s expected %s", tc.frame, s, tc.internal)
		}
	}
}

func TestCheckFaultPriority(t *testing.T) {
	for _, tc := range []struct {
		frame [4]byte
		want  Fault
	}{
		{[4]byte{0x01, 0x90, 0x19, 0x00}, NoFault},
		{[4]byte{0x00, 0x01, 0x00, 0x03}, OpenCircuit},
		{[4]byte{0x00, 0x01, 0x00, 0x06}, ShortToGND},
		{[4]byte{0x00, 0x01, 0x00, 0x04}, ShortToVCC},
		{[4]byte{0x00, 0x01, 0x00, 0x00}, GenericFault},
	} {
		if got := checkFault(tc.frame); got != tc.want {
			t.Errorf("checkFault(%#v)=%s expected %s", tc.frame, got, tc.want)
		}
	}
}

func TestSense(t *testing.T) {
	bus := &fakeBus{frame: []byte{0x01, 0x90, 0x19, 0x00}}
	dev := New(bus, shiftbus.Channel0)
	ctx := context.Background()
	if err := dev.Start(ctx); err != nil {
		t.Fatal(err)
	}
	var r Reading
	if err := dev.Sense(ctx, &r); err != nil {
		t.Fatal(err)
	}
	if s := celsius(r.Thermocouple); s != "25.0" {
		t.Errorf("thermocouple=%s", s)
	}
	if s := celsius(r.Internal); s != "25.0" {
		t.Errorf("internal=%s", s)
	}
	if bus.inits != 1 || len(bus.channels) != 1 || bus.channels[0] != shiftbus.Channel0 {
		t.Errorf("unexpected bus use: %d inits, channels %v", bus.inits, bus.channels)
	}
}

func TestSenseFault(t *testing.T) {
	bus := &fakeBus{frame: []byte{0x01, 0x91, 0x19, 0x03}}
	dev := New(bus, shiftbus.Channel0)
	ctx := context.Background()
	if err := dev.Start(ctx); err != nil {
		t.Fatal(err)
	}
	var r Reading
	err := dev.Sense(ctx, &r)
	var fe *FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("err=%v expected *FaultError", err)
	}
	if fe.Fault != OpenCircuit {
		t.Errorf("fault=%s expected Open Circuit", fe.Fault)
	}
	if msg := fault.Message(err); msg != "Open Circuit" {
		t.Errorf("message=%q", msg)
	}
	if r != (Reading{}) {
		t.Errorf("reading decoded despite a fault: %#v", r)
	}
}

func TestSenseTransactionFailure(t *testing.T) {
	bus := &fakeBus{err: fault.New(fault.BusError, 3, "Execute(RxCount) -> %08x")}
	dev := New(bus, shiftbus.Channel0)
	ctx := context.Background()
	if err := dev.Start(ctx); err != nil {
		t.Fatal(err)
	}
	var r Reading
	err := dev.Sense(ctx, &r)
	if !errors.Is(err, fault.BusError) {
		t.Fatalf("err=%v expected BusError", err)
	}
	if msg := fault.Message(err); msg != "SPI Transaction failure" {
		t.Errorf("message=%q", msg)
	}
	if fault.Code(err) != 3 {
		t.Errorf("code=%d", fault.Code(err))
	}
}

func TestSenseNotStarted(t *testing.T) {
	dev := New(&fakeBus{}, shiftbus.Channel0)
	var r Reading
	if err := dev.Sense(context.Background(), &r); !errors.Is(err, fault.NotStarted) {
		t.Fatalf("err=%v expected NotStarted", err)
	}
}

func TestSenseSPI(t *testing.T) {
	pb := &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       []conntest.IO{{W: []byte{0, 0, 0, 0}, R: []byte{0xf0, 0x60, 0xc9, 0x00}}},
			DontPanic: true,
		},
	}
	s, err := shiftbus.NewSPI(pb, shiftbus.Channel0, 5*physic.MegaHertz)
	if err != nil {
		t.Fatal(err)
	}
	dev := New(s, shiftbus.Channel0)
	ctx := context.Background()
	if err := dev.Start(ctx); err != nil {
		t.Fatal(err)
	}
	var r Reading
	if err := dev.Sense(ctx, &r); err != nil {
		t.Fatal(err)
	}
	if s := celsius(r.Thermocouple); s != "-250.0" {
		t.Errorf("thermocouple=%s", s)
	}
	if s := celsius(r.Internal); s != "-55.0" {
		t.Errorf("internal=%s", s)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}
