// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{New(UnexpectedDevice, 0x42, "BAROMETER_WHO_AM_I = %08x != BD"), "BAROMETER_WHO_AM_I = 00000042 != BD"},
		{New(ResetTimeout, Failure, "Barometer swreset timeout"), "Barometer swreset timeout"},
		{errors.New("plain"), "plain"},
		{fmt.Errorf("wrapped: %w", New(BusError, 0, "send -> %08x")), "send -> 00000000"},
		{New(DataNotReady, Failure, ""), "data not ready"},
	}
	for _, test := range tests {
		if got := Message(test.err); got != test.expected {
			t.Errorf("Message(%v)=%q expected %q", test.err, got, test.expected)
		}
	}
	if Message(nil) != "" {
		t.Error("Message(nil) should be empty")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("lps25hb: %w", Wrap(BusError, 3, "recv -> %08x", errors.New("nack")))
	if !errors.Is(err, BusError) {
		t.Error("expected errors.Is(err, BusError)")
	}
	if errors.Is(err, BootTimeout) {
		t.Error("unexpected match on BootTimeout")
	}
	if Code(err) != 3 {
		t.Errorf("Code()=%d expected 3", Code(err))
	}
	if Code(errors.New("x")) != Failure {
		t.Error("plain errors should carry Failure")
	}
	if Code(nil) != 0 {
		t.Error("nil should carry 0")
	}
}

func TestRetemplate(t *testing.T) {
	cause := errors.New("nack")
	orig := Wrap(BusError, 0, "ReadRegisters: send -> %08x", cause)
	// The kind argument only applies to errors that are not *Error.
	err := Retemplate(orig, SinkDisposition, "ReadRegister(WHO_AM_I) -> %08x")
	if !errors.Is(err, BusError) {
		t.Errorf("kind not kept: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not kept")
	}
	if got := Message(err); got != "ReadRegister(WHO_AM_I) -> 00000000" {
		t.Errorf("got %q", got)
	}
	if orig.Template != "ReadRegisters: send -> %08x" {
		t.Error("original was modified")
	}

	plain := Retemplate(cause, BootTimeout, "boot")
	if !errors.Is(plain, BootTimeout) || Code(plain) != Failure {
		t.Errorf("unexpected %#v", plain)
	}
	if Retemplate(nil, BusError, "x") != nil {
		t.Error("nil should stay nil")
	}
}

func TestKindString(t *testing.T) {
	if BusError.Error() != "bus error" {
		t.Error(BusError.Error())
	}
	if Kind(99).Error() != "fault(99)" {
		t.Error(Kind(99).Error())
	}
}
