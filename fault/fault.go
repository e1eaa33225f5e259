// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fault defines the error kinds shared by the bus transports, the
// sensor drivers and the acquisition loop.
//
// An Error carries a printf template and a numeric result code. The template
// is what gets published on a status topic, with the code interpolated, so a
// failure seen by a remote subscriber reads like
//
//	ReadRegister(WHO_AM_I) -> 00000002
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Kind implements error so that
// errors.Is(err, fault.BusError) matches any *Error of that kind.
type Kind int

const (
	// BusError is a byte-count mismatch on a bus transaction.
	BusError Kind = iota + 1
	// UnexpectedDevice is an identity register mismatch.
	UnexpectedDevice
	// ResetTimeout, BootTimeout and ConversionTimeout are exhausted polls on
	// a self-clearing control bit.
	ResetTimeout
	BootTimeout
	ConversionTimeout
	// DataNotReady means the data-ready status bits never were set together.
	DataNotReady
	// SinkDisposition is a publish that was not delivered.
	SinkDisposition
	// SinkUnavailable is a telemetry connection that could not be made.
	SinkUnavailable
	// ResourceCreationFailure is a missing lock or hardware handle.
	ResourceCreationFailure
	// NotStarted is a sample requested from a driver that never started.
	NotStarted
	// InvalidCalibration is calibration data that cannot be interpolated.
	InvalidCalibration
)

// Failure is the generic result code, used when no byte count or register
// value is more telling.
const Failure = 1

var kindNames = map[Kind]string{
	BusError:                "bus error",
	UnexpectedDevice:        "unexpected device",
	ResetTimeout:            "reset timeout",
	BootTimeout:             "boot timeout",
	ConversionTimeout:       "conversion timeout",
	DataNotReady:            "data not ready",
	SinkDisposition:         "sink disposition",
	SinkUnavailable:         "sink unavailable",
	ResourceCreationFailure: "resource creation failure",
	NotStarted:              "not started",
	InvalidCalibration:      "invalid calibration",
}

func (k Kind) Error() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Error is a classified failure with a publishable message.
type Error struct {
	Kind Kind
	// Template is a printf format with at most one verb, which receives Code.
	Template string
	// Code is the numeric result: a byte count, a register value or Failure.
	Code int
	// Err is the underlying cause, if any.
	Err error
}

// New returns an *Error of kind k.
func New(k Kind, code int, template string) *Error {
	return &Error{Kind: k, Template: template, Code: code}
}

// Wrap returns an *Error of kind k caused by err.
func Wrap(k Kind, code int, template string, err error) *Error {
	return &Error{Kind: k, Template: template, Code: code, Err: err}
}

// Message renders the template with the code.
func (e *Error) Message() string {
	if strings.Contains(e.Template, "%") {
		return fmt.Sprintf(e.Template, e.Code)
	}
	return e.Template
}

func (e *Error) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Retemplate returns a copy of err's *Error with template replaced, keeping
// kind, code and cause. Errors that are not *Error become a Failure of kind k.
func Retemplate(err error, k Kind, template string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		cp := *fe
		cp.Template = template
		return &cp
	}
	return Wrap(k, Failure, template, err)
}

// Message returns the publishable text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		if m := fe.Message(); m != "" {
			return m
		}
	}
	return err.Error()
}

// Code returns the numeric code carried by err, Failure when it carries
// none, and 0 for nil.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return Failure
}
