// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package indicator

import (
	"bytes"
	"image/color"
	"io"
	"sync"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"
)

// ConsoleOpts represents the options of a Console.
type ConsoleOpts struct {
	// Color is the lit LED color. Defaults to green.
	Color   color.NRGBA
	Palette *ansi256.Palette
}

// Console is an LED emulated on the terminal (stdout) using ANSI color
// codes.
//
// Useful on boards without a user LED.
type Console struct {
	w       io.Writer
	palette ansi256.Palette
	on      color.NRGBA

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewConsole returns a Console that draws at the console.
func NewConsole(opts *ConsoleOpts) *Console {
	var o ConsoleOpts
	if opts != nil {
		o = *opts
	}
	p := o.Palette
	if p == nil {
		p = ansi256.Default
	}
	on := o.Color
	if on == (color.NRGBA{}) {
		on = color.NRGBA{G: 255, A: 255}
	}
	return &Console{w: colorable.NewColorableStdout(), palette: *p, on: on}
}

// Out implements Output by redrawing the LED in place.
func (c *Console) Out(l gpio.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	px := color.NRGBA{A: 255}
	if l == gpio.High {
		px = c.on
	}
	c.buf.Reset()
	_, _ = c.buf.WriteString("\r\033[0m")
	_, _ = io.WriteString(&c.buf, c.palette.Block(px))
	_, _ = c.buf.WriteString("\033[0m ")
	_, err := c.buf.WriteTo(c.w)
	return err
}

// Halt resets the terminal colors and moves to the next line.
func (c *Console) Halt() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write([]byte("\n\033[0m"))
	return err
}

func (c *Console) String() string {
	return "Console"
}

var _ Output = &Console{}
