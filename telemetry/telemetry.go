// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package telemetry publishes readings and status messages to a message
// broker under a fixed set of topics.
//
// Publishing is best effort. A message that could not be delivered is
// logged and signalled on the status indicator, never returned as an error
// to the sampling code.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/GermanBionicSystems/remoteio/fault"
)

// QoS is the broker delivery guarantee.
type QoS byte

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

// Disposition is the outcome of a publish.
type Disposition int

const (
	Delivered Disposition = iota
	Failed
	TimedOut
	// Misuse is a publish the sink refused as invalid.
	Misuse
)

func (d Disposition) String() string {
	switch d {
	case Delivered:
		return "Delivered"
	case Failed:
		return "Failed"
	case TimedOut:
		return "TimedOut"
	case Misuse:
		return "Misuse"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// Sink is a connection to a message broker.
type Sink interface {
	Connect(ctx context.Context) error
	Publish(topic string, payload []byte, qos QoS) Disposition
	Disconnect()
}

// Indicator signals failed publishes.
type Indicator interface {
	Blink(count int, finalOn bool) error
}

// Opts configures a Publisher.
type Opts struct {
	// MaxPayload is the payload buffer size. Payloads are cut to
	// MaxPayload-1 bytes.
	MaxPayload int
	QoS        QoS
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	MaxPayload: 256,
	QoS:        AtLeastOnce,
}

// Publisher formats messages and publishes them on a Sink.
type Publisher struct {
	sink  Sink
	table *Table
	ind   Indicator
	opts  Opts

	mu        sync.Mutex
	connected bool
}

// NewPublisher returns a Publisher over sink. ind may be nil.
func NewPublisher(sink Sink, table *Table, ind Indicator, opts *Opts) *Publisher {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Publisher{sink: sink, table: table, ind: ind, opts: *opts}
}

// Connect connects the sink.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sink.Connect(ctx); err != nil {
		log.Printf("telemetry: failed to connect: %v", err)
		return fault.Wrap(fault.SinkUnavailable, fault.Failure, "Could not connect to MQTT broker", err)
	}
	log.Printf("telemetry: connected")
	p.connected = true
	return nil
}

// Connected reports whether Connect succeeded and Disconnect was not called
// since.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Disconnect disconnects the sink if it is connected.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return
	}
	p.sink.Disconnect()
	p.connected = false
}

// Publishf formats a message and publishes it on topic t.
//
// It does nothing and returns Failed while not connected. A message that
// does not fit is cut; a message that fails to format is sent as "???".
// Any disposition but Delivered blinks the indicator once. Misuse panics.
func (p *Publisher) Publishf(t Topic, format string, args ...any) Disposition {
	name := p.table.Name(t)
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return Failed
	}
	payload := p.format(format, args...)
	d := p.sink.Publish(name, []byte(payload), p.opts.QoS)
	switch d {
	case Delivered:
		log.Printf("telemetry: published '%s': '%s'", name, payload)
		return d
	case Failed:
		log.Printf("telemetry: failed to publish '%s': '%s'", name, payload)
	case TimedOut:
		log.Printf("telemetry: timed out publishing '%s': '%s'", name, payload)
	default:
		log.Printf("telemetry: misuse publishing '%s': '%s'", name, payload)
	}
	if p.ind != nil {
		if err := p.ind.Blink(1, false); err != nil {
			log.Printf("telemetry: %v", err)
		}
	}
	if d != Failed && d != TimedOut {
		panic(fmt.Sprintf("telemetry: publish '%s' returned %s", name, d))
	}
	return d
}

func (p *Publisher) format(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	if strings.Contains(s, "%!") {
		return "???"
	}
	if limit := p.opts.MaxPayload - 1; limit >= 0 && len(s) > limit {
		for limit > 0 && !utf8.RuneStart(s[limit]) {
			limit--
		}
		s = s[:limit]
	}
	return s
}
