// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package acquisition runs the sensor acquisition lifecycle: bring-up,
// periodic sampling and teardown.
//
// Bring-up is fail fast: the first error is published on the topic of the
// step that failed and the system tears itself down. Sampling errors are
// published on the status topic of the sensor and the loop carries on.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/GermanBionicSystems/remoteio/fault"
	"github.com/GermanBionicSystems/remoteio/hts221"
	"github.com/GermanBionicSystems/remoteio/indicator"
	"github.com/GermanBionicSystems/remoteio/lps25hb"
	"github.com/GermanBionicSystems/remoteio/max31855"
	"github.com/GermanBionicSystems/remoteio/poll"
	"github.com/GermanBionicSystems/remoteio/regbus"
	"github.com/GermanBionicSystems/remoteio/shiftbus"
	"github.com/GermanBionicSystems/remoteio/telemetry"
)

// ErrTerminated is returned by Run once the system is torn down. The cause
// is wrapped along.
var ErrTerminated = errors.New("acquisition: terminated")

// Devices is the hardware the system drives.
type Devices struct {
	// Registers is the controller of the bus shared by the barometer and
	// the hygrometer.
	Registers regbus.Controller
	// Shift is the controller of the thermocouple bus.
	Shift shiftbus.Transactor
	LED   indicator.Output
	Sink  telemetry.Sink
}

// Config is the system configuration.
type Config struct {
	// Period is the sampling period. It must be at least MinPeriod.
	Period time.Duration

	BarometerAddress    uint16
	HygrometerAddress   uint16
	ThermocoupleChannel shiftbus.Channel

	Barometer  *lps25hb.Opts
	Hygrometer *hts221.Opts
	Indicator  *indicator.Opts
	Telemetry  *telemetry.Opts
}

// MinPeriod is the shortest sampling period.
const MinPeriod = 100 * time.Millisecond

// DefaultConfig is the recommended default configuration.
var DefaultConfig = Config{
	Period:              500 * time.Millisecond,
	BarometerAddress:    lps25hb.DefaultAddress,
	HygrometerAddress:   hts221.DefaultAddress,
	ThermocoupleChannel: shiftbus.Channel0,
}

// Hooks observe the system. Every field is optional.
type Hooks struct {
	// Breakpoint fires once a fail fast error was published, before
	// teardown.
	Breakpoint func(t telemetry.Topic, err error)
	// Cycle fires after every sampling cycle; n counts from 1.
	Cycle func(n int)
}

// System is one acquisition task. It runs once.
type System struct {
	cfg   Config
	dev   Devices
	hooks Hooks

	ind *indicator.Dev
	pub *telemetry.Publisher

	mu      sync.Mutex
	ran     bool
	topic   telemetry.Topic
	token   *regbus.Token
	bus     *regbus.Bus
	sensors []sensor
}

// New returns a System ready to Run. cfg may be nil.
func New(dev Devices, cfg *Config, hooks Hooks) (*System, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c := *cfg
	if c.Period == 0 {
		c.Period = DefaultConfig.Period
	}
	if c.Period < MinPeriod {
		return nil, fmt.Errorf("acquisition: period %s is below %s", c.Period, MinPeriod)
	}
	if dev.Sink == nil {
		return nil, errors.New("acquisition: no telemetry sink")
	}
	ind := indicator.New(dev.LED, c.Indicator)
	s := &System{
		cfg:   c,
		dev:   dev,
		hooks: hooks,
		ind:   ind,
		pub:   telemetry.NewPublisher(dev.Sink, telemetry.NewTable(), ind, c.Telemetry),
		topic: telemetry.SystemStatus,
	}
	return s, nil
}

// Topic returns the topic the next error would be reported on.
func (s *System) Topic() telemetry.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

func (s *System) setTopic(t telemetry.Topic) {
	s.mu.Lock()
	s.topic = t
	s.mu.Unlock()
}

// Run brings the system up then samples every period until ctx is done.
//
// It always ends with teardown and returns an error wrapping ErrTerminated
// and the cause: the first bring-up error or the context error. A System
// cannot be run twice.
func (s *System) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return fmt.Errorf("%w: already run", ErrTerminated)
	}
	s.ran = true
	s.mu.Unlock()

	err := s.bringUp(ctx)
	if err == nil {
		err = s.loop(ctx)
	}
	s.teardown()
	return fmt.Errorf("%w: %w", ErrTerminated, err)
}

// step runs fn with t as the reporting topic. A failure is published and
// fires the breakpoint hook.
func (s *System) step(t telemetry.Topic, summary string, fn func() error) error {
	s.setTopic(t)
	err := fn()
	if err == nil {
		return nil
	}
	s.pub.Publishf(t, "%s", fault.Message(err))
	if summary != "" {
		s.pub.Publishf(t, summary, fault.Code(err))
	}
	log.Printf("acquisition: %s: %v", t, err)
	if s.hooks.Breakpoint != nil {
		s.hooks.Breakpoint(t, err)
	}
	return err
}

func (s *System) bringUp(ctx context.Context) error {
	err := s.step(telemetry.SystemStatus, "", func() error {
		if err := s.ind.Init(); err != nil {
			return fault.Wrap(fault.ResourceCreationFailure, fault.Failure, "Indicator init -> %08x", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.blink(5, false)

	err = s.step(telemetry.SystemStatus, "", func() error {
		if s.dev.Registers == nil {
			return fault.New(fault.ResourceCreationFailure, fault.Failure, "Register bus unavailable")
		}
		if s.dev.Shift == nil {
			return fault.New(fault.ResourceCreationFailure, fault.Failure, "Thermocouple bus unavailable")
		}
		s.token = regbus.NewToken()
		s.bus = regbus.New(s.dev.Registers, s.token)
		if err := s.bus.Start(); err != nil {
			return fault.Retemplate(err, fault.BusError, "Register bus start -> %08x")
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = s.step(telemetry.SystemStatus, "", func() error {
		return s.pub.Connect(ctx)
	})
	if err != nil {
		return err
	}
	s.blink(5, true)

	s.sensors = []sensor{
		&barometer{d: lps25hb.New(s.bus, s.cfg.BarometerAddress, s.cfg.Barometer)},
		&thermocouple{d: max31855.New(s.dev.Shift, s.cfg.ThermocoupleChannel)},
		&hygrometer{d: hts221.New(s.bus, s.cfg.HygrometerAddress, s.cfg.Hygrometer)},
	}
	for _, sn := range s.sensors {
		err := s.step(sn.status(), sn.summary(), func() error {
			return sn.start(ctx, s.pub)
		})
		if err != nil {
			return err
		}
	}

	s.setTopic(telemetry.SystemStatus)
	s.pub.Publishf(telemetry.SystemStatus, "System started")
	return nil
}

// loop samples every sensor once per period on an absolute schedule, so a
// slow cycle does not shift the following ones.
func (s *System) loop(ctx context.Context) error {
	next := time.Now()
	for n := 1; ; n++ {
		next = next.Add(s.cfg.Period)
		if err := poll.Sleep(ctx, time.Until(next)); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, sn := range s.sensors {
			s.sample(ctx, sn)
		}
		if s.hooks.Cycle != nil {
			s.hooks.Cycle(n)
		}
	}
}

func (s *System) sample(ctx context.Context, sn sensor) {
	t := sn.status()
	s.setTopic(t)
	err := sn.sample(ctx, s.pub)
	if err == nil || ctx.Err() != nil {
		return
	}
	s.pub.Publishf(t, "%s", fault.Message(err))
}

func (s *System) teardown() {
	s.setTopic(telemetry.SystemStatus)
	s.pub.Disconnect()
	for i := len(s.sensors) - 1; i >= 0; i-- {
		sn := s.sensors[i]
		s.setTopic(sn.status())
		if err := sn.stop(); err != nil {
			log.Printf("acquisition: %s: %v", sn.status(), err)
		}
	}
	s.setTopic(telemetry.SystemStatus)
	if s.bus != nil && s.bus.Started() {
		if err := s.bus.Stop(); err != nil {
			log.Printf("acquisition: register bus stop: %v", err)
		}
	}
	if s.token != nil {
		s.token.Close()
	}
	s.blink(5, false)
}

func (s *System) blink(count int, finalOn bool) {
	if err := s.ind.Blink(count, finalOn); err != nil {
		log.Printf("acquisition: %v", err)
	}
}
