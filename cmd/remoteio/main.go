// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// remoteio samples the barometer, thermocouple and hygrometer of the remote
// I/O module and publishes the readings to an MQTT broker.
//
// Usage:
//
//	remoteio [config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/remoteio/acquisition"
	"github.com/GermanBionicSystems/remoteio/config"
	"github.com/GermanBionicSystems/remoteio/hts221"
	"github.com/GermanBionicSystems/remoteio/indicator"
	"github.com/GermanBionicSystems/remoteio/lps25hb"
	"github.com/GermanBionicSystems/remoteio/regbus"
	"github.com/GermanBionicSystems/remoteio/shiftbus"
	"github.com/GermanBionicSystems/remoteio/telemetry"
	"github.com/GermanBionicSystems/remoteio/telemetry/mqttsink"
)

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: remoteio [-v] [config.yaml]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() > 1 {
		return errors.New("too many arguments")
	}

	cfg := config.Default()
	if flag.NArg() == 1 {
		var err error
		if cfg, err = config.Load(flag.Arg(0)); err != nil {
			return err
		}
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return err
	}

	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return fmt.Errorf("%w: %w", errResource, err)
	}
	defer bus.Close()

	var led indicator.Output
	if cfg.Indicator.Pin != "" {
		p := gpioreg.ByName(cfg.Indicator.Pin)
		if p == nil {
			return fmt.Errorf("%w: no pin %q", errResource, cfg.Indicator.Pin)
		}
		led = p
	} else {
		c := indicator.NewConsole(nil)
		defer c.Halt()
		led = c
	}

	ch := shiftbus.Channel0
	if cfg.ShiftBus.Channel == 1 {
		ch = shiftbus.Channel1
	}
	var shift shiftbus.Transactor
	if cfg.ShiftBus.SPIPort != "" {
		port, err := spireg.Open(cfg.ShiftBus.SPIPort)
		if err != nil {
			return fmt.Errorf("%w: %w", errResource, err)
		}
		defer port.Close()
		s, err := shiftbus.NewSPI(port, ch, physic.Frequency(cfg.ShiftBus.MaxHz)*physic.Hertz)
		if err != nil {
			return err
		}
		shift = s
	} else {
		regs, err := shiftbus.MapRegisters(cfg.ShiftBus.BaseAddress)
		if err != nil {
			return fmt.Errorf("%w: %w", errResource, err)
		}
		defer regs.Close()
		shift = shiftbus.New(regs, &shiftbus.Opts{Settle: cfg.ShiftBus.Settle(), MaxSpins: cfg.ShiftBus.MaxSpins})
	}

	sink := mqttsink.New(&mqttsink.Opts{
		Endpoint:       cfg.Broker.Endpoint,
		Port:           cfg.Broker.Port,
		ClientID:       cfg.Broker.ClientID,
		TLS:            cfg.Broker.TLS,
		ConnectTimeout: cfg.Broker.ConnectTimeout(),
		PublishTimeout: cfg.Broker.PublishTimeout(),
	})

	interval := cfg.Poll.Interval()
	sys, err := acquisition.New(acquisition.Devices{
		Registers: regbus.NewI2C(bus),
		Shift:     shift,
		LED:       led,
		Sink:      sink,
	}, &acquisition.Config{
		Period:              cfg.SamplingPeriod(),
		BarometerAddress:    cfg.I2C.BarometerAddress,
		HygrometerAddress:   cfg.I2C.HygrometerAddress,
		ThermocoupleChannel: ch,
		Barometer: &lps25hb.Opts{
			PollInterval:       interval,
			ResetAttempts:      cfg.Poll.BarometerResetAttempts,
			BootAttempts:       cfg.Poll.BarometerBootAttempts,
			ConversionAttempts: cfg.Poll.BarometerConversionAttempts,
			DataAttempts:       cfg.Poll.BarometerDataAttempts,
			PowerUpDelay:       interval,
		},
		Hygrometer: &hts221.Opts{
			PollInterval:       interval,
			BootAttempts:       cfg.Poll.HygrometerBootAttempts,
			ConversionAttempts: cfg.Poll.HygrometerConversionAttempts,
			DataAttempts:       cfg.Poll.HygrometerDataAttempts,
			PowerUpDelay:       interval,
		},
		Indicator: &indicator.Opts{HalfPeriod: cfg.Indicator.HalfPeriod()},
		Telemetry: &telemetry.Opts{MaxPayload: cfg.Telemetry.MaxPayload, QoS: telemetry.QoS(cfg.Telemetry.QoS)},
	}, acquisition.Hooks{
		Breakpoint: func(t telemetry.Topic, err error) {
			fmt.Fprintf(os.Stderr, "remoteio: %s: %v\n", t, err)
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = sys.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errResource = errors.New("resource unavailable")

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "remoteio: %s.\n", err)
		os.Exit(1)
	}
}
