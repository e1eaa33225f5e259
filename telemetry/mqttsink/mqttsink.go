// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mqttsink implements telemetry.Sink on an MQTT broker.
package mqttsink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/GermanBionicSystems/remoteio/telemetry"
)

// Opts holds the broker connection parameters.
type Opts struct {
	Endpoint string
	Port     int
	ClientID string
	// TLS enables a tls:// connection using TLSConfig, or the system roots
	// when TLSConfig is nil.
	TLS       bool
	TLSConfig *tls.Config
	// ConnectTimeout bounds the connection, TLS negotiation included.
	ConnectTimeout time.Duration
	// PublishTimeout bounds the wait for a publish acknowledgement.
	PublishTimeout time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Port:           8883,
	ClientID:       "MQTTUZed",
	TLS:            true,
	ConnectTimeout: 12 * time.Second,
	PublishTimeout: 10 * time.Second,
}

// Client is a broker connection.
type Client struct {
	opts Opts
	// newClient is replaced in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client
}

// New returns an unconnected Client.
func New(opts *Opts) *Client {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Client{opts: *opts, newClient: mqtt.NewClient}
}

// BrokerURL returns the URL the client connects to.
func (c *Client) BrokerURL() string {
	scheme := "tcp"
	if c.opts.TLS {
		scheme = "tls"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.opts.Endpoint, c.opts.Port)
}

// Connect implements telemetry.Sink.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return errors.New("mqttsink: already connected")
	}
	o := mqtt.NewClientOptions().
		AddBroker(c.BrokerURL()).
		SetClientID(c.opts.ClientID).
		SetConnectTimeout(c.opts.ConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if c.opts.TLS {
		cfg := c.opts.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{ServerName: c.opts.Endpoint, MinVersion: tls.VersionTLS12}
		}
		o.SetTLSConfig(cfg)
	}
	cl := c.newClient(o)
	if err := wait(ctx, cl.Connect(), c.opts.ConnectTimeout); err != nil {
		cl.Disconnect(0)
		return fmt.Errorf("mqttsink: connecting to %s: %w", c.BrokerURL(), err)
	}
	c.client = cl
	return nil
}

var errTimeout = errors.New("timed out")

func wait(ctx context.Context, t mqtt.Token, d time.Duration) error {
	var timeout <-chan time.Time
	if d > 0 {
		tm := time.NewTimer(d)
		defer tm.Stop()
		timeout = tm.C
	}
	select {
	case <-t.Done():
		return t.Error()
	case <-timeout:
		return errTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish implements telemetry.Sink.
func (c *Client) Publish(topic string, payload []byte, qos telemetry.QoS) telemetry.Disposition {
	c.mu.Lock()
	cl := c.client
	c.mu.Unlock()
	if cl == nil || topic == "" || qos > telemetry.ExactlyOnce {
		return telemetry.Misuse
	}
	tok := cl.Publish(topic, byte(qos), false, payload)
	if c.opts.PublishTimeout > 0 {
		if !tok.WaitTimeout(c.opts.PublishTimeout) {
			return telemetry.TimedOut
		}
	} else {
		tok.Wait()
	}
	if tok.Error() != nil {
		return telemetry.Failed
	}
	return telemetry.Delivered
}

// Disconnect implements telemetry.Sink.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return
	}
	c.client.Disconnect(250)
	c.client = nil
}

func (c *Client) String() string {
	return "mqtt(" + c.BrokerURL() + ")"
}

var _ telemetry.Sink = &Client{}
