// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regbus

import "sync/atomic"

// Token is the binary lock guarding the shared register bus.
//
// It is held for one bus phase at a time, never across a multi-step device
// protocol. Unlike sync.Mutex it may be given back by a goroutine other than
// the one that took it.
type Token struct {
	ch     chan struct{}
	closed atomic.Bool
}

// NewToken returns an available token.
func NewToken() *Token {
	t := &Token{ch: make(chan struct{}, 1)}
	t.ch <- struct{}{}
	return t
}

// Take blocks until the token is available and holds it.
func (t *Token) Take() {
	if t.closed.Load() {
		panic("regbus: token taken after close")
	}
	<-t.ch
}

// Give releases a held token.
func (t *Token) Give() {
	select {
	case t.ch <- struct{}{}:
	default:
		panic("regbus: token given while not held")
	}
}

// Close destroys the token. It must not be taken afterwards.
func (t *Token) Close() {
	t.closed.Store(true)
}

// Closed reports whether Close was called.
func (t *Token) Closed() bool {
	return t.closed.Load()
}
