// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package poll waits on hardware status bits with a fixed attempt budget.
//
// The budget is a number of attempts, not a wall clock deadline: a slow
// clock stretches the real time spent, but never the number of bus
// transactions issued.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Until when every attempt came back not done.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Until calls cond up to attempts times, sleeping delay between two
// attempts, and returns nil as soon as cond reports done.
//
// An error from cond is returned as is and ends the poll. ctx only
// interrupts the sleeps.
func Until(ctx context.Context, attempts int, delay time.Duration, cond func() (bool, error)) error {
	for i := 0; i < attempts; i++ {
		if i != 0 {
			if err := Sleep(ctx, delay); err != nil {
				return err
			}
		}
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrExhausted
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
