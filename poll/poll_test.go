// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntilDone(t *testing.T) {
	calls := 0
	err := Until(context.Background(), 10, 0, func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls=%d expected 3", calls)
	}
}

func TestUntilExhausted(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Until(context.Background(), 5, time.Millisecond, func() (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err=%v expected ErrExhausted", err)
	}
	if calls != 5 {
		t.Errorf("calls=%d expected 5", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("poll took far too long")
	}
}

func TestUntilCondError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Until(context.Background(), 5, 0, func() (bool, error) {
		calls++
		return false, boom
	})
	if err != boom {
		t.Fatalf("err=%v expected boom", err)
	}
	if calls != 1 {
		t.Errorf("calls=%d expected 1", calls)
	}
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Until(ctx, 100, time.Hour, func() (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v expected context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls=%d expected 1", calls)
	}
}

func TestUntilZeroAttempts(t *testing.T) {
	err := Until(context.Background(), 0, 0, func() (bool, error) {
		t.Error("cond should not be called")
		return true, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err=%v", err)
	}
}
