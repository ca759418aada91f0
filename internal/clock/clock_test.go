/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewSystemGuard(t *testing.T) {
	tests := []struct {
		name  string
		guard time.Duration
		want  time.Duration
	}{
		{"zero uses default", 0, DefaultGuard},
		{"negative uses default", -time.Second, DefaultGuard},
		{"custom kept", 2 * time.Millisecond, 2 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSystem(tt.guard).guard; got != tt.want {
				t.Errorf("guard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSystemSleepUntilReachesDeadline(t *testing.T) {
	c := NewSystem(0)
	deadline := c.Now().Add(40 * time.Millisecond)

	if err := c.SleepUntil(context.Background(), deadline); err != nil {
		t.Fatalf("SleepUntil: %v", err)
	}
	if now := time.Now(); now.Before(deadline) {
		t.Errorf("woke %v before deadline", deadline.Sub(now))
	}
}

func TestSystemSleepUntilPastDeadlineReturnsImmediately(t *testing.T) {
	c := NewSystem(0)
	start := time.Now()

	if err := c.SleepUntil(context.Background(), start.Add(-time.Second)); err != nil {
		t.Fatalf("SleepUntil: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("past deadline took %v", elapsed)
	}
}

func TestSystemSleepUntilCancellation(t *testing.T) {
	c := NewSystem(0)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err := c.SleepUntil(ctx, start.Add(10*time.Second))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SleepUntil error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, want under 1s", elapsed)
	}
}

func TestSystemSleepUntilCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewSystem(0).SleepUntil(ctx, time.Now().Add(time.Hour)); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepUntil error = %v, want context.Canceled", err)
	}
}
