/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock provides the wall clock and the absolute-deadline suspend
// primitive the transmission loop is timed with.
package clock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTiming indicates the clock or the suspend primitive failed. A run that
// hits it cannot keep producing a valid time code.
var ErrTiming = errors.New("timing primitive failed")

// ErrMemoryLock indicates the realtime policy was applied but the process
// memory could not be locked.
var ErrMemoryLock = errors.New("memory not locked")

// Clock reads wall time and suspends until absolute wall-clock deadlines.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until deadline or until ctx is done. Waking late is
	// not an error; the caller's next deadline is unaffected.
	SleepUntil(ctx context.Context, deadline time.Time) error
}

// DefaultGuard is how long before a deadline the cancellable coarse wait
// hands over to the absolute kernel wait.
const DefaultGuard = 5 * time.Millisecond

// System is the real-time clock of the host.
type System struct {
	guard time.Duration
}

// NewSystem creates a system clock. A non-positive guard selects DefaultGuard.
func NewSystem(guard time.Duration) *System {
	if guard <= 0 {
		guard = DefaultGuard
	}
	return &System{guard: guard}
}

// Now returns the current wall-clock time.
func (s *System) Now() time.Time {
	return time.Now()
}

// SleepUntil waits on a cancellable timer until shortly before deadline and
// finishes with an absolute CLOCK_REALTIME wait, so suspend overhead never
// accumulates across deadlines.
func (s *System) SleepUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if coarse := time.Until(deadline) - s.guard; coarse > 0 {
		timer := time.NewTimer(coarse)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := sleepUntil(deadline); err != nil {
		return fmt.Errorf("%w: wait for %s: %v", ErrTiming, deadline.Format(time.RFC3339Nano), err)
	}
	return nil
}
