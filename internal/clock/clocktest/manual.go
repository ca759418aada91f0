/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clocktest provides a virtual clock for exercising timing loops
// without waiting in real time.
package clocktest

import (
	"context"
	"sync"
	"time"
)

// Manual is a clock whose time only moves when SleepUntil is called.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Time

	// Lateness is added to every wake-up to simulate scheduling jitter.
	Lateness time.Duration
	// OnSleep runs before each suspend; a returned error fails the suspend.
	OnSleep func(deadline time.Time) error
}

// NewManual creates a manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// SleepUntil jumps the virtual time to deadline plus Lateness.
func (m *Manual) SleepUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.OnSleep != nil {
		if err := m.OnSleep(deadline); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, deadline)
	if !deadline.Before(m.now) {
		m.now = deadline.Add(m.Lateness)
	}
	return nil
}

// Sleeps returns every deadline waited for, in order.
func (m *Manual) Sleeps() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}
