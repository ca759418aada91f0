/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package state keeps the in-memory view of the running transmission that
// the status API reads.
package state

import (
	"sync"
	"time"
)

// Mode values reported in Status.
const (
	ModeTimecode    = "timecode"
	ModeCarrierOnly = "carrier-only"
)

// Status is a snapshot of a transmission session.
type Status struct {
	SessionID      string        `json:"session_id,omitempty"`
	Standard       string        `json:"standard,omitempty"`
	Mode           string        `json:"mode,omitempty"`
	Running        bool          `json:"running"`
	StartedAt      time.Time     `json:"started_at,omitempty"`
	EndedAt        time.Time     `json:"ended_at,omitempty"`
	EndReason      string        `json:"end_reason,omitempty"`
	Minute         time.Time     `json:"minute,omitempty"`
	Second         int           `json:"second"`
	Frame          string        `json:"frame,omitempty"`
	CarrierActive  bool          `json:"carrier_active"`
	MinutesSent    int           `json:"minutes_sent"`
	MinutesPlanned int           `json:"minutes_planned"`
	Transitions    uint64        `json:"transitions"`
	LateWakeups    uint64        `json:"late_wakeups"`
	MaxLateness    time.Duration `json:"max_lateness_ns"`
}

// SentMinute records one fully transmitted minute.
type SentMinute struct {
	Minute      time.Time     `json:"minute"`
	Frame       string        `json:"frame"`
	MaxLateness time.Duration `json:"max_lateness_ns"`
	CompletedAt time.Time     `json:"completed_at"`
}

const recentLimit = 60

// Store keeps the current status plus the last minutes sent.
type Store struct {
	mu            sync.RWMutex
	status        Status
	minuteLateMax time.Duration
	recent        []SentMinute
}

// NewStore creates a scheduler state store.
func NewStore() *Store {
	return &Store{recent: make([]SentMinute, 0, recentLimit)}
}

// Begin resets the store for a new session.
func (s *Store) Begin(sessionID, standard, mode string, minutes int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{
		SessionID:      sessionID,
		Standard:       standard,
		Mode:           mode,
		Running:        true,
		StartedAt:      at,
		MinutesPlanned: minutes,
	}
	s.minuteLateMax = 0
	s.recent = s.recent[:0]
}

// StartMinute records the frame now being transmitted.
func (s *Store) StartMinute(minute time.Time, frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Minute = minute
	s.status.Frame = frame
	s.status.Second = 0
	s.minuteLateMax = 0
}

// SetSecond records the second in progress.
func (s *Store) SetSecond(second int) {
	s.mu.Lock()
	s.status.Second = second
	s.mu.Unlock()
}

// SetCarrier records an output state change.
func (s *Store) SetCarrier(active bool) {
	s.mu.Lock()
	s.status.CarrierActive = active
	s.status.Transitions++
	s.mu.Unlock()
}

// ObserveLateness records how late a wake-up was; late marks it as beyond
// the warning threshold.
func (s *Store) ObserveLateness(d time.Duration, late bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if late {
		s.status.LateWakeups++
	}
	if d > s.status.MaxLateness {
		s.status.MaxLateness = d
	}
	if d > s.minuteLateMax {
		s.minuteLateMax = d
	}
}

// FinishMinute moves the current minute into the recent list.
func (s *Store) FinishMinute(at time.Time) SentMinute {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.MinutesSent++
	sent := SentMinute{
		Minute:      s.status.Minute,
		Frame:       s.status.Frame,
		MaxLateness: s.minuteLateMax,
		CompletedAt: at,
	}
	if len(s.recent) == recentLimit {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:recentLimit-1]
	}
	s.recent = append(s.recent, sent)
	return sent
}

// End marks the session finished.
func (s *Store) End(reason string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.EndReason = reason
	s.status.EndedAt = at
}

// Snapshot returns the current status.
func (s *Store) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Recent returns the minutes sent, oldest first.
func (s *Store) Recent() []SentMinute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SentMinute, len(s.recent))
	copy(out, s.recent)
	return out
}
