/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"testing"
	"time"
)

func TestStoreSessionLifecycle(t *testing.T) {
	s := NewStore()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Begin("abc", "DCF77", ModeTimecode, 2, start)
	s.StartMinute(start, "frame-0")
	s.SetSecond(12)
	s.SetCarrier(true)
	s.SetCarrier(false)
	s.ObserveLateness(3*time.Millisecond, false)
	s.ObserveLateness(15*time.Millisecond, true)

	st := s.Snapshot()
	if !st.Running || st.SessionID != "abc" || st.Second != 12 || st.Transitions != 2 || st.CarrierActive {
		t.Errorf("unexpected status %+v", st)
	}
	if st.LateWakeups != 1 || st.MaxLateness != 15*time.Millisecond {
		t.Errorf("lateness = %d/%v", st.LateWakeups, st.MaxLateness)
	}

	sent := s.FinishMinute(start.Add(time.Minute))
	if sent.Frame != "frame-0" || sent.MaxLateness != 15*time.Millisecond {
		t.Errorf("sent minute = %+v", sent)
	}

	s.StartMinute(start.Add(time.Minute), "frame-1")
	s.ObserveLateness(time.Millisecond, false)
	if sent := s.FinishMinute(start.Add(2 * time.Minute)); sent.MaxLateness != time.Millisecond {
		t.Errorf("per-minute lateness not reset: %v", sent.MaxLateness)
	}

	s.End("completed", start.Add(2*time.Minute))
	st = s.Snapshot()
	if st.Running || st.EndReason != "completed" || st.MinutesSent != 2 {
		t.Errorf("unexpected final status %+v", st)
	}
	if got := len(s.Recent()); got != 2 {
		t.Errorf("recent = %d, want 2", got)
	}
}

func TestStoreRecentIsBounded(t *testing.T) {
	s := NewStore()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Begin("abc", "MSF", ModeTimecode, 100, start)

	for i := 0; i < recentLimit+5; i++ {
		s.StartMinute(start.Add(time.Duration(i)*time.Minute), "")
		s.FinishMinute(start)
	}

	recent := s.Recent()
	if len(recent) != recentLimit {
		t.Fatalf("recent = %d, want %d", len(recent), recentLimit)
	}
	if want := start.Add(5 * time.Minute); !recent[0].Minute.Equal(want) {
		t.Errorf("oldest = %v, want %v", recent[0].Minute, want)
	}
}

func TestStoreBeginResets(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Begin("one", "WWVB", ModeTimecode, 1, now)
	s.StartMinute(now, "x")
	s.FinishMinute(now)
	s.End("completed", now)

	s.Begin("two", "WWVB", ModeCarrierOnly, 3, now)
	st := s.Snapshot()
	if st.SessionID != "two" || st.MinutesSent != 0 || !st.Running || st.EndReason != "" {
		t.Errorf("status not reset: %+v", st)
	}
	if len(s.Recent()) != 0 {
		t.Error("recent not reset")
	}
}
