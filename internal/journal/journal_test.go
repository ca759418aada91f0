/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/friendsincode/timesignal/internal/config"
	"github.com/friendsincode/timesignal/internal/events"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Connect(config.DatabaseSQLite, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestConnectRejectsUnknownBackend(t *testing.T) {
	if _, err := Connect("oracle", "dsn"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRecorderPersistsSession(t *testing.T) {
	db := newTestDB(t)
	bus := events.NewBus()
	rec := NewRecorder(db, bus, zerolog.Nop())
	fixed := time.Date(2023, 1, 1, 0, 0, 5, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	bus.Publish(events.EventSessionStart, events.Payload{
		"session_id":   "s1",
		"standard":     "DCF77",
		"mode":         "timecode",
		"minutes":      2,
		"frequency_hz": 77500,
		"window_start": "2023-01-01T00:00:00Z",
	})
	for i, frame := range []string{"frame-a", "frame-b"} {
		bus.Publish(events.EventMinuteStart, events.Payload{
			"session_id": "s1",
			"standard":   "DCF77",
			"minute":     time.Date(2023, 1, 1, 1, i, 0, 0, time.FixedZone("CET", 3600)).Format(time.RFC3339),
			"frame":      frame,
		})
	}
	bus.Publish(events.EventSessionEnd, events.Payload{
		"session_id":   "s1",
		"standard":     "DCF77",
		"reason":       "completed",
		"minutes_sent": 2,
		"late_wakeups": uint64(1),
	})

	waitFor(t, func() bool {
		var s Session
		return db.First(&s, "id = ?", "s1").Error == nil && s.EndReason != ""
	})

	sessions, err := Sessions(context.Background(), db, 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	s := sessions[0]
	if s.Standard != "DCF77" || s.Minutes != 2 || s.FrequencyHz != 77500 || s.MinutesSent != 2 || s.LateWakeups != 1 || s.EndReason != "completed" {
		t.Errorf("session = %+v", s)
	}
	if s.EndedAt == nil || !s.EndedAt.Equal(fixed) {
		t.Errorf("EndedAt = %v, want %v", s.EndedAt, fixed)
	}
	if !s.WindowStart.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("WindowStart = %v", s.WindowStart)
	}

	minutes, err := Minutes(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("Minutes: %v", err)
	}
	if len(minutes) != 2 || minutes[0].Frame != "frame-a" || minutes[1].Frame != "frame-b" {
		t.Fatalf("minutes = %+v", minutes)
	}
	if !minutes[0].Minute.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first minute = %v", minutes[0].Minute)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestRecorderSkipsMalformedEvents(t *testing.T) {
	db := newTestDB(t)
	bus := events.NewBus()
	rec := NewRecorder(db, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	bus.Publish(events.EventSessionStart, events.Payload{"standard": "WWVB"})
	bus.Publish(events.EventMinuteStart, events.Payload{"session_id": "x", "minute": "not a time"})
	bus.Publish(events.EventSessionStart, events.Payload{"session_id": "s2", "standard": "WWVB"})

	waitFor(t, func() bool {
		var n int64
		db.Model(&Session{}).Count(&n)
		return n == 1
	})
	var m int64
	db.Model(&Minute{}).Count(&m)
	if m != 0 {
		t.Errorf("minutes = %d, want 0", m)
	}
}
