/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBufferWrapsAround(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Add(Entry{Message: fmt.Sprintf("m%d", i)})
	}
	all := b.All()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if all[i].Message != want {
			t.Errorf("all[%d] = %q, want %q", i, all[i].Message, want)
		}
	}
}

func TestQuery(t *testing.T) {
	b := New(10)
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	b.Add(Entry{Timestamp: base, Level: "info", Component: "scheduler", Message: "transmission started"})
	b.Add(Entry{Timestamp: base.Add(time.Second), Level: "warn", Component: "scheduler", Message: "late wake-up"})
	b.Add(Entry{Timestamp: base.Add(2 * time.Second), Level: "warn", Component: "journal", Message: "journal write failed", Fields: map[string]any{"event": "minute.start"}})

	tests := []struct {
		name   string
		params QueryParams
		want   []string
	}{
		{"all", QueryParams{}, []string{"transmission started", "late wake-up", "journal write failed"}},
		{"level", QueryParams{Level: "warn"}, []string{"late wake-up", "journal write failed"}},
		{"component", QueryParams{Component: "scheduler"}, []string{"transmission started", "late wake-up"}},
		{"search field", QueryParams{Search: "MINUTE"}, []string{"journal write failed"}},
		{"since", QueryParams{Since: base.Add(time.Second)}, []string{"late wake-up", "journal write failed"}},
		{"newest first limited", QueryParams{Descending: true, Limit: 2}, []string{"journal write failed", "late wake-up"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Query(tt.params)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Message != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i].Message, tt.want[i])
				}
			}
		})
	}

	st := b.Stats()
	if st.Count != 3 || st.LevelCount["warn"] != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestWriterCapturesZerolog(t *testing.T) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	b := New(10)
	logger := zerolog.New(NewWriter(b)).With().Timestamp().Logger()
	logger.Warn().Str("component", "scheduler").Dur("lateness", 12*time.Millisecond).Msg("late wake-up")

	all := b.All()
	if len(all) != 1 {
		t.Fatalf("entries = %d", len(all))
	}
	e := all[0]
	if e.Level != "warn" || e.Component != "scheduler" || e.Message != "late wake-up" {
		t.Errorf("entry = %+v", e)
	}
	if _, ok := e.Fields["lateness"]; !ok {
		t.Errorf("fields = %v", e.Fields)
	}
	if time.Since(e.Timestamp) > time.Minute {
		t.Errorf("timestamp = %v", e.Timestamp)
	}

	if n, err := NewWriter(b).Write([]byte("not json\n")); err != nil || n != 9 {
		t.Errorf("Write = %d, %v", n, err)
	}
	if len(b.All()) != 1 {
		t.Error("non-JSON line was captured")
	}
}
