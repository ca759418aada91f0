/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/timesignal/internal/events"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Recorder writes bus events into the journal.
type Recorder struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time

	start  events.Subscriber
	minute events.Subscriber
	end    events.Subscriber
}

// NewRecorder subscribes to the session events on bus.
func NewRecorder(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Recorder {
	return &Recorder{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "journal").Logger(),
		now:    time.Now,
		start:  bus.Subscribe(events.EventSessionStart),
		minute: bus.Subscribe(events.EventMinuteStart),
		end:    bus.Subscribe(events.EventSessionEnd),
	}
}

// Run persists events until ctx is cancelled, then flushes whatever is still
// queued. Write failures are logged and dropped.
func (r *Recorder) Run(ctx context.Context) {
	defer func() {
		r.bus.Unsubscribe(events.EventSessionStart, r.start)
		r.bus.Unsubscribe(events.EventMinuteStart, r.minute)
		r.bus.Unsubscribe(events.EventSessionEnd, r.end)
	}()

	for {
		select {
		case <-ctx.Done():
			// Keep what the session published before the stop.
			flushCtx := context.WithoutCancel(ctx)
			r.drain(flushCtx, events.EventSessionStart, r.start)
			r.drain(flushCtx, events.EventMinuteStart, r.minute)
			r.drain(flushCtx, events.EventSessionEnd, r.end)
			return
		case p, ok := <-r.start:
			if !ok {
				return
			}
			r.handle(ctx, events.EventSessionStart, p)
		case p, ok := <-r.minute:
			if !ok {
				return
			}
			// Events of one session are published in order, so anything
			// already queued on an earlier stage belongs before this one.
			r.drain(ctx, events.EventSessionStart, r.start)
			r.handle(ctx, events.EventMinuteStart, p)
		case p, ok := <-r.end:
			if !ok {
				return
			}
			r.drain(ctx, events.EventSessionStart, r.start)
			r.drain(ctx, events.EventMinuteStart, r.minute)
			r.handle(ctx, events.EventSessionEnd, p)
		}
	}
}

func (r *Recorder) drain(ctx context.Context, et events.EventType, sub events.Subscriber) {
	for {
		select {
		case p, ok := <-sub:
			if !ok {
				return
			}
			r.handle(ctx, et, p)
		default:
			return
		}
	}
}

func (r *Recorder) handle(ctx context.Context, et events.EventType, p events.Payload) {
	var err error
	switch et {
	case events.EventSessionStart:
		err = r.recordStart(ctx, p)
	case events.EventMinuteStart:
		err = r.recordMinute(ctx, p)
	case events.EventSessionEnd:
		err = r.recordEnd(ctx, p)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("event", string(et)).Msg("journal write failed")
	}
}

func (r *Recorder) recordStart(ctx context.Context, p events.Payload) error {
	id := str(p, "session_id")
	if id == "" {
		return errors.New("session.start without session_id")
	}
	windowStart, _ := time.Parse(time.RFC3339, str(p, "window_start"))
	s := Session{
		ID:          id,
		Standard:    str(p, "standard"),
		Mode:        str(p, "mode"),
		FrequencyHz: num(p, "frequency_hz"),
		Minutes:     num(p, "minutes"),
		WindowStart: windowStart,
		StartedAt:   r.now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&s).Error
}

func (r *Recorder) recordMinute(ctx context.Context, p events.Payload) error {
	minute, err := time.Parse(time.RFC3339, str(p, "minute"))
	if err != nil {
		return fmt.Errorf("parse minute: %w", err)
	}
	m := Minute{
		SessionID: str(p, "session_id"),
		Standard:  str(p, "standard"),
		Minute:    minute.UTC(),
		Frame:     str(p, "frame"),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *Recorder) recordEnd(ctx context.Context, p events.Payload) error {
	ended := r.now().UTC()
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", str(p, "session_id")).
		Updates(map[string]any{
			"ended_at":     ended,
			"end_reason":   str(p, "reason"),
			"error":        str(p, "error"),
			"minutes_sent": num(p, "minutes_sent"),
			"late_wakeups": num(p, "late_wakeups"),
		}).Error
}

// Sessions returns the most recent sessions, newest first.
func Sessions(ctx context.Context, db *gorm.DB, limit int) ([]Session, error) {
	var out []Session
	err := db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Minutes returns the frames sent during a session in transmission order.
func Minutes(ctx context.Context, db *gorm.DB, sessionID string) ([]Minute, error) {
	var out []Minute
	err := db.WithContext(ctx).Where("session_id = ?", sessionID).Order("minute ASC").Find(&out).Error
	return out, err
}

func str(p events.Payload, key string) string {
	v, _ := p[key].(string)
	return v
}

func num(p events.Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
