/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler runs the real-time transmission loop: one frame per
// minute, two carrier transitions per second, every wait aimed at an
// absolute wall-clock deadline.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/friendsincode/timesignal/internal/carrier"
	"github.com/friendsincode/timesignal/internal/clock"
	"github.com/friendsincode/timesignal/internal/events"
	"github.com/friendsincode/timesignal/internal/scheduler/state"
	"github.com/friendsincode/timesignal/internal/telemetry"
	"github.com/friendsincode/timesignal/internal/timecode"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLateThreshold is the wake-up lateness logged at warn level.
const DefaultLateThreshold = 10 * time.Millisecond

// ConsoleLayout is the format of the per-minute console line.
const ConsoleLayout = "2006-01-02 15:04:05"

// Encoder builds the frame for a minute.
type Encoder interface {
	Encode(minute time.Time) (timecode.Frame, error)
}

// Mapper returns the pulse width of one second of a frame.
type Mapper interface {
	ModulationDuration(f timecode.Frame, second int) (time.Duration, error)
}

// Config is the immutable description of one transmission session.
type Config struct {
	Profile     timecode.Profile
	Minutes     int
	CarrierOnly bool
	Verbose     bool
	// Location is the civil zone calendar fields are read in.
	Location *time.Location
	// EncodeOffset shifts the instant handed to the encoder without moving
	// any deadline.
	EncodeOffset  time.Duration
	LateThreshold time.Duration
	SessionID     string
}

// Deps are the collaborators of the loop. Encoder and Mapper default to the
// profile; Stdout and Stderr default to the process streams.
type Deps struct {
	Driver  carrier.Driver
	Clock   clock.Clock
	Encoder Encoder
	Mapper  Mapper
	Bus     events.Publisher
	Store   *state.Store
	Stdout  io.Writer
	Stderr  io.Writer
}

// Service drives the carrier for one session.
type Service struct {
	cfg     Config
	driver  carrier.Driver
	clock   clock.Clock
	encoder Encoder
	mapper  Mapper
	bus     events.Publisher
	store   *state.Store
	stdout  io.Writer
	stderr  io.Writer
	logger  zerolog.Logger
	label   string
	active  bool
	// joinedAt is when Run was entered; deadlines before it are catch-up.
	joinedAt time.Time
}

// New constructs the scheduler service.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.LateThreshold <= 0 {
		cfg.LateThreshold = DefaultLateThreshold
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if deps.Encoder == nil {
		deps.Encoder = cfg.Profile
	}
	if deps.Mapper == nil {
		deps.Mapper = cfg.Profile
	}
	if deps.Store == nil {
		deps.Store = state.NewStore()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	label := cfg.Profile.Standard.String()
	return &Service{
		cfg:     cfg,
		driver:  deps.Driver,
		clock:   deps.Clock,
		encoder: deps.Encoder,
		mapper:  deps.Mapper,
		bus:     deps.Bus,
		store:   deps.Store,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		label:   label,
		logger:  logger.With().Str("component", "scheduler").Str("standard", label).Str("session", cfg.SessionID).Logger(),
	}
}

// Store returns the status store the loop reports into.
func (s *Service) Store() *state.Store {
	return s.store
}

// Run transmits cfg.Minutes whole minutes starting at the minute containing
// start. It returns nil when the window completes, ctx.Err() when cancelled,
// and any other failure wrapped. The carrier is idle on every return.
func (s *Service) Run(ctx context.Context, start time.Time) (err error) {
	minuteStart := start.Truncate(time.Minute)
	s.joinedAt = start
	mode := state.ModeTimecode
	if s.cfg.CarrierOnly {
		mode = state.ModeCarrierOnly
	}

	ctx, span := telemetry.StartSpan(ctx, "transmit.session",
		attribute.String("standard", s.label),
		attribute.String("mode", mode),
		attribute.String("session_id", s.cfg.SessionID),
	)
	defer span.End()

	s.store.Begin(s.cfg.SessionID, s.label, mode, s.cfg.Minutes, s.clock.Now())
	telemetry.SessionRunning.WithLabelValues(s.label, mode).Set(1)
	s.publish(events.EventSessionStart, events.Payload{
		"standard":     s.label,
		"mode":         mode,
		"minutes":      s.cfg.Minutes,
		"window_start": minuteStart.UTC().Format(time.RFC3339),
		"frequency_hz": s.cfg.Profile.FrequencyHz,
	})
	s.logger.Info().
		Str("mode", mode).
		Int("minutes", s.cfg.Minutes).
		Time("window_start", minuteStart).
		Msg("transmission started")
	if elapsed := start.Sub(minuteStart); elapsed > 0 && !s.cfg.CarrierOnly {
		s.logger.Info().Dur("elapsed", elapsed).Msg("joining minute in progress")
	}

	defer func() {
		s.idle()
		reason := endReason(err)
		telemetry.SessionRunning.WithLabelValues(s.label, mode).Set(0)
		s.store.End(reason, s.clock.Now())
		st := s.store.Snapshot()
		payload := events.Payload{
			"standard":     s.label,
			"reason":       reason,
			"minutes_sent": st.MinutesSent,
			"late_wakeups": st.LateWakeups,
		}
		if err != nil && reason == "failed" {
			payload["error"] = err.Error()
			telemetry.RecordError(span, err)
		}
		s.publish(events.EventSessionEnd, payload)
		s.logger.Info().Str("reason", reason).Int("minutes_sent", st.MinutesSent).Msg("transmission ended")
	}()

	if s.cfg.CarrierOnly {
		return s.runCarrierOnly(ctx, minuteStart)
	}
	for i := 0; i < s.cfg.Minutes; i++ {
		if err := s.transmitMinute(ctx, minuteStart); err != nil {
			return err
		}
		minuteStart = minuteStart.Add(time.Minute)
	}
	return nil
}

// runCarrierOnly enables the carrier once and holds it for the window.
func (s *Service) runCarrierOnly(ctx context.Context, minuteStart time.Time) error {
	if err := s.set(true); err != nil {
		return err
	}
	end := minuteStart.Add(time.Duration(s.cfg.Minutes) * time.Minute)
	if err := s.clock.SleepUntil(ctx, end); err != nil {
		return s.timingFailure(err)
	}
	return nil
}

func (s *Service) transmitMinute(ctx context.Context, minuteStart time.Time) error {
	civil := minuteStart.Add(s.cfg.EncodeOffset).In(s.cfg.Location)
	frame, err := s.encoder.Encode(civil.Add(s.cfg.Profile.FrameLead))
	if err != nil {
		return fmt.Errorf("encode %s minute %s: %w", s.label, civil.Format(ConsoleLayout), err)
	}

	ctx, span := telemetry.StartSpan(ctx, "transmit.minute", attribute.String("minute", civil.Format(time.RFC3339)))
	defer span.End()

	fmt.Fprintln(s.stdout, civil.Format(ConsoleLayout))
	s.store.StartMinute(civil, frame.String())
	s.publish(events.EventMinuteStart, events.Payload{
		"standard": s.label,
		"minute":   civil.Format(time.RFC3339),
		"frame":    frame.String(),
	})

	phase1 := s.cfg.Profile.Phase1Active
	phase2 := s.cfg.Profile.Phase2Active()
	for second := 0; second < timecode.FrameLength; second++ {
		width, err := s.mapper.ModulationDuration(frame, second)
		if err != nil {
			return fmt.Errorf("modulation for second %d: %w", second, err)
		}
		boundary := minuteStart.Add(time.Duration(second) * time.Second)
		woke, err := s.waitUntil(ctx, boundary)
		if err != nil {
			return err
		}

		// A zero-width element leaves the carrier in its phase-2 state for
		// the whole second.
		if width == 0 {
			if err := s.set(phase2); err != nil {
				return err
			}
			s.account(boundary, woke)
			s.store.SetSecond(second)
			s.verbose(second, width)
			continue
		}
		if err := s.set(phase1); err != nil {
			return err
		}
		s.account(boundary, woke)
		s.store.SetSecond(second)
		s.verbose(second, width)

		end := boundary.Add(width)
		if woke, err = s.waitUntil(ctx, end); err != nil {
			return err
		}
		if err := s.set(phase2); err != nil {
			return err
		}
		s.account(end, woke)
	}

	sent := s.store.FinishMinute(s.clock.Now())
	telemetry.MinutesTransmittedTotal.WithLabelValues(s.label).Inc()
	s.logger.Debug().
		Time("minute", civil).
		Dur("max_lateness", sent.MaxLateness).
		Msg("minute transmitted")
	return nil
}

// waitUntil suspends until deadline and returns the time it woke. Nothing
// else runs between the wake-up and the caller's carrier transition.
func (s *Service) waitUntil(ctx context.Context, deadline time.Time) (time.Time, error) {
	if err := s.clock.SleepUntil(ctx, deadline); err != nil {
		return time.Time{}, s.timingFailure(err)
	}
	return s.clock.Now(), nil
}

// account records how late the wake-up for deadline was. Deadlines that had
// already passed when the session started are sent immediately and are not
// counted.
func (s *Service) account(deadline, woke time.Time) {
	if deadline.Before(s.joinedAt) {
		return
	}
	lateness := woke.Sub(deadline)
	if lateness < 0 {
		lateness = 0
	}
	late := lateness > s.cfg.LateThreshold
	s.store.ObserveLateness(lateness, late)
	telemetry.WakeLateness.WithLabelValues(s.label).Observe(lateness.Seconds())
	if late {
		telemetry.LateWakeupsTotal.WithLabelValues(s.label).Inc()
		s.logger.Warn().Dur("lateness", lateness).Time("deadline", deadline).Msg("late wake-up")
	}
}

func (s *Service) timingFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	telemetry.TimingErrorsTotal.Inc()
	if errors.Is(err, clock.ErrTiming) {
		return err
	}
	return fmt.Errorf("%w: %v", clock.ErrTiming, err)
}

func (s *Service) set(active bool) error {
	if err := s.driver.SetOutputState(active); err != nil {
		return fmt.Errorf("set carrier output %v: %w", active, err)
	}
	s.active = active
	s.store.SetCarrier(active)
	telemetry.TransitionsTotal.WithLabelValues(s.label).Inc()
	telemetry.CarrierActive.Set(telemetry.BoolGauge(active))
	return nil
}

// idle forces the carrier to its idle state on every exit path.
func (s *Service) idle() {
	idle := s.cfg.Profile.IdleState()
	if err := s.driver.SetOutputState(idle); err != nil {
		s.logger.Error().Err(err).Msg("failed to idle carrier")
		return
	}
	if s.active != idle {
		s.store.SetCarrier(idle)
	}
	s.active = idle
	telemetry.CarrierActive.Set(telemetry.BoolGauge(idle))
}

func (s *Service) verbose(second int, width time.Duration) {
	if !s.cfg.Verbose {
		return
	}
	fmt.Fprintf(s.stderr, "%03d ", width.Milliseconds())
	if (second+1)%15 == 0 {
		fmt.Fprintln(s.stderr)
	}
}

func (s *Service) publish(et events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	payload["session_id"] = s.cfg.SessionID
	s.bus.Publish(et, payload)
}

func endReason(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "stopped"
	default:
		return "failed"
	}
}
