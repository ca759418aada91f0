/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package transmitter owns the carrier for the life of the process: it
// brings the driver up, hands control to the scheduler and guarantees the
// carrier is idle and stopped however the run ends.
package transmitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/friendsincode/timesignal/internal/carrier"
	"github.com/friendsincode/timesignal/internal/clock"
	"github.com/friendsincode/timesignal/internal/events"
	"github.com/friendsincode/timesignal/internal/scheduler"
	"github.com/friendsincode/timesignal/internal/scheduler/state"
	"github.com/friendsincode/timesignal/internal/timecode"
	"github.com/rs/zerolog"
)

var (
	// ErrConfiguration indicates a missing or invalid service selection or
	// session option. The carrier is never started.
	ErrConfiguration = errors.New("configuration error")

	// ErrHardwareInit indicates the carrier driver failed to initialize or
	// start.
	ErrHardwareInit = errors.New("carrier hardware init failed")
)

// Options describe one transmission run.
type Options struct {
	Service     string
	Minutes     int
	CarrierOnly bool
	Verbose     bool
	Location    *time.Location
	// JJYOffset shifts the instant JJY frames are encoded from. Other
	// standards ignore it.
	JJYOffset     time.Duration
	LateThreshold time.Duration
	// RealtimePriority is the SCHED_FIFO priority requested for the timing
	// thread. Zero skips the request.
	RealtimePriority int
	SessionID        string
}

// Deps are the collaborators handed through to the scheduler.
type Deps struct {
	Driver carrier.Driver
	Clock  clock.Clock
	Bus    events.Publisher
	Store  *state.Store
	Stdout io.Writer
	Stderr io.Writer
}

// Transmitter runs the start-up and shutdown sequence around the scheduler.
type Transmitter struct {
	opts      Options
	profile   timecode.Profile
	driver    carrier.Driver
	clock     clock.Clock
	scheduler *scheduler.Service
	elevate   func(priority int) error
	logger    zerolog.Logger

	initialized  bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// ResolveProfile maps a service name to its standard record.
func ResolveProfile(service string) (timecode.Profile, error) {
	std, err := timecode.ParseStandard(service)
	if err != nil {
		return timecode.Profile{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	p, err := timecode.ProfileFor(std)
	if err != nil {
		return timecode.Profile{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return p, nil
}

// New validates the options and builds the scheduler. Nothing touches the
// carrier until Run.
func New(opts Options, deps Deps, logger zerolog.Logger) (*Transmitter, error) {
	profile, err := ResolveProfile(opts.Service)
	if err != nil {
		return nil, err
	}
	if opts.Minutes <= 0 {
		return nil, fmt.Errorf("%w: minutes must be positive, got %d", ErrConfiguration, opts.Minutes)
	}
	if deps.Driver == nil {
		return nil, fmt.Errorf("%w: no carrier driver", ErrConfiguration)
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem(0)
	}

	cfg := scheduler.Config{
		Profile:       profile,
		Minutes:       opts.Minutes,
		CarrierOnly:   opts.CarrierOnly,
		Verbose:       opts.Verbose,
		Location:      opts.Location,
		LateThreshold: opts.LateThreshold,
		SessionID:     opts.SessionID,
	}
	if profile.Standard == timecode.JJY40 || profile.Standard == timecode.JJY60 {
		cfg.EncodeOffset = opts.JJYOffset
	}

	sched := scheduler.New(cfg, scheduler.Deps{
		Driver: deps.Driver,
		Clock:  deps.Clock,
		Bus:    deps.Bus,
		Store:  deps.Store,
		Stdout: deps.Stdout,
		Stderr: deps.Stderr,
	}, logger)

	return &Transmitter{
		opts:      opts,
		profile:   profile,
		driver:    deps.Driver,
		clock:     deps.Clock,
		scheduler: sched,
		elevate:   clock.ElevatePriority,
		logger:    logger.With().Str("component", "transmitter").Str("standard", profile.Standard.String()).Logger(),
	}, nil
}

// Profile returns the standard record being transmitted.
func (t *Transmitter) Profile() timecode.Profile {
	return t.profile
}

// Store returns the live status of the session.
func (t *Transmitter) Store() *state.Store {
	return t.scheduler.Store()
}

// Run initializes and starts the carrier, then transmits until the window
// ends, ctx is cancelled or a fatal error occurs. Cancellation is a normal
// stop and returns nil. Shutdown has run on every return.
func (t *Transmitter) Run(ctx context.Context) error {
	if err := t.driver.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize: %w", ErrHardwareInit, err)
	}
	t.initialized = true
	defer func() {
		if err := t.Shutdown(); err != nil {
			t.logger.Error().Err(err).Msg("carrier shutdown failed")
		}
	}()

	if err := t.driver.StartCarrier(t.profile.FrequencyHz); err != nil {
		return fmt.Errorf("%w: start carrier at %d Hz: %w", ErrHardwareInit, t.profile.FrequencyHz, err)
	}
	t.logger.Info().
		Int("frequency_hz", t.profile.FrequencyHz).
		Bool("carrier_only", t.opts.CarrierOnly).
		Msg("carrier started")

	if t.opts.RealtimePriority > 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		switch err := t.elevate(t.opts.RealtimePriority); {
		case err == nil:
			t.logger.Info().Int("priority", t.opts.RealtimePriority).Msg("realtime priority set")
		case errors.Is(err, clock.ErrMemoryLock):
			t.logger.Warn().Err(err).Int("priority", t.opts.RealtimePriority).Msg("realtime priority set but memory not locked, page faults may delay transitions")
		default:
			t.logger.Warn().Err(err).Msg("running without realtime priority, timing may jitter")
		}
	}

	err := t.scheduler.Run(ctx, t.clock.Now())
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		t.logger.Info().Msg("termination requested")
		return nil
	}
	return err
}

// Shutdown drives the carrier idle and stops the driver. Only the first call
// acts; later calls return the first result.
func (t *Transmitter) Shutdown() error {
	t.shutdownOnce.Do(func() {
		if !t.initialized {
			return
		}
		var errs []error
		if err := t.driver.SetOutputState(t.profile.IdleState()); err != nil {
			errs = append(errs, fmt.Errorf("idle carrier: %w", err))
		}
		if err := t.driver.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop carrier: %w", err))
		}
		t.shutdownErr = errors.Join(errs...)
		t.logger.Info().Msg("carrier stopped")
	})
	return t.shutdownErr
}
