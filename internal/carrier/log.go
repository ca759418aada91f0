/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package carrier

import (
	"sync"

	"github.com/rs/zerolog"
)

// Log is a dry-run driver that only records and logs what it is asked to do.
type Log struct {
	mu          sync.Mutex
	initialized bool
	running     bool
	frequencyHz int
	active      bool
	transitions uint64
	logger      zerolog.Logger
}

// NewLog creates a dry-run driver.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "carrier").Str("driver", string(KindLog)).Logger()}
}

func (l *Log) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = true
	l.logger.Info().Msg("dry-run carrier initialized")
	return nil
}

func (l *Log) StartCarrier(frequencyHz int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return ErrNotInitialized
	}
	l.running = true
	l.frequencyHz = frequencyHz
	l.logger.Info().Int("frequency_hz", frequencyHz).Msg("dry-run carrier started")
	return nil
}

func (l *Log) SetOutputState(active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return ErrNotInitialized
	}
	l.active = active
	l.transitions++
	l.logger.Trace().Bool("active", active).Msg("output state")
	return nil
}

func (l *Log) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return nil
	}
	l.running = false
	l.active = false
	l.logger.Info().Uint64("transitions", l.transitions).Msg("dry-run carrier stopped")
	return nil
}

// Active reports the last requested output state.
func (l *Log) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Running reports whether the carrier is started.
func (l *Log) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// FrequencyHz returns the frequency the carrier was started at.
func (l *Log) FrequencyHz() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frequencyHz
}
