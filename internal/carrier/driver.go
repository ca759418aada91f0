/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package carrier drives the physical carrier output the time code is
// keyed onto.
package carrier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotInitialized indicates a call made before Initialize succeeded.
	ErrNotInitialized = errors.New("carrier driver not initialized")

	// ErrUnsupported indicates the driver cannot run on this host.
	ErrUnsupported = errors.New("carrier driver unsupported on this host")
)

// Driver owns the oscillator and output pin. SetOutputState must take effect
// well within a millisecond; active=true means full carrier.
type Driver interface {
	Initialize() error
	StartCarrier(frequencyHz int) error
	SetOutputState(active bool) error
	Stop() error
}

// Kind names a driver implementation.
type Kind string

const (
	KindGPCLK Kind = "gpclk"
	KindLog   Kind = "log"
)

// ParseKind resolves a driver name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindGPCLK, KindLog:
		return k, nil
	default:
		return "", fmt.Errorf("unknown carrier driver %q (want gpclk or log)", name)
	}
}

// New builds the driver of the given kind.
func New(kind Kind, cfg GPCLKConfig, logger zerolog.Logger) (Driver, error) {
	switch kind {
	case KindGPCLK:
		return NewGPCLK(cfg, logger), nil
	case KindLog:
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown carrier driver %q", kind)
	}
}
