/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timecode encodes calendar minutes into the longwave time-code
// formats broadcast by DCF77, WWVB, JJY and MSF, and maps each second of a
// minute frame to the pulse width the carrier has to be modulated with.
package timecode

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidInput indicates a minute that is not aligned or falls outside
	// the calendar range a standard can represent.
	ErrInvalidInput = errors.New("invalid time-code input")

	// ErrIndexOutOfRange indicates a second index outside the frame.
	ErrIndexOutOfRange = errors.New("second index out of range")

	// ErrUnknownStandard indicates an unsupported service name or value.
	ErrUnknownStandard = errors.New("unknown time-code standard")

	// ErrParity indicates a decoded field group whose parity bit does not match.
	ErrParity = errors.New("parity mismatch")
)

// Standard identifies a time-code protocol.
type Standard int

const (
	DCF77 Standard = iota + 1
	WWVB
	JJY40
	JJY60
	MSF
)

var standardNames = map[Standard]string{
	DCF77: "DCF77",
	WWVB:  "WWVB",
	JJY40: "JJY40",
	JJY60: "JJY60",
	MSF:   "MSF",
}

// String returns the service name used on the command line.
func (s Standard) String() string {
	if name, ok := standardNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Standard(%d)", int(s))
}

// Standards lists every supported standard in a stable order.
func Standards() []Standard {
	return []Standard{DCF77, WWVB, JJY40, JJY60, MSF}
}

// ParseStandard resolves a case-insensitive service name.
func ParseStandard(name string) (Standard, error) {
	name = strings.TrimSpace(name)
	for _, s := range Standards() {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	if name == "" {
		return 0, fmt.Errorf("%w: no service selected", ErrUnknownStandard)
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStandard, name)
}

// Element is one signal element of a minute frame.
type Element uint8

const (
	ElementZero Element = iota
	ElementOne
	// ElementOneOne carries MSF's A and B bits both set.
	ElementOneOne
	ElementMarker
)

// String renders the element as a single frame character.
func (e Element) String() string {
	switch e {
	case ElementZero:
		return "0"
	case ElementOne:
		return "1"
	case ElementOneOne:
		return "B"
	case ElementMarker:
		return "M"
	}
	return "?"
}

// Profile is the immutable per-standard configuration record. The scheduler
// only consumes this record, so it never has to know which protocol it is
// driving.
type Profile struct {
	Standard    Standard
	FrequencyHz int
	// FrameLead is added to the minute start before encoding; DCF77 and MSF
	// announce the minute that follows the one being transmitted.
	FrameLead time.Duration
	// Phase1Active is the carrier output state at each second boundary.
	// Phase 2, at boundary plus the pulse width, is its complement.
	Phase1Active bool
	MinYear      int
	MaxYear      int

	pulses map[Element]time.Duration
	encode func(t time.Time) Frame
	decode func(f Frame) (Decoded, error)
}

// Phase2Active is the carrier output state after the pulse width elapsed.
func (p Profile) Phase2Active() bool {
	return !p.Phase1Active
}

// IdleState is the state the carrier is left in when transmission stops.
func (p Profile) IdleState() bool {
	return false
}

// PulseWidth returns the modulation duration for an element.
func (p Profile) PulseWidth(e Element) (time.Duration, bool) {
	d, ok := p.pulses[e]
	return d, ok
}

var profiles = map[Standard]Profile{
	DCF77: {
		Standard:     DCF77,
		FrequencyHz:  77500,
		FrameLead:    time.Minute,
		Phase1Active: false,
		MinYear:      2000,
		MaxYear:      2099,
		pulses: map[Element]time.Duration{
			ElementZero:   100 * time.Millisecond,
			ElementOne:    200 * time.Millisecond,
			ElementMarker: 0,
		},
		encode: encodeDCF77,
		decode: decodeDCF77,
	},
	WWVB: {
		Standard:     WWVB,
		FrequencyHz:  60000,
		Phase1Active: false,
		MinYear:      2000,
		MaxYear:      2099,
		pulses: map[Element]time.Duration{
			ElementZero:   200 * time.Millisecond,
			ElementOne:    500 * time.Millisecond,
			ElementMarker: 800 * time.Millisecond,
		},
		encode: encodeWWVB,
		decode: decodeWWVB,
	},
	JJY40: jjyProfile(JJY40, 40000),
	JJY60: jjyProfile(JJY60, 60000),
	MSF: {
		Standard:     MSF,
		FrequencyHz:  60000,
		FrameLead:    time.Minute,
		Phase1Active: false,
		MinYear:      2000,
		MaxYear:      2099,
		pulses: map[Element]time.Duration{
			ElementZero:   100 * time.Millisecond,
			ElementOne:    200 * time.Millisecond,
			ElementOneOne: 300 * time.Millisecond,
			ElementMarker: 500 * time.Millisecond,
		},
		encode: encodeMSF,
		decode: decodeMSF,
	},
}

func jjyProfile(s Standard, hz int) Profile {
	return Profile{
		Standard:     s,
		FrequencyHz:  hz,
		Phase1Active: true,
		MinYear:      2000,
		MaxYear:      2099,
		pulses: map[Element]time.Duration{
			ElementZero:   800 * time.Millisecond,
			ElementOne:    500 * time.Millisecond,
			ElementMarker: 200 * time.Millisecond,
		},
		encode: encodeJJY,
		decode: decodeJJY,
	}
}

// ProfileFor returns the configuration record of a standard.
func ProfileFor(s Standard) (Profile, error) {
	p, ok := profiles[s]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %v", ErrUnknownStandard, s)
	}
	return p, nil
}
