/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timecode

import (
	"errors"
	"testing"
	"time"
)

var (
	cet = time.FixedZone("CET", 3600)
	jst = time.FixedZone("JST", 9*3600)
)

func TestParseStandard(t *testing.T) {
	tests := []struct {
		name    string
		want    Standard
		wantErr bool
	}{
		{name: "DCF77", want: DCF77},
		{name: "dcf77", want: DCF77},
		{name: "WWVB", want: WWVB},
		{name: "jjy40", want: JJY40},
		{name: "JJY60", want: JJY60},
		{name: " msf ", want: MSF},
		{name: "", wantErr: true},
		{name: "JJY", wantErr: true},
		{name: "HBG", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStandard(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownStandard) {
					t.Fatalf("ParseStandard(%q) error = %v, want ErrUnknownStandard", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStandard(%q) unexpected error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseStandard(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		standard     Standard
		frequency    int
		lead         time.Duration
		phase1Active bool
	}{
		{DCF77, 77500, time.Minute, false},
		{WWVB, 60000, 0, false},
		{JJY40, 40000, 0, true},
		{JJY60, 60000, 0, true},
		{MSF, 60000, time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.standard.String(), func(t *testing.T) {
			p, err := ProfileFor(tt.standard)
			if err != nil {
				t.Fatalf("ProfileFor: %v", err)
			}
			if p.FrequencyHz != tt.frequency {
				t.Errorf("FrequencyHz = %d, want %d", p.FrequencyHz, tt.frequency)
			}
			if p.FrameLead != tt.lead {
				t.Errorf("FrameLead = %v, want %v", p.FrameLead, tt.lead)
			}
			if p.Phase1Active != tt.phase1Active {
				t.Errorf("Phase1Active = %v, want %v", p.Phase1Active, tt.phase1Active)
			}
			if p.Phase2Active() == p.Phase1Active {
				t.Error("phase 2 must be the complement of phase 1")
			}
			if p.IdleState() {
				t.Error("idle state must be carrier off")
			}
		})
	}

	if _, err := ProfileFor(Standard(42)); !errors.Is(err, ErrUnknownStandard) {
		t.Errorf("ProfileFor(42) error = %v, want ErrUnknownStandard", err)
	}
}

func TestEncodeDCF77NewYear2023(t *testing.T) {
	minute := time.Date(2023, 1, 1, 0, 0, 0, 0, cet)

	f, err := Encode(DCF77, minute)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := "0000000000 0000000010 1000000000 0000001000 0011110000 110001000M"
	if got := f.String(); got != want {
		t.Fatalf("frame = %s\n            want %s", got, want)
	}

	d, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := d.Time(cet); !got.Equal(minute) {
		t.Errorf("decoded %v, want %v", got, minute)
	}
	if d.Weekday != time.Sunday {
		t.Errorf("weekday = %v, want Sunday", d.Weekday)
	}
	if d.DST {
		t.Error("January must not be flagged CEST")
	}
}

func TestEncodeJJYNewYear2023(t *testing.T) {
	minute := time.Date(2023, 1, 1, 0, 0, 0, 0, jst)

	f, err := Encode(JJY60, minute)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if f.Standard() != JJY60 {
		t.Fatalf("frame standard = %v, want JJY60", f.Standard())
	}

	want := "M00000000M 000000000M 000000000M 000100000M 000100011M 000000000M"
	if got := f.String(); got != want {
		t.Fatalf("frame = %s\n            want %s", got, want)
	}
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		standard Standard
		minute   time.Time
	}{
		{"seconds set", DCF77, time.Date(2023, 1, 1, 0, 0, 30, 0, cet)},
		{"nanoseconds set", MSF, time.Date(2023, 1, 1, 0, 0, 0, 1, time.UTC)},
		{"before 2000", JJY60, time.Date(1999, 12, 31, 23, 59, 0, 0, jst)},
		{"after 2099", WWVB, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.standard, tt.minute); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Encode error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// sampleMinutes walks an irregular stride across the representable range so
// that every digit of every field gets exercised.
func sampleMinutes(loc *time.Location) []time.Time {
	var out []time.Time
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, loc)
	end := time.Date(2099, 12, 31, 23, 59, 0, 0, loc)
	for t := start; t.Before(end); t = t.Add(7919 * time.Minute * 13) {
		out = append(out, t)
	}
	return append(out, end, time.Date(2024, 2, 29, 12, 34, 0, 0, loc), time.Date(2023, 12, 31, 23, 59, 0, 0, loc))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	zones := map[Standard]*time.Location{
		DCF77: cet,
		WWVB:  time.UTC,
		JJY40: jst,
		JJY60: jst,
		MSF:   time.UTC,
	}

	for _, s := range Standards() {
		t.Run(s.String(), func(t *testing.T) {
			for _, minute := range sampleMinutes(zones[s]) {
				f, err := Encode(s, minute)
				if err != nil {
					t.Fatalf("Encode(%v): %v", minute, err)
				}
				d, err := Decode(f)
				if err != nil {
					t.Fatalf("Decode(%v): %v\nframe %s", minute, err, f)
				}
				if got := d.Time(minute.Location()); !got.Equal(minute) {
					t.Fatalf("round trip %v -> %v", minute, got)
				}
				if d.Weekday != minute.Weekday() {
					t.Fatalf("weekday %v, want %v", d.Weekday, minute.Weekday())
				}
				if d.YearDay != minute.YearDay() {
					t.Fatalf("year day %d, want %d", d.YearDay, minute.YearDay())
				}
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	for _, s := range Standards() {
		for _, minute := range sampleMinutes(time.UTC) {
			a, errA := Encode(s, minute)
			b, errB := Encode(s, minute)
			if errA != nil || errB != nil {
				t.Fatalf("Encode(%v, %v): %v / %v", s, minute, errA, errB)
			}
			if a != b {
				t.Fatalf("Encode(%v, %v) not deterministic:\n%s\n%s", s, minute, a, b)
			}
		}
	}
}

func TestParityBits(t *testing.T) {
	for _, minute := range sampleMinutes(time.UTC) {
		dcf, _ := Encode(DCF77, minute)
		b := frameBits(dcf)
		for _, g := range [][3]int{{21, 27, 28}, {29, 34, 35}, {36, 57, 58}} {
			if ones(b, g[0], g[2])%2 != 0 {
				t.Fatalf("DCF77 %v: bits %d-%d plus parity not even", minute, g[0], g[1])
			}
		}

		jjy, _ := Encode(JJY60, minute)
		b = frameBits(jjy)
		if (ones(b, 12, 18)%2 == 1) != b.has(36) {
			t.Fatalf("JJY %v: PA1 wrong", minute)
		}
		if (ones(b, 1, 8)%2 == 1) != b.has(37) {
			t.Fatalf("JJY %v: PA2 wrong", minute)
		}

		msf, _ := Encode(MSF, minute)
		for _, g := range [][3]int{{17, 24, 54}, {25, 35, 55}, {36, 38, 56}, {39, 51, 57}} {
			n := 0
			for sec := g[0]; sec <= g[1]; sec++ {
				if e, _ := msf.At(sec); e != ElementZero {
					n++
				}
			}
			if e, _ := msf.At(g[2]); e == ElementOneOne {
				n++
			}
			if n%2 != 1 {
				t.Fatalf("MSF %v: bits %d-%d plus parity not odd", minute, g[0], g[1])
			}
		}
	}
}

func ones(b bits, from, to int) int {
	n := 0
	for s := from; s <= to; s++ {
		if b.has(s) {
			n++
		}
	}
	return n
}

func TestDecodeDetectsCorruption(t *testing.T) {
	f, err := Encode(DCF77, time.Date(2023, 6, 15, 12, 34, 0, 0, cet))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Flip the minute-units 1 bit.
	if f.elements[21] == ElementOne {
		f.elements[21] = ElementZero
	} else {
		f.elements[21] = ElementOne
	}
	if _, err := Decode(f); !errors.Is(err, ErrParity) {
		t.Errorf("Decode error = %v, want ErrParity", err)
	}
}

func TestModulationDuration(t *testing.T) {
	tests := []struct {
		standard Standard
		zone     *time.Location
		second   int
		want     time.Duration
	}{
		{DCF77, cet, 0, 100 * time.Millisecond},  // always zero
		{DCF77, cet, 20, 200 * time.Millisecond}, // start of time
		{DCF77, cet, 59, 0},                      // minute marker
		{WWVB, time.UTC, 0, 800 * time.Millisecond},
		{WWVB, time.UTC, 4, 200 * time.Millisecond},
		{JJY60, jst, 0, 200 * time.Millisecond},
		{JJY60, jst, 33, 500 * time.Millisecond}, // day 1
		{JJY60, jst, 34, 800 * time.Millisecond},
		{MSF, time.UTC, 0, 500 * time.Millisecond},
		{MSF, time.UTC, 52, 100 * time.Millisecond},
		{MSF, time.UTC, 53, 200 * time.Millisecond},
	}

	for _, tt := range tests {
		f, err := Encode(tt.standard, time.Date(2023, 1, 1, 0, 0, 0, 0, tt.zone))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := ModulationDuration(tt.standard, f, tt.second)
		if err != nil {
			t.Fatalf("ModulationDuration(%v, %d): %v", tt.standard, tt.second, err)
		}
		if got != tt.want {
			t.Errorf("ModulationDuration(%v, %d) = %v, want %v", tt.standard, tt.second, got, tt.want)
		}
	}
}

func TestModulationDurationBounds(t *testing.T) {
	for _, s := range Standards() {
		p, _ := ProfileFor(s)
		for _, minute := range sampleMinutes(time.UTC) {
			f, err := p.Encode(minute)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			widths, err := p.PulseWidths(f)
			if err != nil {
				t.Fatalf("PulseWidths: %v", err)
			}
			for sec, d := range widths {
				if d < 0 || d > 999*time.Millisecond {
					t.Fatalf("%v second %d: width %v outside [0, 999ms]", s, sec, d)
				}
				e, _ := f.At(sec)
				if want, _ := p.PulseWidth(e); d != want {
					t.Fatalf("%v second %d: width %v does not follow element %v", s, sec, d, e)
				}
			}
		}

		f, _ := p.Encode(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
		for _, sec := range []int{-1, 60, 61} {
			if _, err := p.ModulationDuration(f, sec); !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("%v second %d: error = %v, want ErrIndexOutOfRange", s, sec, err)
			}
		}
	}
}

func TestModulationDurationRejectsForeignFrame(t *testing.T) {
	f, _ := Encode(JJY40, time.Date(2023, 1, 1, 0, 0, 0, 0, jst))
	if _, err := ModulationDuration(DCF77, f, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestSummerTimeFlags(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	denver, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// CET -> CEST on 2023-03-26 at 02:00 local.
	f, _ := Encode(DCF77, time.Date(2023, 3, 26, 1, 30, 0, 0, berlin))
	d, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !d.DSTChange || d.DST {
		t.Errorf("DCF77 01:30 before change: DSTChange=%v DST=%v, want true/false", d.DSTChange, d.DST)
	}
	f, _ = Encode(DCF77, time.Date(2023, 3, 26, 0, 30, 0, 0, berlin))
	if d, _ := Decode(f); d.DSTChange {
		t.Error("DCF77 00:30: announcement set more than one hour early")
	}

	// Frames announce the following minute, so the frame encoding 01:00 CET
	// is on air at 00:59 and the one encoding 03:00 CEST at 01:59 CET.
	announce := []struct {
		name    string
		encodes time.Time
		want    bool
	}{
		{"sent 00:59 CET", time.Date(2023, 3, 26, 1, 0, 0, 0, berlin), false},
		{"sent 01:00 CET", time.Date(2023, 3, 26, 1, 1, 0, 0, berlin), true},
		{"sent 01:59 CET", time.Date(2023, 3, 26, 3, 0, 0, 0, berlin), true},
		{"sent 03:00 CEST", time.Date(2023, 3, 26, 3, 1, 0, 0, berlin), false},
	}
	for _, tt := range announce {
		f, err := Encode(DCF77, tt.encodes)
		if err != nil {
			t.Fatalf("%s: Encode: %v", tt.name, err)
		}
		if got := frameBits(f).has(16); got != tt.want {
			t.Errorf("DCF77 %s: A1 = %v, want %v", tt.name, got, tt.want)
		}
	}

	f, _ = Encode(DCF77, time.Date(2023, 7, 1, 12, 0, 0, 0, berlin))
	if d, _ := Decode(f); !d.DST {
		t.Error("DCF77 July: CEST flag not set")
	}

	// GMT -> BST on 2023-03-26 at 01:00 local.
	f, _ = Encode(MSF, time.Date(2023, 3, 26, 0, 0, 0, 0, london))
	if d, _ := Decode(f); !d.DSTChange {
		t.Error("MSF 00:00 before change: warning bit not set")
	}
	// 53B is on air from 23:59 GMT, 61 minutes before the change, through 00:59.
	msfWarning := []struct {
		name    string
		encodes time.Time
		want    bool
	}{
		{"sent 23:58 GMT", time.Date(2023, 3, 25, 23, 59, 0, 0, london), false},
		{"sent 23:59 GMT", time.Date(2023, 3, 26, 0, 0, 0, 0, london), true},
		{"sent 00:59 GMT", time.Date(2023, 3, 26, 2, 0, 0, 0, london), true},
		{"sent 02:00 BST", time.Date(2023, 3, 26, 2, 1, 0, 0, london), false},
	}
	for _, tt := range msfWarning {
		f, err := Encode(MSF, tt.encodes)
		if err != nil {
			t.Fatalf("%s: Encode: %v", tt.name, err)
		}
		if d, err := Decode(f); err != nil || d.DSTChange != tt.want {
			t.Errorf("MSF %s: DSTChange = %v (err %v), want %v", tt.name, d.DSTChange, err, tt.want)
		}
	}

	f, _ = Encode(MSF, time.Date(2023, 7, 1, 0, 0, 0, 0, london))
	if d, _ := Decode(f); !d.DST || d.DSTChange {
		t.Errorf("MSF July: DST=%v DSTChange=%v, want true/false", d.DST, d.DSTChange)
	}

	// US DST begins 2023-03-12.
	f, _ = Encode(WWVB, time.Date(2023, 3, 12, 12, 0, 0, 0, time.UTC).In(denver))
	b := frameBits(f)
	if !b.has(57) || b.has(58) {
		t.Errorf("WWVB DST begins today: bits 57/58 = %v/%v, want true/false", b.has(57), b.has(58))
	}
	f, _ = Encode(WWVB, time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC).In(denver))
	b = frameBits(f)
	if !b.has(57) || !b.has(58) {
		t.Error("WWVB July: DST bits not both set")
	}
}
