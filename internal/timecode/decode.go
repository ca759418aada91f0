/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timecode

import (
	"fmt"
	"time"
)

// Decoded holds the calendar fields carried by a frame. Two-digit years are
// expanded into the 2000-2099 range every profile encodes.
type Decoded struct {
	Year    int
	Month   time.Month
	Day     int
	YearDay int
	Weekday time.Weekday
	Hour    int
	Minute  int
	// DST is the summer-time flag of the frame, when the standard carries one.
	DST bool
	// DSTChange is the announcement of an impending summer-time change.
	DSTChange bool
}

// Time returns the decoded minute in the given location.
func (d Decoded) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, d.Hour, d.Minute, 0, 0, loc)
}

// Decode reads the calendar fields back out of a frame and verifies its
// parity bits and fixed markers.
func Decode(f Frame) (Decoded, error) {
	p, err := ProfileFor(f.Standard())
	if err != nil {
		return Decoded{}, err
	}
	return p.decode(f)
}

func decodeDCF77(f Frame) (Decoded, error) {
	if err := expectMarkers(f, dcfMarkers); err != nil {
		return Decoded{}, err
	}
	b := frameBits(f)
	if !b.has(20) {
		return Decoded{}, fmt.Errorf("%w: start-of-time bit 20 not set", ErrInvalidInput)
	}
	if b.has(17) == b.has(18) {
		return Decoded{}, fmt.Errorf("%w: CET/CEST bits disagree", ErrInvalidInput)
	}
	for _, g := range [][3]int{{21, 27, 28}, {29, 34, 35}, {36, 57, 58}} {
		if b.parity(g[0], g[1]) != b.has(g[2]) {
			return Decoded{}, fmt.Errorf("%w: bits %d-%d", ErrParity, g[0], g[1])
		}
	}
	d := calendar(2000+b.getBCD(dcfYear), time.Month(b.getBCD(dcfMonth)), b.getBCD(dcfDay), b.getBCD(dcfHour), b.getBCD(dcfMinute))
	if wd := b.getBCD(dcfWeekday) % 7; time.Weekday(wd) != d.Weekday {
		return Decoded{}, fmt.Errorf("%w: weekday %d does not match date", ErrInvalidInput, wd)
	}
	d.DST = b.has(17)
	d.DSTChange = b.has(16)
	return d, nil
}

func decodeWWVB(f Frame) (Decoded, error) {
	if err := expectMarkers(f, mmMarkers); err != nil {
		return Decoded{}, err
	}
	b := frameBits(f)
	year := 2000 + b.getBCD(wwvbYear)
	d := calendar(year, time.January, b.getBCD(mmYearDay), b.getBCD(mmHour), b.getBCD(mmMinute))
	if b.has(55) != isLeapYear(year) {
		return Decoded{}, fmt.Errorf("%w: leap-year bit disagrees with year %d", ErrInvalidInput, year)
	}
	d.DST = b.has(58)
	d.DSTChange = b.has(57) != b.has(58)
	return d, nil
}

func decodeJJY(f Frame) (Decoded, error) {
	if err := expectMarkers(f, mmMarkers); err != nil {
		return Decoded{}, err
	}
	b := frameBits(f)
	if b.parity(12, 18) != b.has(36) {
		return Decoded{}, fmt.Errorf("%w: PA1 hour parity", ErrParity)
	}
	if b.parity(1, 8) != b.has(37) {
		return Decoded{}, fmt.Errorf("%w: PA2 minute parity", ErrParity)
	}
	d := calendar(2000+b.getBCD(jjyYear), time.January, b.getBCD(mmYearDay), b.getBCD(mmHour), b.getBCD(mmMinute))
	if wd := b.getBCD(jjyWeekday); time.Weekday(wd) != d.Weekday {
		return Decoded{}, fmt.Errorf("%w: weekday %d does not match date", ErrInvalidInput, wd)
	}
	return d, nil
}

func decodeMSF(f Frame) (Decoded, error) {
	if f.elements[0] != ElementMarker {
		return Decoded{}, fmt.Errorf("%w: missing minute marker", ErrInvalidInput)
	}
	var a, b bits
	for sec := 1; sec < FrameLength; sec++ {
		switch f.elements[sec] {
		case ElementOne:
			a.set(sec, true)
		case ElementOneOne:
			a.set(sec, true)
			b.set(sec, true)
		case ElementMarker:
			return Decoded{}, fmt.Errorf("%w: unexpected marker at second %d", ErrInvalidInput, sec)
		}
	}
	if a.has(52) || a.has(59) {
		return Decoded{}, fmt.Errorf("%w: minute identifier 01111110 not found", ErrInvalidInput)
	}
	for sec := 53; sec <= 58; sec++ {
		if !a.has(sec) {
			return Decoded{}, fmt.Errorf("%w: minute identifier 01111110 not found", ErrInvalidInput)
		}
	}
	for _, g := range [][3]int{{17, 24, 54}, {25, 35, 55}, {36, 38, 56}, {39, 51, 57}} {
		// Odd parity: data bits plus the B bit hold an odd number of ones.
		if a.parity(g[0], g[1]) == b.has(g[2]) {
			return Decoded{}, fmt.Errorf("%w: bits %d-%d", ErrParity, g[0], g[1])
		}
	}
	d := calendar(2000+a.getBCD(msfYear), time.Month(a.getBCD(msfMonth)), a.getBCD(msfDay), a.getBCD(msfHour), a.getBCD(msfMinute))
	if wd := a.getBCD(msfWeekday); time.Weekday(wd) != d.Weekday {
		return Decoded{}, fmt.Errorf("%w: weekday %d does not match date", ErrInvalidInput, wd)
	}
	d.DST = b.has(58)
	d.DSTChange = b.has(53)
	return d, nil
}

// calendar normalizes the fields through time.Date so that a day-of-year
// passed as the day of January lands on the right month.
func calendar(year int, month time.Month, day, hour, minute int) Decoded {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return Decoded{
		Year:    t.Year(),
		Month:   t.Month(),
		Day:     t.Day(),
		YearDay: t.YearDay(),
		Weekday: t.Weekday(),
		Hour:    hour,
		Minute:  minute,
	}
}

func expectMarkers(f Frame, markers []int) error {
	want := make(map[int]bool, len(markers))
	for _, sec := range markers {
		want[sec] = true
	}
	for sec, e := range f.elements {
		if (e == ElementMarker) != want[sec] {
			return fmt.Errorf("%w: marker layout broken at second %d", ErrInvalidInput, sec)
		}
	}
	return nil
}
