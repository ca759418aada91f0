/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timecode

import (
	"fmt"
	"time"
)

// Frame layouts. Weights are BCD bit values; see run for the zero-gap rule.
var (
	dcfMinute  = run(21, 1, 2, 4, 8, 10, 20, 40)
	dcfHour    = run(29, 1, 2, 4, 8, 10, 20)
	dcfDay     = run(36, 1, 2, 4, 8, 10, 20)
	dcfWeekday = run(42, 1, 2, 4)
	dcfMonth   = run(45, 1, 2, 4, 8, 10)
	dcfYear    = run(50, 1, 2, 4, 8, 10, 20, 40, 80)
	dcfMarkers = []int{59}

	// WWVB and JJY share the minute, hour and day-of-year placement.
	mmMinute  = run(1, 40, 20, 10, 0, 8, 4, 2, 1)
	mmHour    = run(12, 20, 10, 0, 8, 4, 2, 1)
	mmYearDay = run(22, 200, 100, 0, 80, 40, 20, 10, 0, 8, 4, 2, 1)
	mmMarkers = []int{0, 9, 19, 29, 39, 49, 59}

	wwvbYear = run(45, 80, 40, 20, 10, 0, 8, 4, 2, 1)

	jjyYear    = run(41, 80, 40, 20, 10, 8, 4, 2, 1)
	jjyWeekday = run(50, 4, 2, 1)

	msfYear    = run(17, 80, 40, 20, 10, 8, 4, 2, 1)
	msfMonth   = run(25, 10, 8, 4, 2, 1)
	msfDay     = run(30, 20, 10, 8, 4, 2, 1)
	msfWeekday = run(36, 4, 2, 1)
	msfHour    = run(39, 20, 10, 8, 4, 2, 1)
	msfMinute  = run(45, 40, 20, 10, 8, 4, 2, 1)
)

// Encode builds the frame for a minute using the standard's profile.
func Encode(s Standard, minute time.Time) (Frame, error) {
	p, err := ProfileFor(s)
	if err != nil {
		return Frame{}, err
	}
	return p.Encode(minute)
}

// Encode builds the frame announcing the given minute. Calendar fields are
// read in the minute's own location (UTC for WWVB); callers transmitting JJY
// or MSF from another zone convert or shift the instant first.
func (p Profile) Encode(minute time.Time) (Frame, error) {
	if p.encode == nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrUnknownStandard, p.Standard)
	}
	if minute.Second() != 0 || minute.Nanosecond() != 0 {
		return Frame{}, fmt.Errorf("%w: %s is not minute aligned", ErrInvalidInput, minute.Format(time.RFC3339Nano))
	}
	year := minute.Year()
	if p.Standard == WWVB {
		year = minute.UTC().Year()
	}
	if year < p.MinYear || year > p.MaxYear {
		return Frame{}, fmt.Errorf("%w: year %d outside %d-%d for %v", ErrInvalidInput, year, p.MinYear, p.MaxYear, p.Standard)
	}
	f := p.encode(minute)
	f.standard = p.Standard
	return f, nil
}

func encodeDCF77(t time.Time) Frame {
	var b bits
	dst := t.IsDST()
	// A1 covers the hour before the change, counted in transmission minutes.
	sent := t.Add(-time.Minute)
	b.set(16, dstChangesBefore(sent, nextHour(sent)))
	b.set(17, dst)
	b.set(18, !dst)
	b.set(20, true)

	b.putBCD(dcfMinute, t.Minute())
	b.putBCD(dcfHour, t.Hour())
	b.putBCD(dcfDay, t.Day())
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	b.putBCD(dcfWeekday, weekday)
	b.putBCD(dcfMonth, int(t.Month()))
	b.putBCD(dcfYear, t.Year()%100)

	b.set(28, b.parity(21, 27))
	b.set(35, b.parity(29, 34))
	b.set(58, b.parity(36, 57))
	return binaryFrame(b, dcfMarkers)
}

func encodeWWVB(t time.Time) Frame {
	var b bits
	u := t.UTC()
	b.putBCD(mmMinute, u.Minute())
	b.putBCD(mmHour, u.Hour())
	b.putBCD(mmYearDay, u.YearDay())
	b.putBCD(wwvbYear, u.Year()%100)
	b.set(55, isLeapYear(u.Year()))

	// DST status is civil, evaluated at 00:00 UTC today and tomorrow.
	dayStart := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	b.set(57, dayStart.AddDate(0, 0, 1).In(t.Location()).IsDST())
	b.set(58, dayStart.In(t.Location()).IsDST())
	return binaryFrame(b, mmMarkers)
}

func encodeJJY(t time.Time) Frame {
	var b bits
	b.putBCD(mmMinute, t.Minute())
	b.putBCD(mmHour, t.Hour())
	b.putBCD(mmYearDay, t.YearDay())
	b.set(36, b.parity(12, 18))
	b.set(37, b.parity(1, 8))
	b.putBCD(jjyYear, t.Year()%100)
	b.putBCD(jjyWeekday, int(t.Weekday()))
	return binaryFrame(b, mmMarkers)
}

func encodeMSF(t time.Time) Frame {
	var a, b bits
	a.putBCD(msfYear, t.Year()%100)
	a.putBCD(msfMonth, int(t.Month()))
	a.putBCD(msfDay, t.Day())
	a.putBCD(msfWeekday, int(t.Weekday()))
	a.putBCD(msfHour, t.Hour())
	a.putBCD(msfMinute, t.Minute())
	for sec := 53; sec <= 58; sec++ {
		a.set(sec, true)
	}

	// 53B is on for the 61 minutes transmitted before the change.
	sent := t.Add(-time.Minute)
	b.set(53, dstChangesBefore(sent, sent.Add(61*time.Minute)))
	b.set(54, !a.parity(17, 24))
	b.set(55, !a.parity(25, 35))
	b.set(56, !a.parity(36, 38))
	b.set(57, !a.parity(39, 51))
	b.set(58, t.IsDST())

	var f Frame
	f.elements[0] = ElementMarker
	for sec := 1; sec < FrameLength; sec++ {
		switch {
		case a.has(sec) && b.has(sec):
			f.elements[sec] = ElementOneOne
		case a.has(sec):
			f.elements[sec] = ElementOne
		}
	}
	return f
}

// nextHour returns the top of the hour following t.
func nextHour(t time.Time) time.Time {
	return t.Add(time.Hour - time.Duration(t.Minute())*time.Minute - time.Duration(t.Second())*time.Second)
}

// dstChangesBefore reports whether the daylight-saving state at until differs
// from the state at t.
func dstChangesBefore(t, until time.Time) bool {
	return t.IsDST() != until.IsDST()
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
