/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timecode

import (
	"fmt"
	"strings"
)

// FrameLength is the number of seconds in a minute frame.
const FrameLength = 60

// Frame is the immutable sequence of signal elements for one minute.
type Frame struct {
	standard Standard
	elements [FrameLength]Element
}

// Standard returns the standard the frame was encoded for.
func (f Frame) Standard() Standard {
	return f.standard
}

// Len returns the number of elements in the frame.
func (f Frame) Len() int {
	return len(f.elements)
}

// At returns the element transmitted during the given second.
func (f Frame) At(second int) (Element, error) {
	if second < 0 || second >= len(f.elements) {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, second)
	}
	return f.elements[second], nil
}

// Elements returns a copy of the frame's elements.
func (f Frame) Elements() []Element {
	out := make([]Element, len(f.elements))
	copy(out, f.elements[:])
	return out
}

// String renders the frame one character per second, grouped by ten.
func (f Frame) String() string {
	var b strings.Builder
	for i, e := range f.elements {
		if i > 0 && i%10 == 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.String())
	}
	return b.String()
}

// bits holds one bit per second; bit i belongs to second i.
type bits uint64

func (b bits) has(second int) bool {
	return b&(1<<uint(second)) != 0
}

func (b *bits) set(second int, on bool) {
	if on {
		*b |= 1 << uint(second)
	}
}

// parity returns the even-parity bit over seconds from..to inclusive.
func (b bits) parity(from, to int) bool {
	odd := false
	for s := from; s <= to; s++ {
		if b.has(s) {
			odd = !odd
		}
	}
	return odd
}

// slot places one weighted BCD bit at a second.
type slot struct {
	second int
	weight int
}

// run lays out weights on consecutive seconds starting at start; a zero
// weight leaves its second unused.
func run(start int, weights ...int) []slot {
	out := make([]slot, 0, len(weights))
	for i, w := range weights {
		if w == 0 {
			continue
		}
		out = append(out, slot{second: start + i, weight: w})
	}
	return out
}

// putBCD writes value into the field's seconds as binary-coded decimal.
func (b *bits) putBCD(field []slot, value int) {
	for _, sl := range field {
		place := 1
		switch {
		case sl.weight >= 100:
			place = 100
		case sl.weight >= 10:
			place = 10
		}
		digit := (value / place) % 10
		b.set(sl.second, digit&(sl.weight/place) != 0)
	}
}

// getBCD reads a field back as a decimal value.
func (b bits) getBCD(field []slot) int {
	v := 0
	for _, sl := range field {
		if b.has(sl.second) {
			v += sl.weight
		}
	}
	return v
}

// binaryFrame converts a bit vector into elements, with markers taking
// precedence over data bits.
func binaryFrame(data bits, markers []int) Frame {
	var f Frame
	for sec := 0; sec < FrameLength; sec++ {
		if data.has(sec) {
			f.elements[sec] = ElementOne
		}
	}
	for _, sec := range markers {
		f.elements[sec] = ElementMarker
	}
	return f
}

// frameBits recovers the data bits of a binary frame, ignoring markers.
func frameBits(f Frame) bits {
	var b bits
	for sec, e := range f.elements {
		b.set(sec, e == ElementOne || e == ElementOneOne)
	}
	return b
}
