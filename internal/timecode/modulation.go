/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timecode

import (
	"fmt"
	"time"
)

// ModulationDuration returns the pulse width of a second in a frame.
func ModulationDuration(s Standard, f Frame, second int) (time.Duration, error) {
	p, err := ProfileFor(s)
	if err != nil {
		return 0, err
	}
	return p.ModulationDuration(f, second)
}

// ModulationDuration looks up the element sent during second and returns
// the time the carrier spends in its phase-1 state. The result depends only
// on the element.
func (p Profile) ModulationDuration(f Frame, second int) (time.Duration, error) {
	if f.Standard() != p.Standard {
		return 0, fmt.Errorf("%w: %v frame given to %v profile", ErrInvalidInput, f.Standard(), p.Standard)
	}
	e, err := f.At(second)
	if err != nil {
		return 0, err
	}
	d, ok := p.PulseWidth(e)
	if !ok {
		return 0, fmt.Errorf("%w: element %v has no %v pulse width", ErrInvalidInput, e, p.Standard)
	}
	return d, nil
}

// PulseWidths returns the pulse width of every second in the frame, in
// order. It is what the verbose transmit output and the frame command print.
func (p Profile) PulseWidths(f Frame) ([]time.Duration, error) {
	out := make([]time.Duration, f.Len())
	for sec := range out {
		d, err := p.ModulationDuration(f, sec)
		if err != nil {
			return nil, err
		}
		out[sec] = d
	}
	return out, nil
}
