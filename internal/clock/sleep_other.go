//go:build !linux

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import "time"

// sleepUntil falls back to a relative sleep recomputed from the absolute
// deadline on hosts without clock_nanosleep.
func sleepUntil(deadline time.Time) error {
	if d := time.Until(deadline); d > 0 {
		time.Sleep(d)
	}
	return nil
}
