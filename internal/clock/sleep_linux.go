//go:build linux

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// sleepUntil blocks on clock_nanosleep(CLOCK_REALTIME, TIMER_ABSTIME).
// Signal interruptions restart the same absolute wait.
func sleepUntil(deadline time.Time) error {
	ts := unix.NsecToTimespec(deadline.UnixNano())
	for {
		err := unix.ClockNanosleep(unix.CLOCK_REALTIME, unix.TIMER_ABSTIME, &ts, nil)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
