//go:build linux

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ElevatePriority switches the calling OS thread to SCHED_FIFO at the given
// priority and locks the process memory. Callers lock their goroutine to
// the thread first; the policy is per thread. An error wrapping
// ErrMemoryLock means the policy is in effect and only the lock failed.
func ElevatePriority(priority int) error {
	return elevate(priority, unix.SchedSetAttr, unix.Mlockall)
}

func elevate(priority int, setattr func(int, *unix.SchedAttr, uint) error, mlockall func(int) error) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := setattr(0, &attr, 0); err != nil {
		return fmt.Errorf("sched_setattr SCHED_FIFO %d: %w", priority, err)
	}
	if err := mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("%w: mlockall: %w", ErrMemoryLock, err)
	}
	return nil
}
