//go:build linux

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestElevateReportsFailuresSeparately(t *testing.T) {
	ok := func(int, *unix.SchedAttr, uint) error { return nil }
	denied := func(int, *unix.SchedAttr, uint) error { return unix.EPERM }
	locked := func(int) error { return nil }
	noLock := func(int) error { return unix.ENOMEM }

	tests := []struct {
		name        string
		setattr     func(int, *unix.SchedAttr, uint) error
		mlockall    func(int) error
		wantErr     bool
		wantLockErr bool
		wantLock    bool
	}{
		{"both succeed", ok, locked, false, false, true},
		{"policy denied", denied, locked, true, false, false},
		{"lock fails after policy", ok, noLock, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var policy uint32
			lockCalled := false
			setattr := func(pid int, attr *unix.SchedAttr, flags uint) error {
				policy = attr.Policy
				return tt.setattr(pid, attr, flags)
			}
			mlockall := func(flags int) error {
				lockCalled = true
				return tt.mlockall(flags)
			}

			err := elevate(50, setattr, mlockall)
			if (err != nil) != tt.wantErr {
				t.Fatalf("elevate error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrMemoryLock); got != tt.wantLockErr {
				t.Errorf("errors.Is(err, ErrMemoryLock) = %v, want %v", got, tt.wantLockErr)
			}
			if lockCalled != tt.wantLock {
				t.Errorf("mlockall called = %v, want %v", lockCalled, tt.wantLock)
			}
			if policy != unix.SCHED_FIFO {
				t.Errorf("policy = %d, want SCHED_FIFO", policy)
			}
		})
	}
}
