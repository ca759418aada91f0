//go:build !linux

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import "errors"

// ElevatePriority is not available on this platform.
func ElevatePriority(priority int) error {
	return errors.New("realtime scheduling not supported on this platform")
}
