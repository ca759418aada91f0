//go:build !linux

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package carrier

func detectPeripheralBase() uint32 {
	return DefaultPeripheralBase
}

func detectOscillatorHz() float64 {
	return DefaultOscillatorHz
}

func mapPeripherals(uint32) ([]byte, []byte, func() error, error) {
	return nil, nil, nil, ErrUnsupported
}
