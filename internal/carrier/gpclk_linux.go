//go:build linux

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package carrier

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	socRangesPath = "/proc/device-tree/soc/ranges"
	oscFreqPath   = "/proc/device-tree/clocks/clk-osc/clock-frequency"
)

func detectPeripheralBase() uint32 {
	data, err := os.ReadFile(socRangesPath)
	if err != nil {
		return DefaultPeripheralBase
	}
	base, err := ParsePeripheralBase(data)
	if err != nil || base == 0 {
		return DefaultPeripheralBase
	}
	return base
}

func detectOscillatorHz() float64 {
	data, err := os.ReadFile(oscFreqPath)
	if err != nil {
		return DefaultOscillatorHz
	}
	hz, err := ParseClockFrequency(data)
	if err != nil {
		return DefaultOscillatorHz
	}
	return hz
}

func mapPeripherals(base uint32) ([]byte, []byte, func() error, error) {
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open /dev/mem (run as root): %w", err)
	}
	gpio, err := unix.Mmap(fd, int64(base)+gpioOffset, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, nil, nil, fmt.Errorf("mmap gpio: %w", err)
	}
	cm, err := unix.Mmap(fd, int64(base)+clockOffset, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(gpio)
		unix.Close(fd)
		return nil, nil, nil, fmt.Errorf("mmap clock manager: %w", err)
	}

	unmap := func() error {
		return errors.Join(unix.Munmap(gpio), unix.Munmap(cm), unix.Close(fd))
	}
	return gpio, cm, unmap, nil
}
