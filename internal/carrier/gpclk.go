/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package carrier

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
)

// Broadcom peripheral layout shared by every Raspberry Pi generation that
// exposes GPCLK0 through the legacy clock manager.
const (
	gpioOffset   = 0x200000
	clockOffset  = 0x101000
	blockSize    = 4096
	gp0CtlOffset = 0x70
	gp0DivOffset = 0x74

	cmPassword = 0x5A << 24
	cmEnable   = 1 << 4
	cmBusy     = 1 << 7
	cmMashBits = 9

	fselInput = 0b000
	fselAlt0  = 0b100
	fselAlt5  = 0b010

	maxDivI = 0xfff
	divFMax = 4096

	// DefaultPeripheralBase is the BCM2836/7 base used when the device tree
	// cannot be read.
	DefaultPeripheralBase = 0x3F000000

	// DefaultOscillatorHz is the crystal of the BCM2835 to BCM2837. The
	// BCM2711 runs a 54 MHz crystal, reported by the device tree.
	DefaultOscillatorHz = 19.2e6
)

// ClockSource is an input the clock manager can divide down.
type ClockSource struct {
	Name string
	ID   uint32
	Hz   float64
}

var (
	SourceOscillator = ClockSource{Name: "oscillator", ID: 1, Hz: DefaultOscillatorHz}
	SourcePLLD       = ClockSource{Name: "plld", ID: 6, Hz: 500e6}
)

// GPCLKConfig selects the pin and clock parameters of the GPCLK0 driver.
type GPCLKConfig struct {
	// Pin is the BCM GPIO number carrying GPCLK0: 4, 20, 32 or 34.
	Pin int
	// PeripheralBase overrides device-tree detection when non-zero.
	PeripheralBase uint32
	// OscillatorHz overrides the crystal frequency read from the device tree.
	OscillatorHz float64
	// PLLDHz overrides the PLLD frequency; 750 MHz on a Pi 4.
	PLLDHz float64
	// MASH is the noise-shaping stage, 0 to 3.
	MASH int
}

// DefaultGPCLKConfig returns GPIO4 with MASH 1.
func DefaultGPCLKConfig() GPCLKConfig {
	return GPCLKConfig{Pin: 4, MASH: 1}
}

var pinFunctions = map[int]uint32{
	4:  fselAlt0,
	20: fselAlt5,
	32: fselAlt0,
	34: fselAlt0,
}

// Divisor is a clock manager DIV register setting.
type Divisor struct {
	Source ClockSource
	DivI   uint32
	DivF   uint32
}

// Frequency returns the average output frequency the divisor produces.
func (d Divisor) Frequency() float64 {
	return d.Source.Hz / (float64(d.DivI) + float64(d.DivF)/divFMax)
}

// ChooseDivisor picks the first source that can reach frequencyHz with an
// integer divisor inside the register range.
func ChooseDivisor(frequencyHz int, mash int, sources ...ClockSource) (Divisor, error) {
	if frequencyHz <= 0 {
		return Divisor{}, fmt.Errorf("carrier frequency must be positive, got %d", frequencyHz)
	}
	minDivI := 1
	if mash > 0 {
		minDivI = mash + 1
	}
	for _, src := range sources {
		div := src.Hz / float64(frequencyHz)
		divI := math.Floor(div)
		divF := math.Round((div - divI) * divFMax)
		if divF >= divFMax {
			divI++
			divF = 0
		}
		if mash == 0 {
			divF = 0
		}
		if divI < float64(minDivI) || divI > maxDivI {
			continue
		}
		return Divisor{Source: src, DivI: uint32(divI), DivF: uint32(divF)}, nil
	}
	return Divisor{}, fmt.Errorf("no clock source can produce %d Hz", frequencyHz)
}

// ParsePeripheralBase reads the ARM physical peripheral base from the
// device-tree soc/ranges property.
func ParsePeripheralBase(ranges []byte) (uint32, error) {
	if len(ranges) < 8 {
		return 0, errors.New("soc/ranges too short")
	}
	if base := binary.BigEndian.Uint32(ranges[4:8]); base != 0 {
		return base, nil
	}
	// 64-bit parent address on BCM2711.
	if len(ranges) < 12 {
		return 0, errors.New("soc/ranges too short")
	}
	return binary.BigEndian.Uint32(ranges[8:12]), nil
}

// ParseClockFrequency reads a device-tree clock-frequency cell.
func ParseClockFrequency(cell []byte) (float64, error) {
	if len(cell) < 4 {
		return 0, errors.New("clock-frequency too short")
	}
	hz := binary.BigEndian.Uint32(cell[:4])
	if hz == 0 {
		return 0, errors.New("clock-frequency is zero")
	}
	return float64(hz), nil
}

// peripheralMapper maps the GPIO and clock manager register blocks.
type peripheralMapper func(base uint32) (gpio, cm []byte, unmap func() error, err error)

// GPCLK keys the carrier by switching the GPCLK0 pin between its clock
// function and a high-impedance input.
type GPCLK struct {
	cfg    GPCLKConfig
	mapper peripheralMapper
	oscHz  func() float64
	logger zerolog.Logger

	mu      sync.Mutex
	gpio    []byte
	cm      []byte
	unmap   func() error
	source  ClockSource
	running bool
}

// NewGPCLK creates a driver for GPCLK0 on the Raspberry Pi.
func NewGPCLK(cfg GPCLKConfig, logger zerolog.Logger) *GPCLK {
	return newGPCLK(cfg, mapPeripherals, logger)
}

func newGPCLK(cfg GPCLKConfig, mapper peripheralMapper, logger zerolog.Logger) *GPCLK {
	return &GPCLK{
		cfg:    cfg,
		mapper: mapper,
		oscHz:  detectOscillatorHz,
		logger: logger.With().Str("component", "carrier").Str("driver", string(KindGPCLK)).Logger(),
	}
}

// Initialize maps the peripheral registers.
func (g *GPCLK) Initialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := pinFunctions[g.cfg.Pin]; !ok {
		return fmt.Errorf("GPIO%d does not carry GPCLK0", g.cfg.Pin)
	}
	if g.cfg.MASH < 0 || g.cfg.MASH > 3 {
		return fmt.Errorf("MASH stage %d out of range 0-3", g.cfg.MASH)
	}
	base := g.cfg.PeripheralBase
	if base == 0 {
		base = detectPeripheralBase()
	}
	gpio, cm, unmap, err := g.mapper(base)
	if err != nil {
		return fmt.Errorf("map peripherals at %#x: %w", base, err)
	}
	if len(gpio) < blockSize || len(cm) < blockSize {
		_ = unmap()
		return fmt.Errorf("peripheral mapping too small")
	}
	g.gpio, g.cm, g.unmap = gpio, cm, unmap

	g.logger.Info().Str("base", fmt.Sprintf("%#x", base)).Int("pin", g.cfg.Pin).Msg("peripherals mapped")
	return nil
}

// StartCarrier programs GPCLK0 to the requested frequency. The pin stays an
// input until SetOutputState(true).
func (g *GPCLK) StartCarrier(frequencyHz int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cm == nil {
		return ErrNotInitialized
	}

	osc := SourceOscillator
	if g.cfg.OscillatorHz > 0 {
		osc.Hz = g.cfg.OscillatorHz
	} else {
		osc.Hz = g.oscHz()
	}
	pll := SourcePLLD
	if g.cfg.PLLDHz > 0 {
		pll.Hz = g.cfg.PLLDHz
	}
	div, err := ChooseDivisor(frequencyHz, g.cfg.MASH, osc, pll)
	if err != nil {
		return err
	}

	ctl := g.reg(g.cm, gp0CtlOffset)
	// The divisor may only change while the generator is stopped.
	atomic.StoreUint32(ctl, cmPassword|div.Source.ID)
	if err := g.waitIdle(ctl); err != nil {
		return err
	}
	atomic.StoreUint32(g.reg(g.cm, gp0DivOffset), cmPassword|div.DivI<<12|div.DivF)
	mash := uint32(g.cfg.MASH) << cmMashBits
	atomic.StoreUint32(ctl, cmPassword|mash|div.Source.ID)
	atomic.StoreUint32(ctl, cmPassword|mash|div.Source.ID|cmEnable)

	g.source = div.Source
	g.running = true
	g.logger.Info().
		Int("frequency_hz", frequencyHz).
		Float64("actual_hz", div.Frequency()).
		Str("source", div.Source.Name).
		Float64("source_hz", div.Source.Hz).
		Uint32("divi", div.DivI).
		Uint32("divf", div.DivF).
		Msg("clock generator started")
	return nil
}

// SetOutputState routes the clock to the pin (active) or floats the pin.
func (g *GPCLK) SetOutputState(active bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gpio == nil {
		return ErrNotInitialized
	}
	fn := uint32(fselInput)
	if active {
		fn = pinFunctions[g.cfg.Pin]
	}
	g.setFunction(fn)
	return nil
}

// Stop floats the pin, halts the clock generator and unmaps the registers.
func (g *GPCLK) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gpio == nil {
		return nil
	}
	g.setFunction(fselInput)
	if g.running {
		atomic.StoreUint32(g.reg(g.cm, gp0CtlOffset), cmPassword|g.source.ID)
		g.running = false
	}
	err := g.unmap()
	g.gpio, g.cm, g.unmap = nil, nil, nil
	if err != nil {
		return fmt.Errorf("unmap peripherals: %w", err)
	}
	g.logger.Info().Msg("clock generator stopped")
	return nil
}

func (g *GPCLK) setFunction(fn uint32) {
	fsel := g.reg(g.gpio, uintptr(g.cfg.Pin/10)*4)
	shift := uint(g.cfg.Pin%10) * 3
	v := atomic.LoadUint32(fsel)
	v = v&^(0b111<<shift) | fn<<shift
	atomic.StoreUint32(fsel, v)
}

func (g *GPCLK) waitIdle(ctl *uint32) error {
	for i := 0; i < 1000; i++ {
		if atomic.LoadUint32(ctl)&cmBusy == 0 {
			return nil
		}
		time.Sleep(time.Microsecond)
	}
	return errors.New("clock generator stayed busy")
}

func (g *GPCLK) reg(block []byte, offset uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(&block[offset]))
}
