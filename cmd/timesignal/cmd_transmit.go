/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/timesignal/internal/carrier"
	"github.com/friendsincode/timesignal/internal/clock"
	"github.com/friendsincode/timesignal/internal/config"
	"github.com/friendsincode/timesignal/internal/eventbus"
	"github.com/friendsincode/timesignal/internal/events"
	"github.com/friendsincode/timesignal/internal/journal"
	"github.com/friendsincode/timesignal/internal/logbuffer"
	"github.com/friendsincode/timesignal/internal/logging"
	"github.com/friendsincode/timesignal/internal/scheduler/state"
	"github.com/friendsincode/timesignal/internal/server"
	"github.com/friendsincode/timesignal/internal/telemetry"
	"github.com/friendsincode/timesignal/internal/transmitter"
	"github.com/friendsincode/timesignal/internal/version"
)

type rootOptions struct {
	configPath  string
	service     string
	verbose     bool
	carrierOnly bool
	minutes     int
	driver      string
	timeZone    string
	jjyOffset   time.Duration
	httpBind    string
}

func (o *rootOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "YAML configuration file (env TIMESIGNAL_CONFIG)")
	f.StringVarP(&o.service, "service", "s", "", "time-code standard: DCF77, WWVB, JJY40, JJY60 or MSF")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "print each second's pulse width to stderr, 15 per line")
	f.BoolVarP(&o.carrierOnly, "carrier-only", "c", false, "transmit an unmodulated carrier for calibration")
	f.IntVar(&o.minutes, "minutes", 0, "number of minutes to transmit (default 15)")
	f.StringVar(&o.driver, "driver", "", "carrier driver: gpclk or log")
	f.StringVar(&o.timeZone, "time-zone", "", "civil time zone frames are encoded in (default Local)")
	f.DurationVar(&o.jjyOffset, "jjy-offset", 0, "shift applied to the instant JJY frames are encoded from")
	f.StringVar(&o.httpBind, "http-bind", "", "address of the status and metrics server")
}

// apply lets explicitly set flags override file and environment values.
func (o *rootOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("service") {
		cfg.Service = o.service
	}
	if f.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if f.Changed("carrier-only") {
		cfg.CarrierOnly = o.carrierOnly
	}
	if f.Changed("minutes") {
		cfg.Minutes = o.minutes
	}
	if f.Changed("driver") {
		cfg.Driver = o.driver
	}
	if f.Changed("time-zone") {
		cfg.TimeZone = o.timeZone
	}
	if f.Changed("jjy-offset") {
		cfg.JJYOffset = o.jjyOffset
	}
	if f.Changed("http-bind") {
		cfg.HTTPBind = o.httpBind
	}
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transmitter.ErrConfiguration, err)
	}
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", transmitter.ErrConfiguration, err)
	}
	return cfg, nil
}

func runTransmit(cmd *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if _, err := transmitter.ResolveProfile(cfg.Service); err != nil {
		return err
	}

	var logs *logbuffer.Buffer
	var capture []io.Writer
	if cfg.HTTPBind != "" {
		logs = logbuffer.New(cfg.LogBufferSize)
		capture = append(capture, logbuffer.NewWriter(logs))
	}
	logger := logging.SetupWithWriter(cfg.Environment, cfg.LogLevel, stderr, capture...)
	for _, key := range cfg.UnknownEnvWarnings {
		logger.Warn().Str("key", key).Msg("unknown TIMESIGNAL_ environment variable ignored")
	}

	ctx := cmd.Context()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "timesignal",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("%w: %w", transmitter.ErrConfiguration, err)
	}
	kind, err := carrier.ParseKind(cfg.Driver)
	if err != nil {
		return fmt.Errorf("%w: %w", transmitter.ErrConfiguration, err)
	}
	driver, err := carrier.New(kind, cfg.GPCLK(), logger)
	if err != nil {
		return fmt.Errorf("%w: %w", transmitter.ErrHardwareInit, err)
	}

	bus := events.NewBus()
	store := state.NewStore()

	tx, err := transmitter.New(transmitter.Options{
		Service:          cfg.Service,
		Minutes:          cfg.Minutes,
		CarrierOnly:      cfg.CarrierOnly,
		Verbose:          cfg.Verbose,
		Location:         loc,
		JJYOffset:        cfg.JJYOffset,
		LateThreshold:    cfg.LateThreshold,
		RealtimePriority: cfg.RealtimePriority,
	}, transmitter.Deps{
		Driver: driver,
		Clock:  clock.NewSystem(cfg.TimerGuard),
		Bus:    bus,
		Store:  store,
		Stdout: stdout,
		Stderr: stderr,
	}, logger)
	if err != nil {
		return err
	}

	// Side services share a context that outlives the transmission so they
	// can flush the final session events.
	sideCtx, cancelSide := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	defer func() {
		cancelSide()
		wg.Wait()
	}()
	startSideServices(sideCtx, &wg, cfg, bus, store, logs, tx, logger)

	return tx.Run(ctx)
}

// startSideServices wires the optional consumers of the session. None of
// them is allowed to stop a transmission.
func startSideServices(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, bus *events.Bus, store *state.Store, logs *logbuffer.Buffer, tx *transmitter.Transmitter, logger zerolog.Logger) {
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Token = cfg.NATSToken
		fwd, err := eventbus.NewNATSForwarder(natsCfg, bus, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("NATS forwarding disabled")
		} else {
			goRun(func() { _ = fwd.Run(ctx) })
		}
	}

	if cfg.RedisAddr != "" {
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		fwd, err := eventbus.NewRedisForwarder(ctx, redisCfg, bus, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis forwarding disabled")
		} else {
			goRun(func() { _ = fwd.Run(ctx) })
		}
	}

	if cfg.WebhookURL != "" {
		hookCfg := eventbus.DefaultWebhookConfig()
		hookCfg.URL = cfg.WebhookURL
		hookCfg.Secret = cfg.WebhookSecret
		fwd, err := eventbus.NewWebhookForwarder(hookCfg, bus, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("webhook forwarding disabled")
		} else {
			goRun(func() { _ = fwd.Run(ctx) })
		}
	}

	if cfg.JournalDSN != "" {
		db, err := journal.Connect(cfg.JournalBackend, cfg.JournalDSN)
		if err != nil {
			logger.Warn().Err(err).Msg("session journal disabled")
		} else {
			rec := journal.NewRecorder(db, bus, logger)
			goRun(func() {
				rec.Run(ctx)
				if err := journal.Close(db); err != nil {
					logger.Warn().Err(err).Msg("close journal")
				}
			})
		}
	}

	if cfg.HTTPBind != "" {
		p := tx.Profile()
		srv := server.New(cfg.HTTPBind, store, server.Info{
			Standard:    p.Standard.String(),
			FrequencyHz: p.FrequencyHz,
			Driver:      cfg.Driver,
			TimeZone:    cfg.TimeZone,
		}, logger, server.WithLogBuffer(logs))
		goRun(func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("status server failed")
			}
		})
	}
}
