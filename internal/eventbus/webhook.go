/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/friendsincode/timesignal/internal/events"
	"github.com/friendsincode/timesignal/internal/version"
	"github.com/rs/zerolog"
)

// Webhook request headers.
const (
	HeaderEvent     = "X-Timesignal-Event"
	HeaderTimestamp = "X-Timesignal-Timestamp"
	HeaderSignature = "X-Timesignal-Signature"
)

// WebhookConfig describes an HTTP endpoint that receives every event as a
// JSON POST.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// DefaultWebhookConfig returns default webhook settings.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{Timeout: 5 * time.Second}
}

// Sign returns the HMAC-SHA256 signature header value for body.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

type webhookSink struct {
	url    string
	secret string
	client *http.Client
}

func (s *webhookSink) publish(ctx context.Context, eventType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "timesignal-webhook/"+version.Version)
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	if s.secret != "" {
		req.Header.Set(HeaderSignature, Sign(data, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *webhookSink) close() error {
	s.client.CloseIdleConnections()
	return nil
}

// NewWebhookForwarder returns a forwarder that POSTs events to cfg.URL.
func NewWebhookForwarder(cfg WebhookConfig, bus *events.Bus, logger zerolog.Logger) (*Forwarder, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("webhook url must be http or https")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookConfig().Timeout
	}

	logger = logger.With().Str("component", "eventbus").Str("broker", "webhook").Logger()
	s := &webhookSink{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	f := newForwarder(bus, s, func(et events.EventType) string { return string(et) }, NodeID(), logger)
	f.timeout = cfg.Timeout

	logger.Info().Str("host", u.Host).Bool("signed", cfg.Secret != "").Msg("webhook event forwarding enabled")
	return f, nil
}
