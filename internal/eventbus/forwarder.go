/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards in-process transmitter events to external
// brokers so dashboards can follow a session.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/friendsincode/timesignal/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message is the wire envelope of a forwarded event.
type Message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(Message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

// UnmarshalMessage parses a forwarded event.
func UnmarshalMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	return &msg, nil
}

// NodeID identifies this transmitter in forwarded messages.
func NodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "timesignal"
	}
	return host + "-" + uuid.NewString()[:8]
}

// sink delivers an encoded event to a broker topic.
type sink interface {
	publish(ctx context.Context, topic string, data []byte) error
	close() error
}

// Forwarder relays bus events to a broker on its own goroutines, away from
// the transmission loop.
type Forwarder struct {
	bus       *events.Bus
	subs      map[events.EventType]events.Subscriber
	sink      sink
	topic     func(events.EventType) string
	nodeID    string
	timeout   time.Duration
	logger    zerolog.Logger
	closeOnce sync.Once
}

// newForwarder subscribes immediately so events published before Run starts
// are buffered rather than lost.
func newForwarder(bus *events.Bus, s sink, topic func(events.EventType) string, nodeID string, logger zerolog.Logger) *Forwarder {
	subs := make(map[events.EventType]events.Subscriber)
	for _, et := range events.Types() {
		subs[et] = bus.Subscribe(et)
	}
	return &Forwarder{
		bus:     bus,
		subs:    subs,
		sink:    s,
		topic:   topic,
		nodeID:  nodeID,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Run forwards events until ctx is cancelled, then closes the broker
// connection.
func (f *Forwarder) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for et, sub := range f.subs {
		wg.Add(1)
		go func(et events.EventType, sub events.Subscriber) {
			defer wg.Done()
			defer f.bus.Unsubscribe(et, sub)
			f.forward(ctx, et, sub)
		}(et, sub)
	}
	wg.Wait()
	return f.Close()
}

func (f *Forwarder) forward(ctx context.Context, et events.EventType, sub events.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			// Flush what was queued before the stop, typically session.end.
			for {
				select {
				case payload, ok := <-sub:
					if !ok {
						return
					}
					f.send(ctx, et, payload)
				default:
					return
				}
			}
		case payload, ok := <-sub:
			if !ok {
				return
			}
			f.send(ctx, et, payload)
		}
	}
}

func (f *Forwarder) send(ctx context.Context, et events.EventType, payload events.Payload) {
	data, err := marshalMessage(et, payload, f.nodeID)
	if err != nil {
		f.logger.Error().Err(err).Str("event_type", string(et)).Msg("failed to marshal event")
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()
	if err := f.sink.publish(pubCtx, f.topic(et), data); err != nil {
		f.logger.Warn().Err(err).Str("event_type", string(et)).Msg("failed to forward event")
		return
	}
	f.logger.Debug().Str("event_type", string(et)).Msg("event forwarded")
}

// Close releases the broker connection.
func (f *Forwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		err = f.sink.close()
	})
	return err
}
