/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors the in-process event bus onto NATS subjects so
// chat frontends and dashboards can observe playback lifecycle events.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/events"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "bragi.events."

// Message is the envelope published for every event.
type Message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // for consumer deduplication
}

// NATSBus wraps the in-memory bus and additionally publishes every event to
// NATS. Falls back to in-memory only when NATS is unavailable.
type NATSBus struct {
	logger   zerolog.Logger
	fallback *events.Bus
	conn     *nats.Conn
	nodeID   string
}

// NewNATSBus connects to NATS and wraps bus. An empty URL or a failed
// connection yields a bus that only fans out in-process.
func NewNATSBus(url string, bus *events.Bus, logger zerolog.Logger) *NATSBus {
	nb := &NATSBus{
		logger:   logger.With().Str("component", "eventbus").Logger(),
		fallback: bus,
		nodeID:   generateNodeID(),
	}

	if url == "" {
		nb.logger.Info().Msg("NATS URL not configured, events stay in-process")
		return nb
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", url).Msg("NATS unavailable, events stay in-process")
		return nb
	}

	nb.conn = conn
	nb.logger.Info().Str("url", url).Msg("NATS event fan-out connected")
	return nb
}

// Subscribe registers an in-process subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	return nb.fallback.Subscribe(eventType)
}

// Unsubscribe removes an in-process subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.fallback.Unsubscribe(eventType, sub)
}

// Publish fans the event out in-process and, when connected, to the NATS
// subject for the event type. NATS publish failures are logged and dropped:
// external observation is best-effort, never authoritative.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.fallback.Publish(eventType, payload)

	if nb.conn == nil {
		return
	}

	data, err := json.Marshal(Message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nb.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("event", string(eventType)).Msg("marshal event")
		return
	}

	subject := SubjectPrefix + string(eventType)
	if err := nb.conn.Publish(subject, data); err != nil {
		nb.logger.Debug().Err(err).Str("subject", subject).Msg("publish event")
	}
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		return err
	}
	return nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "bragi"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
