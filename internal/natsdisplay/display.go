/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package natsdisplay bridges the control message surface to an external
// frontend over NATS request/reply. The frontend owns the actual chat UI;
// this side only speaks the envelope protocol.
package natsdisplay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/player"
)

// Subjects for the display protocol.
const (
	SubjectPost   = "bragi.display.post"
	SubjectUpdate = "bragi.display.update"
	SubjectDelete = "bragi.display.delete"
	SubjectNotice = "bragi.display.notice"
)

// DefaultTimeout bounds each display round trip.
const DefaultTimeout = 5 * time.Second

// PostRequest asks the frontend to post a control message.
type PostRequest struct {
	ChatID   models.ChatID   `json:"chat_id"`
	Content  player.Content  `json:"content"`
	Controls player.Controls `json:"controls"`
}

// UpdateRequest asks the frontend to edit a control message in place.
type UpdateRequest struct {
	Handle   player.MessageHandle `json:"handle"`
	Controls player.Controls      `json:"controls"`
}

// DeleteRequest asks the frontend to remove a message.
type DeleteRequest struct {
	Handle player.MessageHandle `json:"handle"`
}

// NoticeRequest asks the frontend to post a plain text notice.
type NoticeRequest struct {
	ChatID models.ChatID `json:"chat_id"`
	Text   string        `json:"text"`
}

// Reply is the frontend's answer to any display request.
type Reply struct {
	OK           bool   `json:"ok"`
	MessageID    string `json:"message_id,omitempty"`
	NotFound     bool   `json:"not_found,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Display implements the control message surface over NATS.
type Display struct {
	conn    *nats.Conn
	timeout time.Duration
	logger  zerolog.Logger
}

// New connects to NATS and returns the display bridge.
func New(url string, logger zerolog.Logger) (*Display, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info().Str("url", url).Msg("display bridge connected")
	return &Display{
		conn:    conn,
		timeout: DefaultTimeout,
		logger:  logger.With().Str("component", "natsdisplay").Logger(),
	}, nil
}

// Close drains the connection.
func (d *Display) Close() error {
	if d.conn != nil {
		return d.conn.Drain()
	}
	return nil
}

// PostControlMessage posts the now-playing message and returns its handle.
func (d *Display) PostControlMessage(ctx context.Context, chatID models.ChatID, content player.Content, controls player.Controls) (player.MessageHandle, error) {
	reply, err := d.request(ctx, SubjectPost, PostRequest{ChatID: chatID, Content: content, Controls: controls})
	if err != nil {
		return player.MessageHandle{}, err
	}
	if reply.MessageID == "" {
		return player.MessageHandle{}, errors.New("frontend returned no message id")
	}
	return player.MessageHandle{ChatID: chatID, MessageID: reply.MessageID}, nil
}

// UpdateControlMessage edits the control message in place.
func (d *Display) UpdateControlMessage(ctx context.Context, handle player.MessageHandle, controls player.Controls) error {
	_, err := d.request(ctx, SubjectUpdate, UpdateRequest{Handle: handle, Controls: controls})
	return err
}

// DeleteMessage removes the message.
func (d *Display) DeleteMessage(ctx context.Context, handle player.MessageHandle) error {
	_, err := d.request(ctx, SubjectDelete, DeleteRequest{Handle: handle})
	return err
}

// PostNotice posts a plain text notice.
func (d *Display) PostNotice(ctx context.Context, chatID models.ChatID, text string) error {
	_, err := d.request(ctx, SubjectNotice, NoticeRequest{ChatID: chatID, Text: text})
	return err
}

// request performs one round trip and translates the reply into the display
// error vocabulary the notifier understands.
func (d *Display) request(ctx context.Context, subject string, payload any) (*Reply, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal display request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg, err := d.conn.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("display request %s: %w", subject, err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode display reply: %w", err)
	}

	if reply.OK {
		return &reply, nil
	}
	if reply.NotFound {
		return nil, player.ErrMessageNotFound
	}
	if reply.RetryAfterMS > 0 {
		return nil, &player.RateLimitedError{RetryAfter: time.Duration(reply.RetryAfterMS) * time.Millisecond}
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return nil, errors.New("display request rejected")
}
