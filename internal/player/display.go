/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/bragi_player/internal/models"
)

// ErrMessageNotFound reports that the control message no longer exists. The
// progress notifier terminates silently on it.
var ErrMessageNotFound = errors.New("control message not found")

// RateLimitedError carries the backoff mandated by the display surface.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("display rate limited, retry after %s", e.RetryAfter)
}

// MessageHandle locates a posted control message.
type MessageHandle struct {
	ChatID    models.ChatID `json:"chat_id"`
	MessageID string        `json:"message_id"`
}

// Button is one control on the now-playing display.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Controls is the rendered progress text plus control buttons for the live
// now-playing message.
type Controls struct {
	ProgressText string     `json:"progress_text"`
	Rows         [][]Button `json:"rows"`
}

// Content is the static part of a control message.
type Content struct {
	Caption   string `json:"caption"`
	Thumbnail string `json:"thumbnail,omitempty"`
	ReplyToID int64  `json:"reply_to_id,omitempty"`
}

// Display is the messaging/UI surface contract. The control display is
// best-effort, never authoritative for playback state.
type Display interface {
	PostControlMessage(ctx context.Context, chatID models.ChatID, content Content, controls Controls) (MessageHandle, error)
	UpdateControlMessage(ctx context.Context, handle MessageHandle, controls Controls) error
	DeleteMessage(ctx context.Context, handle MessageHandle) error
	PostNotice(ctx context.Context, chatID models.ChatID, text string) error
}
