/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/player"
)

// logDisplay is the development stand-in for a chat frontend: control
// messages and notices land in the log instead of a conversation.
type logDisplay struct {
	logger zerolog.Logger
}

func newLogDisplay(logger zerolog.Logger) *logDisplay {
	return &logDisplay{logger: logger.With().Str("component", "logdisplay").Logger()}
}

func (d *logDisplay) PostControlMessage(_ context.Context, chatID models.ChatID, content player.Content, controls player.Controls) (player.MessageHandle, error) {
	handle := player.MessageHandle{ChatID: chatID, MessageID: uuid.NewString()}
	d.logger.Info().Int64("chat_id", int64(chatID)).Str("caption", content.Caption).Str("progress", controls.ProgressText).Msg("control message posted")
	return handle, nil
}

func (d *logDisplay) UpdateControlMessage(_ context.Context, handle player.MessageHandle, controls player.Controls) error {
	d.logger.Debug().Str("message_id", handle.MessageID).Str("progress", controls.ProgressText).Msg("control message updated")
	return nil
}

func (d *logDisplay) DeleteMessage(_ context.Context, handle player.MessageHandle) error {
	d.logger.Debug().Str("message_id", handle.MessageID).Msg("control message deleted")
	return nil
}

func (d *logDisplay) PostNotice(_ context.Context, chatID models.ChatID, text string) error {
	d.logger.Info().Int64("chat_id", int64(chatID)).Str("text", text).Msg("notice posted")
	return nil
}
