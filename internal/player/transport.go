/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player implements the playback orchestration core: the per-chat
// state machine, the bounded advance loop, the progress notifier and the
// contracts for the call transport and display surface collaborators.
package player

import (
	"context"

	"github.com/friendsincode/bragi_player/internal/models"
)

// Transport is the voice/video call engine contract. Connect failures drive
// the fallback policy; the stream-ended signal is delivered out of band to
// Orchestrator.HandleStreamEnd.
type Transport interface {
	Connect(ctx context.Context, chatID models.ChatID, locator string, kind models.MediaKind) error
	Disconnect(ctx context.Context, chatID models.ChatID) error
	Pause(ctx context.Context, chatID models.ChatID) error
	Resume(ctx context.Context, chatID models.ChatID) error
	SetVolume(ctx context.Context, chatID models.ChatID, percent int) error
	Mute(ctx context.Context, chatID models.ChatID) error
	Unmute(ctx context.Context, chatID models.ChatID) error
}

// Acquirer re-acquires a remote item locally after a direct streaming
// failure, rewriting the item locator to the downloaded path.
type Acquirer interface {
	Acquire(ctx context.Context, item *models.PlaybackItem) error
}
