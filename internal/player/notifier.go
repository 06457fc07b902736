/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/session"
	"github.com/friendsincode/bragi_player/internal/telemetry"
)

// notifier periodically recomputes elapsed playback and refreshes the
// control message in place. One runs per chat while that chat is Playing.
// It only reads session state; the orchestrator owns all mutation and
// cancels the notifier before the session changes.
type notifier struct {
	id       string
	chatID   models.ChatID
	handle   MessageHandle
	sessions *session.Registry
	display  Display
	metrics  *telemetry.Metrics
	interval time.Duration
	logger   zerolog.Logger
}

// run loops until one of the termination conditions holds: the session has
// been cleared externally, a newer notifier owns the session, elapsed has
// reached the known duration, the context is cancelled, or the control
// message is gone. Cancellation is observed at the sleep boundary only.
func (n *notifier) run(ctx context.Context) {
	timer := time.NewTimer(n.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		v, ok := n.sessions.Snapshot(n.chatID)
		if !ok || v.Phase != session.PhasePlaying {
			return
		}
		if v.NotifierID != "" && v.NotifierID != n.id {
			// A newer notifier owns the control message now.
			return
		}

		elapsed := int(time.Since(v.StartedAt).Seconds())
		total := v.Item.Duration

		if total > 0 && elapsed >= total {
			return
		}

		err := n.display.UpdateControlMessage(ctx, n.handle, BuildControls(elapsed, total, n.chatID))
		switch {
		case err == nil:
			n.metrics.NotifierUpdates.Inc()
			timer.Reset(n.interval)
		case errors.Is(err, ErrMessageNotFound):
			// Someone removed the control message; nothing left to update.
			return
		case isRateLimited(err):
			var rl *RateLimitedError
			errors.As(err, &rl)
			n.logger.Debug().Dur("retry_after", rl.RetryAfter).Msg("display rate limited, backing off")
			timer.Reset(rl.RetryAfter)
		default:
			n.logger.Debug().Err(err).Str("notifier", n.id).Msg("progress update failed")
			timer.Reset(n.interval)
		}
	}
}

func isRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}
