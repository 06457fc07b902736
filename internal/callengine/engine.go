/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package callengine runs local GStreamer playback processes, one per active
// chat. It implements the call transport contract: connect/disconnect map to
// process lifecycle, pause/resume to process suspension, and a natural
// process exit is reported as the stream-ended signal.
package callengine

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
)

// StreamEndedFunc receives the chat whose stream finished naturally.
type StreamEndedFunc func(chatID models.ChatID)

// Engine tracks playback pipelines per chat.
type Engine struct {
	bin     string
	logger  zerolog.Logger
	onEnded StreamEndedFunc

	mu        sync.Mutex
	pipelines map[models.ChatID]*pipeline
	volumes   map[models.ChatID]int // percent, applied at pipeline launch
	muted     map[models.ChatID]bool
}

// New creates a playback engine. bin is the gst-launch binary.
func New(bin string, logger zerolog.Logger) *Engine {
	return &Engine{
		bin:       bin,
		logger:    logger.With().Str("component", "callengine").Logger(),
		pipelines: make(map[models.ChatID]*pipeline),
		volumes:   make(map[models.ChatID]int),
		muted:     make(map[models.ChatID]bool),
	}
}

// OnStreamEnded installs the natural-exit callback. Must be set before the
// first Connect.
func (e *Engine) OnStreamEnded(fn StreamEndedFunc) {
	e.onEnded = fn
}

// Connect launches a playback process for the locator. An existing live
// pipeline for the chat is torn down first so a stale process can never
// outlive the session that owned it.
func (e *Engine) Connect(ctx context.Context, chatID models.ChatID, locator string, kind models.MediaKind) error {
	uri, err := toURI(locator)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if old, ok := e.pipelines[chatID]; ok && old.running() {
		e.mu.Unlock()
		if serr := old.stop(); serr != nil {
			return fmt.Errorf("stop stale pipeline: %w", serr)
		}
		e.mu.Lock()
	}

	p := newPipeline(e.bin, strconv.FormatInt(int64(chatID), 10), e.logger, func() {
		if e.onEnded != nil {
			e.onEnded(chatID)
		}
	})
	e.pipelines[chatID] = p
	launch := e.buildLaunch(chatID, uri, kind)
	e.mu.Unlock()

	if err := p.start(ctx, launch); err != nil {
		return fmt.Errorf("start playback pipeline: %w", err)
	}

	e.logger.Info().Int64("chat_id", int64(chatID)).Str("kind", string(kind)).Msg("playback pipeline started")
	return nil
}

// buildLaunch assembles the gst-launch description. Callers hold e.mu.
func (e *Engine) buildLaunch(chatID models.ChatID, uri string, kind models.MediaKind) string {
	volume := 1.0
	if pct, ok := e.volumes[chatID]; ok {
		volume = float64(pct) / 100
	}
	if e.muted[chatID] {
		volume = 0
	}

	launch := fmt.Sprintf("playbin uri=%q volume=%.2f", uri, volume)
	if kind != models.KindVideo {
		launch += " video-sink=fakesink"
	}
	return launch
}

// Disconnect stops the chat's pipeline. Safe to call when nothing runs.
func (e *Engine) Disconnect(_ context.Context, chatID models.ChatID) error {
	e.mu.Lock()
	p, ok := e.pipelines[chatID]
	delete(e.pipelines, chatID)
	e.mu.Unlock()

	if !ok {
		return nil
	}
	return p.stop()
}

// Pause suspends the chat's playback process.
func (e *Engine) Pause(_ context.Context, chatID models.ChatID) error {
	p, err := e.live(chatID)
	if err != nil {
		return err
	}
	return p.pause()
}

// Resume continues a suspended playback process.
func (e *Engine) Resume(_ context.Context, chatID models.ChatID) error {
	p, err := e.live(chatID)
	if err != nil {
		return err
	}
	return p.resume()
}

// SetVolume stores the chat's volume. gst-launch pipelines cannot be retuned
// in flight, so the value takes effect when the next stream starts.
func (e *Engine) SetVolume(_ context.Context, chatID models.ChatID, percent int) error {
	e.mu.Lock()
	e.volumes[chatID] = percent
	e.mu.Unlock()
	e.logger.Debug().Int64("chat_id", int64(chatID)).Int("percent", percent).Msg("volume stored for next stream")
	return nil
}

// Mute zeroes the launch volume for subsequent streams.
func (e *Engine) Mute(_ context.Context, chatID models.ChatID) error {
	e.mu.Lock()
	e.muted[chatID] = true
	e.mu.Unlock()
	return nil
}

// Unmute restores the stored volume for subsequent streams.
func (e *Engine) Unmute(_ context.Context, chatID models.ChatID) error {
	e.mu.Lock()
	delete(e.muted, chatID)
	e.mu.Unlock()
	return nil
}

// Shutdown stops all pipelines and clears the map.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	pipelines := make([]*pipeline, 0, len(e.pipelines))
	for _, p := range e.pipelines {
		pipelines = append(pipelines, p)
	}
	e.pipelines = make(map[models.ChatID]*pipeline)
	e.mu.Unlock()

	for _, p := range pipelines {
		if err := p.stop(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) live(chatID models.ChatID) (*pipeline, error) {
	e.mu.Lock()
	p, ok := e.pipelines[chatID]
	e.mu.Unlock()
	if !ok || !p.running() {
		return nil, fmt.Errorf("no active pipeline for chat %d", chatID)
	}
	return p, nil
}

func toURI(locator string) (string, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator, nil
	}
	abs, err := filepath.Abs(locator)
	if err != nil {
		return "", fmt.Errorf("resolve media path: %w", err)
	}
	return "file://" + abs, nil
}
