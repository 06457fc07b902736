/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package acquire downloads remote media locally when direct streaming is
// rejected, rewriting the item locator to the downloaded file.
package acquire

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
)

// Downloader fetches remote media via yt-dlp with bounded retries.
type Downloader struct {
	bin     string
	dir     string
	timeout time.Duration
	retries int
	logger  zerolog.Logger
}

// New creates a downloader. dir is created on first use.
func New(bin, dir string, timeout time.Duration, retries int, logger zerolog.Logger) *Downloader {
	if retries < 1 {
		retries = 1
	}
	return &Downloader{
		bin:     bin,
		dir:     dir,
		timeout: timeout,
		retries: retries,
		logger:  logger.With().Str("component", "acquire").Logger(),
	}
}

// Acquire downloads the item's remote locator and rewrites it in place to
// the local file path. Each attempt gets its own timeout; the per-attempt
// failure is retried up to the configured bound.
func (d *Downloader) Acquire(ctx context.Context, item *models.PlaybackItem) error {
	if !item.Remote() {
		return fmt.Errorf("locator %q is not remote", item.Locator)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := d.download(ctx, item.Locator, item.Kind)
		if err == nil {
			d.logger.Info().Str("path", path).Int("attempt", attempt).Msg("media acquired locally")
			item.Locator = path
			return nil
		}

		lastErr = err
		d.logger.Debug().Err(err).Int("attempt", attempt).Str("locator", item.Locator).Msg("download attempt failed")
	}

	return fmt.Errorf("download failed after %d attempts: %w", d.retries, lastErr)
}

func (d *Downloader) download(ctx context.Context, locator string, kind models.MediaKind) (string, error) {
	attemptCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	format := "bestaudio/best"
	if kind == models.KindVideo {
		format = "best[height<=720]/best"
	}

	template := filepath.Join(d.dir, uuid.NewString()+".%(ext)s")
	cmd := exec.CommandContext(attemptCtx, d.bin,
		"-f", format,
		"-o", template,
		"--no-playlist",
		"--no-warnings",
		"--print", "after_move:filepath",
		locator,
	)

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", fmt.Errorf("yt-dlp reported no output file")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}
	return path, nil
}
