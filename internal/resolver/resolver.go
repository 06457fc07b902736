/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package resolver turns free-text queries and media page URLs into playable
// stream candidates by shelling out to yt-dlp, with a Redis-backed result
// cache in front of the provider.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/timefmt"
)

// ErrNoResults reports that the provider returned nothing usable.
var ErrNoResults = fmt.Errorf("no results for query")

// Resolver resolves queries against the media provider.
type Resolver struct {
	bin    string
	limit  int
	cache  *Cache
	logger zerolog.Logger
}

// New creates a resolver. bin is the yt-dlp binary; limit caps search
// results per query. cache may be nil to disable caching entirely.
func New(bin string, limit int, cache *Cache, logger zerolog.Logger) *Resolver {
	if limit <= 0 {
		limit = 10
	}
	return &Resolver{
		bin:    bin,
		limit:  limit,
		cache:  cache,
		logger: logger.With().Str("component", "resolver").Logger(),
	}
}

// Search returns candidates for a query in provider order. URLs resolve to a
// single candidate; free text runs a provider search.
func (r *Resolver) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	if r.cache != nil {
		if candidates, ok := r.cache.GetCandidates(ctx, query); ok {
			return candidates, nil
		}
	}

	target := query
	if !isURL(query) {
		target = fmt.Sprintf("ytsearch%d:%s", r.limit, query)
	}

	cmd := exec.CommandContext(ctx, r.bin, "-J", "--flat-playlist", "--no-warnings", target)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("provider lookup: %w", err)
	}

	candidates, err := parseCandidates(out, r.limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoResults
	}

	if r.cache != nil {
		if err := r.cache.SetCandidates(ctx, query, candidates); err != nil {
			r.logger.Debug().Err(err).Msg("failed to cache search results")
		}
	}

	r.logger.Debug().Str("query", query).Int("count", len(candidates)).Msg("resolved candidates")
	return candidates, nil
}

// Resolve returns the best match for a query as a playback item skeleton.
// Title, locator, duration and thumbnail are filled; the caller owns kind,
// requester and origin.
func (r *Resolver) Resolve(ctx context.Context, query string) (models.PlaybackItem, error) {
	candidates, err := r.Search(ctx, query)
	if err != nil {
		return models.PlaybackItem{}, err
	}

	best := candidates[0]
	return models.PlaybackItem{
		Title:     best.Title,
		Locator:   best.Locator,
		Duration:  timefmt.ParseSeconds(best.Duration),
		Thumbnail: best.Thumbnail,
	}, nil
}

type providerEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Thumbnail  string  `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type providerPayload struct {
	providerEntry
	Entries []providerEntry `json:"entries"`
}

// parseCandidates decodes a yt-dlp -J document. A playlist/search document
// carries entries; a single-video document is itself the entry.
func parseCandidates(data []byte, limit int) ([]models.Candidate, error) {
	var payload providerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	entries := payload.Entries
	if len(entries) == 0 && (payload.Title != "" || payload.ID != "") {
		entries = []providerEntry{payload.providerEntry}
	}

	candidates := make([]models.Candidate, 0, len(entries))
	for _, entry := range entries {
		locator := entry.WebpageURL
		if locator == "" {
			locator = entry.URL
		}
		if locator == "" && entry.ID != "" {
			locator = "https://www.youtube.com/watch?v=" + entry.ID
		}
		if locator == "" {
			continue
		}

		thumbnail := entry.Thumbnail
		if thumbnail == "" && len(entry.Thumbnails) > 0 {
			thumbnail = entry.Thumbnails[len(entry.Thumbnails)-1].URL
		}

		duration := ""
		if entry.Duration > 0 {
			duration = timefmt.FormatSeconds(int(entry.Duration))
		}

		candidates = append(candidates, models.Candidate{
			Title:     entry.Title,
			Duration:  duration,
			Thumbnail: thumbnail,
			Locator:   locator,
		})
		if len(candidates) == limit {
			break
		}
	}

	return candidates, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
