/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the playback command surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/auth"
	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/player"
)

// Searcher resolves queries into playable candidates.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Candidate, error)
	Resolve(ctx context.Context, query string) (models.PlaybackItem, error)
}

// API exposes HTTP handlers.
type API struct {
	orch      *player.Orchestrator
	searcher  Searcher
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(orch *player.Orchestrator, searcher Searcher, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		orch:      orch,
		searcher:  searcher,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the API endpoints.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Get("/search", a.handleSearch)

			pr.Route("/chats/{chatID}", func(r chi.Router) {
				r.Get("/queue", a.handleQueue)
				r.Get("/now", a.handleNowPlaying)

				// Everything that mutates playback state needs an operator.
				r.Group(func(mr chi.Router) {
					mr.Use(a.requireRoles("operator", "admin"))
					mr.Post("/play", a.handlePlay)
					mr.Post("/skip", a.handleSkip)
					mr.Post("/stop", a.handleStop)
					mr.Post("/pause", a.handlePause)
					mr.Post("/resume", a.handleResume)
					mr.Post("/volume", a.handleVolume)
					mr.Post("/mute", a.handleMute)
					mr.Post("/unmute", a.handleUnmute)
					mr.Post("/loop", a.handleLoop)
					mr.Post("/link", a.handleLink)
					mr.Delete("/link", a.handleUnlink)
				})
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type playRequest struct {
	Query     string `json:"query"`   // free text or media page URL, resolved via provider
	Locator   string `json:"locator"` // direct stream URL or file, bypasses resolution
	Kind      string `json:"kind"`    // audio (default) or video
	Linked    bool   `json:"linked"`  // route to the linked channel
	Requester string `json:"requester"`
	ReplyToID int64  `json:"reply_to_id"`
}

type playResponse struct {
	ChatID   models.ChatID `json:"chat_id"`
	Queued   bool          `json:"queued"`
	Position int           `json:"position,omitempty"`
	Title    string        `json:"title"`
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}

	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	kind := models.KindAudio
	if req.Kind != "" {
		kind = models.MediaKind(strings.ToLower(req.Kind))
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_kind")
			return
		}
	}

	var item models.PlaybackItem
	switch {
	case req.Locator != "":
		item = models.PlaybackItem{Title: req.Locator, Locator: req.Locator}
		if req.Query != "" {
			item.Title = req.Query
		}
	case req.Query != "":
		resolved, err := a.searcher.Resolve(r.Context(), req.Query)
		if err != nil {
			a.logger.Debug().Err(err).Str("query", req.Query).Msg("resolution failed")
			writeError(w, http.StatusNotFound, "no_results")
			return
		}
		item = resolved
	default:
		writeError(w, http.StatusBadRequest, "query_or_locator_required")
		return
	}

	item.Kind = kind
	item.ReplyToID = req.ReplyToID
	item.Requester = req.Requester
	if item.Requester == "" {
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
			item.Requester = claims.Username
		}
	}

	activeChat, queued, err := a.orch.Enqueue(r.Context(), chatID, item, req.Linked)
	if err != nil {
		switch {
		case errors.Is(err, player.ErrNoLinkedChannel):
			writeError(w, http.StatusConflict, "no_linked_channel")
		default:
			writeError(w, http.StatusBadRequest, "invalid_item")
		}
		return
	}

	resp := playResponse{ChatID: activeChat, Queued: queued, Title: item.Title}
	if queued {
		_, resp.Position = a.orch.Queue(activeChat)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (a *API) handleSkip(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	if err := a.orch.Skip(r.Context(), chatID); err != nil {
		writeError(w, http.StatusConflict, "nothing_playing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	if err := a.orch.Stop(r.Context(), chatID); err != nil {
		writeError(w, http.StatusInternalServerError, "stop_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	if err := a.orch.Pause(r.Context(), chatID); err != nil {
		writeError(w, http.StatusConflict, "pause_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	if err := a.orch.Resume(r.Context(), chatID); err != nil {
		writeError(w, http.StatusConflict, "resume_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

type volumeRequest struct {
	Percent int `json:"percent"`
}

func (a *API) handleVolume(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := a.orch.SetVolume(r.Context(), chatID, req.Percent); err != nil {
		if errors.Is(err, player.ErrInvalidVolume) {
			writeError(w, http.StatusBadRequest, "invalid_volume")
			return
		}
		writeError(w, http.StatusConflict, "volume_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "percent": req.Percent})
}

func (a *API) handleMute(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	_ = a.orch.Mute(r.Context(), chatID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "muted"})
}

func (a *API) handleUnmute(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	_ = a.orch.Unmute(r.Context(), chatID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "unmuted"})
}

type loopRequest struct {
	Mode string `json:"mode"`
}

func (a *API) handleLoop(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	var req loopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	mode, err := models.ParseLoopMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_loop_mode")
		return
	}
	a.orch.SetLoopMode(chatID, mode)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": string(mode)})
}

type linkRequest struct {
	TargetID models.ChatID `json:"target_id"`
}

func (a *API) handleLink(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.TargetID == 0 || req.TargetID == chatID {
		writeError(w, http.StatusBadRequest, "invalid_target")
		return
	}

	prev, had := a.orch.LinkedChannel(chatID)
	a.orch.LinkChannel(chatID, req.TargetID)

	resp := map[string]any{"status": "linked", "target_id": req.TargetID}
	if had && prev != req.TargetID {
		resp["replaced_target_id"] = prev
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUnlink(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	target, err := a.orch.UnlinkChannel(chatID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_linked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "unlinked", "target_id": target})
}

type queueResponse struct {
	Items []models.PlaybackItem `json:"items"`
	Total int                   `json:"total"`
}

func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	items, total := a.orch.Queue(chatID)
	writeJSON(w, http.StatusOK, queueResponse{Items: items, Total: total})
}

type nowPlayingResponse struct {
	Item    models.PlaybackItem `json:"item"`
	Elapsed int                 `json:"elapsed"` // seconds
	Loop    models.LoopMode     `json:"loop"`
}

func (a *API) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	chatID, ok := a.chatFromRequest(w, r)
	if !ok {
		return
	}
	item, elapsed, playing := a.orch.NowPlaying(chatID)
	if !playing {
		writeError(w, http.StatusNotFound, "nothing_playing")
		return
	}
	writeJSON(w, http.StatusOK, nowPlayingResponse{
		Item:    item,
		Elapsed: int(elapsed.Seconds()),
		Loop:    a.orch.LoopMode(chatID),
	})
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query_required")
		return
	}
	candidates, err := a.searcher.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusNotFound, "no_results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// requireRoles rejects requests whose token carries none of the allowed
// roles.
func (a *API) requireRoles(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowed {
				if claims.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

// chatFromRequest parses the chat id and enforces the token's chat scope.
func (a *API) chatFromRequest(w http.ResponseWriter, r *http.Request) (models.ChatID, bool) {
	raw := chi.URLParam(r, "chatID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid_chat_id")
		return 0, false
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		if !claims.AllowsChat(id) {
			writeError(w, http.StatusForbidden, "chat_not_allowed")
			return 0, false
		}
	}

	return models.ChatID(id), true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
