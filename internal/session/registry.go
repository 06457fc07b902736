/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session keeps the per-chat playback session records and the
// channel link table. All state is in-memory for the lifetime of the
// process.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/bragi_player/internal/models"
)

// Phase is the orchestration state of one active chat.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhasePlaying
)

// ControlMessage locates the live now-playing message for a session.
type ControlMessage struct {
	ChatID    models.ChatID // conversation the message was posted to
	MessageID string
}

// View is a read-only snapshot of one session record. Current item and
// start timestamp are always set together.
type View struct {
	Phase      Phase
	Item       models.PlaybackItem
	StartedAt  time.Time
	NotifierID string
	Control    *ControlMessage
}

type record struct {
	phase      Phase
	startID    string
	item       models.PlaybackItem
	startedAt  time.Time
	notifierID string
	control    *ControlMessage
}

// Registry tracks session state, mute flags and loop modes keyed by active
// chat id. Mutation is performed only by the orchestrator; the progress
// notifier reads.
type Registry struct {
	mu       sync.RWMutex
	sessions map[models.ChatID]*record
	muted    map[models.ChatID]bool
	loop     map[models.ChatID]models.LoopMode
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[models.ChatID]*record),
		muted:    make(map[models.ChatID]bool),
		loop:     make(map[models.ChatID]models.LoopMode),
	}
}

// BeginStart transitions the chat from Idle to Starting and returns an
// opaque token identifying this start attempt. ok is false when a session
// already exists, in which case the caller must not proceed.
func (r *Registry) BeginStart(chatID models.ChatID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[chatID]; ok {
		return "", false
	}
	startID := uuid.NewString()
	r.sessions[chatID] = &record{phase: PhaseStarting, startID: startID}
	return startID, true
}

// AbortStart drops a Starting session that never reached Playing. A
// non-empty startID only drops the matching start attempt; an empty one
// drops whichever Starting record is present.
func (r *Registry) AbortStart(chatID models.ChatID, startID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[chatID]
	if !ok || rec.phase != PhaseStarting {
		return
	}
	if startID != "" && rec.startID != startID {
		return
	}
	delete(r.sessions, chatID)
}

// MarkPlaying promotes the Starting record identified by startID to Playing,
// publishing item and start timestamp in one step so the item/timestamp
// pairing invariant holds at every observable point. Returns false when the
// start attempt no longer owns the slot: the record was removed while the
// caller was blocked (explicit stop, late stream-end signal) or a newer
// attempt replaced it. The caller must then discard its work instead of
// resurrecting the session.
func (r *Registry) MarkPlaying(chatID models.ChatID, startID string, item models.PlaybackItem, startedAt time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[chatID]
	if !ok || rec.phase != PhaseStarting || rec.startID != startID {
		return false
	}
	rec.phase = PhasePlaying
	rec.item = item
	rec.startedAt = startedAt
	return true
}

// SetNotifierID records the progress notifier task handle.
func (r *Registry) SetNotifierID(chatID models.ChatID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[chatID]; ok {
		rec.notifierID = id
	}
}

// SetControl records the posted control message location.
func (r *Registry) SetControl(chatID models.ChatID, ctrl *ControlMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[chatID]; ok {
		rec.control = ctrl
	}
}

// Current returns the playing item and start timestamp. ok is false unless
// the session is in Playing phase, so item and timestamp are either both
// present or both absent.
func (r *Registry) Current(chatID models.ChatID) (models.PlaybackItem, time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[chatID]
	if !ok || rec.phase != PhasePlaying {
		return models.PlaybackItem{}, time.Time{}, false
	}
	return rec.item, rec.startedAt, true
}

// Active reports whether any session record exists (Starting or Playing).
func (r *Registry) Active(chatID models.ChatID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[chatID]
	return ok
}

// Snapshot returns a copy of the session record.
func (r *Registry) Snapshot(chatID models.ChatID) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[chatID]
	if !ok {
		return View{}, false
	}
	v := View{Phase: rec.phase, NotifierID: rec.notifierID}
	if rec.phase == PhasePlaying {
		v.Item = rec.item
		v.StartedAt = rec.startedAt
	}
	if rec.control != nil {
		ctrl := *rec.control
		v.Control = &ctrl
	}
	return v, true
}

// Finish removes the session record and returns its final snapshot for
// cleanup (temp file removal, control message deletion).
func (r *Registry) Finish(chatID models.ChatID) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[chatID]
	if !ok {
		return View{}, false
	}
	delete(r.sessions, chatID)
	v := View{Phase: rec.phase, NotifierID: rec.notifierID}
	if rec.phase == PhasePlaying {
		v.Item = rec.item
		v.StartedAt = rec.startedAt
	}
	if rec.control != nil {
		ctrl := *rec.control
		v.Control = &ctrl
	}
	return v, true
}

// SetMuted toggles the mute flag consulted before starting any item.
func (r *Registry) SetMuted(chatID models.ChatID, muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if muted {
		r.muted[chatID] = true
	} else {
		delete(r.muted, chatID)
	}
}

// IsMuted reports the mute flag for the chat.
func (r *Registry) IsMuted(chatID models.ChatID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.muted[chatID]
}

// SetLoopMode stores the per-conversation loop selection.
func (r *Registry) SetLoopMode(chatID models.ChatID, mode models.LoopMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loop[chatID] = mode
}

// LoopMode returns the stored loop selection, defaulting to none.
func (r *Registry) LoopMode(chatID models.ChatID) models.LoopMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if mode, ok := r.loop[chatID]; ok {
		return mode
	}
	return models.LoopNone
}
