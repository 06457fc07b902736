/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"sync"

	"github.com/friendsincode/bragi_player/internal/models"
)

// Links maps source conversations to linked target conversations. The
// persistent mapping survives across sessions; a link only redirects
// playback while its transient active marker is set.
type Links struct {
	mu     sync.RWMutex
	linked map[models.ChatID]models.ChatID // persistent source -> target
	active map[models.ChatID]models.ChatID // sources with a link currently in effect
}

// NewLinks creates an empty link table.
func NewLinks() *Links {
	return &Links{
		linked: make(map[models.ChatID]models.ChatID),
		active: make(map[models.ChatID]models.ChatID),
	}
}

// SetLink installs the persistent source -> target mapping. It does not
// activate the link; activation happens per channel-linked playback request.
func (l *Links) SetLink(source, target models.ChatID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.linked[source] = target
}

// Target returns the persistent mapping for source.
func (l *Links) Target(source models.ChatID) (models.ChatID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	target, ok := l.linked[source]
	return target, ok
}

// Activate marks the persistent link as currently in effect and returns the
// target. ok is false when no persistent mapping exists.
func (l *Links) Activate(source models.ChatID) (models.ChatID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	target, ok := l.linked[source]
	if !ok {
		return 0, false
	}
	l.active[source] = target
	return target, true
}

// Deactivate clears the transient marker for source. The persistent mapping
// is kept, so a later channel-linked request reuses it.
func (l *Links) Deactivate(source models.ChatID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, source)
}

// DeactivateTarget clears every active marker pointing at target. Called
// when the target's session ends.
func (l *Links) DeactivateTarget(target models.ChatID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for source, t := range l.active {
		if t == target {
			delete(l.active, source)
		}
	}
}

// Unlink removes both the persistent mapping and any active marker.
func (l *Links) Unlink(source models.ChatID) (models.ChatID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	target, ok := l.linked[source]
	delete(l.linked, source)
	delete(l.active, source)
	return target, ok
}

// Resolve returns the linked target when a link is currently active for
// chatID, else chatID itself. Every playback command resolves through this
// before touching queue or session state.
func (l *Links) Resolve(chatID models.ChatID) models.ChatID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if target, ok := l.active[chatID]; ok {
		return target
	}
	return chatID
}
