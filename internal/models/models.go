/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the core playback data types shared across the
// engine.
package models

import (
	"fmt"
	"strings"
)

// ChatID identifies a conversation. Commands are issued against a source
// conversation; playback state is keyed by the active (possibly linked)
// conversation.
type ChatID int64

// MediaKind selects the stream flavour requested for an item.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Valid reports whether the kind is one of the two supported variants.
func (k MediaKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// LoopMode is the per-conversation repeat selection. It is stored and
// surfaced but only consulted through the orchestrator's loop hook.
type LoopMode string

const (
	LoopNone   LoopMode = "none"
	LoopSingle LoopMode = "single"
	LoopQueue  LoopMode = "queue"
)

// ParseLoopMode validates a loop mode string.
func ParseLoopMode(s string) (LoopMode, error) {
	switch LoopMode(strings.ToLower(s)) {
	case LoopNone:
		return LoopNone, nil
	case LoopSingle:
		return LoopSingle, nil
	case LoopQueue:
		return LoopQueue, nil
	default:
		return "", fmt.Errorf("invalid loop mode %q", s)
	}
}

// PlaybackItem is one queued or active playback request.
type PlaybackItem struct {
	Title     string    `json:"title"`
	Locator   string    `json:"locator"` // URL or local file path
	Kind      MediaKind `json:"kind"`
	Requester string    `json:"requester"`
	Duration  int       `json:"duration"` // seconds, 0 when unknown
	Thumbnail string    `json:"thumbnail,omitempty"`
	OriginID  ChatID    `json:"origin_id"`
	ReplyToID int64     `json:"reply_to_id,omitempty"`
}

// Validate enforces the item invariants.
func (i PlaybackItem) Validate() error {
	if strings.TrimSpace(i.Locator) == "" {
		return fmt.Errorf("playback item has empty locator")
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("playback item has invalid kind %q", i.Kind)
	}
	return nil
}

// Remote reports whether the locator points at a remote source rather than a
// local file.
func (i PlaybackItem) Remote() bool {
	return strings.HasPrefix(i.Locator, "http://") || strings.HasPrefix(i.Locator, "https://")
}

// Candidate is one search/metadata resolution result, in provider order.
type Candidate struct {
	Title     string `json:"title"`
	Duration  string `json:"duration"` // provider text form, e.g. "3:45"
	Thumbnail string `json:"thumbnail,omitempty"`
	Locator   string `json:"locator"`
}
