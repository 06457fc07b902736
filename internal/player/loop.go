/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import "github.com/friendsincode/bragi_player/internal/models"

// LoopDecision tells the orchestrator what to do with a naturally finished
// item before advancing.
type LoopDecision int

const (
	// LoopDiscard drops the finished item.
	LoopDiscard LoopDecision = iota
	// LoopReplay puts the finished item back at the head of the queue.
	LoopReplay
	// LoopAppend re-appends the finished item to the tail of the queue.
	LoopAppend
)

// LoopHook is consulted when a stream ends naturally. The stored loop mode
// is recorded per conversation but no repeat policy is hard-wired; deploys
// choose one by installing a hook.
type LoopHook func(mode models.LoopMode, finished models.PlaybackItem) LoopDecision

// DiscardLoopHook is the reference behavior: the loop mode is stored and
// surfaced but never acted on.
func DiscardLoopHook(models.LoopMode, models.PlaybackItem) LoopDecision {
	return LoopDiscard
}

// LoopModeHook maps single to head replay and queue to tail re-append.
func LoopModeHook(mode models.LoopMode, _ models.PlaybackItem) LoopDecision {
	switch mode {
	case models.LoopSingle:
		return LoopReplay
	case models.LoopQueue:
		return LoopAppend
	default:
		return LoopDiscard
	}
}
