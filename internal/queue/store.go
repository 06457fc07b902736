/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue keeps the per-chat FIFO of pending playback requests.
package queue

import (
	"errors"
	"sync"

	"github.com/friendsincode/bragi_player/internal/models"
)

// ErrEmpty signals an empty queue on dequeue.
var ErrEmpty = errors.New("queue empty")

// Store holds one ordered list of pending items per active chat. Insertion
// order is the play order; items are never reordered.
type Store struct {
	mu     sync.RWMutex
	queues map[models.ChatID][]models.PlaybackItem
}

// NewStore creates an empty queue store.
func NewStore() *Store {
	return &Store{queues: make(map[models.ChatID][]models.PlaybackItem)}
}

// Enqueue appends item to the tail of the chat's queue.
func (s *Store) Enqueue(chatID models.ChatID, item models.PlaybackItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[chatID] = append(s.queues[chatID], item)
}

// EnqueueFront inserts item at the head of the chat's queue. Used only by
// loop hooks that replay the just-finished item.
func (s *Store) EnqueueFront(chatID models.ChatID, item models.PlaybackItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[chatID] = append([]models.PlaybackItem{item}, s.queues[chatID]...)
}

// DequeueFront removes and returns the head item, or ErrEmpty.
func (s *Store) DequeueFront(chatID models.ChatID) (models.PlaybackItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[chatID]
	if len(q) == 0 {
		return models.PlaybackItem{}, ErrEmpty
	}

	head := q[0]
	q = q[1:]
	if len(q) == 0 {
		delete(s.queues, chatID)
	} else {
		s.queues[chatID] = q
	}
	return head, nil
}

// PeekAll returns an ordered snapshot of pending items. A limit > 0 caps the
// snapshot for display purposes; the stored queue itself is unbounded.
func (s *Store) PeekAll(chatID models.ChatID, limit int) []models.PlaybackItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.queues[chatID]
	n := len(q)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]models.PlaybackItem, n)
	copy(out, q[:n])
	return out
}

// Len returns the number of pending items for the chat.
func (s *Store) Len(chatID models.ChatID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queues[chatID])
}

// Clear discards all pending items for the chat.
func (s *Store) Clear(chatID models.ChatID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, chatID)
}
