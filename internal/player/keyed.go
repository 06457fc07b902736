/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"sync"

	"github.com/friendsincode/bragi_player/internal/models"
)

// keyedMutex serializes state transitions per active chat. Different chats
// proceed fully in parallel. Entries are never removed; the set of chats a
// process sees is small and bounded by membership.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[models.ChatID]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[models.ChatID]*sync.Mutex)}
}

func (km *keyedMutex) Lock(chatID models.ChatID) {
	km.mu.Lock()
	m, ok := km.locks[chatID]
	if !ok {
		m = &sync.Mutex{}
		km.locks[chatID] = m
	}
	km.mu.Unlock()
	m.Lock()
}

func (km *keyedMutex) Unlock(chatID models.ChatID) {
	km.mu.Lock()
	m := km.locks[chatID]
	km.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}
