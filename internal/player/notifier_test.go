/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/session"
	"github.com/friendsincode/bragi_player/internal/telemetry"
)

type scriptedDisplay struct {
	fakeDisplay

	mu      sync.Mutex
	updates []Controls
	errs    []error // popped per update call; nil entries mean success
}

func (d *scriptedDisplay) UpdateControlMessage(_ context.Context, _ MessageHandle, controls Controls) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, controls)
	if len(d.errs) == 0 {
		return nil
	}
	err := d.errs[0]
	d.errs = d.errs[1:]
	return err
}

func (d *scriptedDisplay) updateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.updates)
}

func newTestNotifier(display Display, sessions *session.Registry, interval time.Duration) *notifier {
	return &notifier{
		id:       "test-notifier",
		chatID:   100,
		handle:   MessageHandle{ChatID: 100, MessageID: "msg-1"},
		sessions: sessions,
		display:  display,
		metrics:  telemetry.New(),
		interval: interval,
		logger:   zerolog.Nop(),
	}
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier did not terminate")
	}
}

func markPlaying(sessions *session.Registry, it models.PlaybackItem, startedAt time.Time) {
	startID, _ := sessions.BeginStart(100)
	sessions.MarkPlaying(100, startID, it, startedAt)
}

func TestNotifierUpdatesWhilePlaying(t *testing.T) {
	sessions := session.NewRegistry()
	markPlaying(sessions, item("a"), time.Now())

	display := &scriptedDisplay{}
	n := newTestNotifier(display, sessions, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); n.run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for display.updateCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	waitDone(t, done)

	if display.updateCount() < 3 {
		t.Fatalf("updates = %d, want at least 3", display.updateCount())
	}
}

func TestNotifierStopsWhenSessionGone(t *testing.T) {
	sessions := session.NewRegistry()
	display := &scriptedDisplay{}
	n := newTestNotifier(display, sessions, time.Millisecond)

	done := make(chan struct{})
	go func() { defer close(done); n.run(context.Background()) }()
	waitDone(t, done)

	if display.updateCount() != 0 {
		t.Fatal("no updates expected without a session")
	}
}

func TestNotifierStopsAtKnownDuration(t *testing.T) {
	sessions := session.NewRegistry()
	it := item("a")
	it.Duration = 1
	// Started long enough ago that elapsed >= duration on the first tick.
	markPlaying(sessions, it, time.Now().Add(-time.Minute))

	display := &scriptedDisplay{}
	n := newTestNotifier(display, sessions, time.Millisecond)

	done := make(chan struct{})
	go func() { defer close(done); n.run(context.Background()) }()
	waitDone(t, done)

	if display.updateCount() != 0 {
		t.Fatal("notifier should terminate before updating once elapsed reaches duration")
	}
}

func TestNotifierStopsWhenSuperseded(t *testing.T) {
	sessions := session.NewRegistry()
	markPlaying(sessions, item("a"), time.Now())
	sessions.SetNotifierID(100, "another-notifier")

	display := &scriptedDisplay{}
	n := newTestNotifier(display, sessions, time.Millisecond)

	done := make(chan struct{})
	go func() { defer close(done); n.run(context.Background()) }()
	waitDone(t, done)

	if display.updateCount() != 0 {
		t.Fatal("a superseded notifier must not touch the control message")
	}
}

func TestNotifierTerminatesOnMessageNotFound(t *testing.T) {
	sessions := session.NewRegistry()
	markPlaying(sessions, item("a"), time.Now())

	display := &scriptedDisplay{errs: []error{ErrMessageNotFound}}
	n := newTestNotifier(display, sessions, time.Millisecond)

	done := make(chan struct{})
	go func() { defer close(done); n.run(context.Background()) }()
	waitDone(t, done)

	if display.updateCount() != 1 {
		t.Fatalf("updates = %d, want exactly 1 before termination", display.updateCount())
	}
}

func TestNotifierBacksOffWhenRateLimited(t *testing.T) {
	sessions := session.NewRegistry()
	markPlaying(sessions, item("a"), time.Now())

	display := &scriptedDisplay{errs: []error{&RateLimitedError{RetryAfter: 50 * time.Millisecond}}}
	n := newTestNotifier(display, sessions, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { defer close(done); n.run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for display.updateCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	waitDone(t, done)

	display.mu.Lock()
	count := len(display.updates)
	display.mu.Unlock()
	if count < 2 {
		t.Fatal("notifier should resume after the rate limit backoff")
	}
}

func TestNotifierKeepsGoingOnTransientError(t *testing.T) {
	sessions := session.NewRegistry()
	markPlaying(sessions, item("a"), time.Now())

	display := &scriptedDisplay{errs: []error{errors.New("flaky")}}
	n := newTestNotifier(display, sessions, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); n.run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for display.updateCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	waitDone(t, done)

	if display.updateCount() < 2 {
		t.Fatal("a transient update error must not terminate the notifier")
	}
}

func TestOrchestratorCancelsNotifierBeforeMutation(t *testing.T) {
	rig := newTestRig(func(o *Options) { o.ProgressInterval = time.Millisecond })
	ctx := context.Background()

	rig.orch.Enqueue(ctx, 100, item("a"), false)
	time.Sleep(20 * time.Millisecond)

	rig.orch.Stop(ctx, 100)

	// After Stop returns, the notifier has fully exited; no further updates
	// may land on the deleted control message.
	if len(rig.display.deletes) != 1 {
		t.Fatalf("deletes = %d, want 1", len(rig.display.deletes))
	}
}
