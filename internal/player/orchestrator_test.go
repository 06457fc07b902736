/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/events"
	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/queue"
	"github.com/friendsincode/bragi_player/internal/session"
	"github.com/friendsincode/bragi_player/internal/telemetry"
)

type fakeTransport struct {
	mu          sync.Mutex
	connects    []string
	disconnects []models.ChatID
	reject      map[string]error // locator -> connect error
	onConnect   func()           // invoked once while the first connect is in flight
	paused      bool
	volume      int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reject: make(map[string]error)}
}

func (t *fakeTransport) Connect(_ context.Context, _ models.ChatID, locator string, _ models.MediaKind) error {
	t.mu.Lock()
	t.connects = append(t.connects, locator)
	err := t.reject[locator]
	hook := t.onConnect
	t.onConnect = nil
	t.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (t *fakeTransport) Disconnect(_ context.Context, chatID models.ChatID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects = append(t.disconnects, chatID)
	return nil
}

func (t *fakeTransport) Pause(context.Context, models.ChatID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
	return nil
}

func (t *fakeTransport) Resume(context.Context, models.ChatID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
	return nil
}

func (t *fakeTransport) SetVolume(_ context.Context, _ models.ChatID, percent int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = percent
	return nil
}

func (t *fakeTransport) Mute(context.Context, models.ChatID) error   { return nil }
func (t *fakeTransport) Unmute(context.Context, models.ChatID) error { return nil }

func (t *fakeTransport) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connects)
}

func (t *fakeTransport) connectedLocators() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.connects...)
}

func (t *fakeTransport) disconnectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.disconnects)
}

type fakeDisplay struct {
	mu      sync.Mutex
	posts   []models.ChatID
	deletes []MessageHandle
	notices []string
	nextID  int
}

func (d *fakeDisplay) PostControlMessage(_ context.Context, chatID models.ChatID, _ Content, _ Controls) (MessageHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.posts = append(d.posts, chatID)
	return MessageHandle{ChatID: chatID, MessageID: fmt.Sprintf("msg-%d", d.nextID)}, nil
}

func (d *fakeDisplay) UpdateControlMessage(context.Context, MessageHandle, Controls) error {
	return nil
}

func (d *fakeDisplay) DeleteMessage(_ context.Context, handle MessageHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletes = append(d.deletes, handle)
	return nil
}

func (d *fakeDisplay) PostNotice(_ context.Context, _ models.ChatID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, text)
	return nil
}

type fakeAcquirer struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (a *fakeAcquirer) Acquire(_ context.Context, item *models.PlaybackItem) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail {
		return errors.New("acquisition failed")
	}
	item.Locator = "/tmp/downloaded-" + item.Title
	return nil
}

type testRig struct {
	orch      *Orchestrator
	queues    *queue.Store
	sessions  *session.Registry
	links     *session.Links
	transport *fakeTransport
	display   *fakeDisplay
	acquirer  *fakeAcquirer
	metrics   *telemetry.Metrics
}

func newTestRig(opts ...func(*Options)) *testRig {
	rig := &testRig{
		queues:    queue.NewStore(),
		sessions:  session.NewRegistry(),
		links:     session.NewLinks(),
		transport: newFakeTransport(),
		display:   &fakeDisplay{},
		acquirer:  &fakeAcquirer{},
		metrics:   telemetry.New(),
	}
	o := Options{
		Queues:           rig.queues,
		Sessions:         rig.sessions,
		Links:            rig.links,
		Transport:        rig.transport,
		Display:          rig.display,
		Acquirer:         rig.acquirer,
		Bus:              events.NewBus(),
		Metrics:          rig.metrics,
		Logger:           zerolog.Nop(),
		ProgressInterval: time.Hour,
	}
	for _, fn := range opts {
		fn(&o)
	}
	rig.orch = New(o)
	return rig
}

func item(title string) models.PlaybackItem {
	return models.PlaybackItem{
		Title:     title,
		Locator:   "https://example.com/" + title,
		Kind:      models.KindAudio,
		Requester: "tester",
		Duration:  180,
	}
}

func TestEnqueueStartsIdleChat(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	chatID, queued, err := rig.orch.Enqueue(ctx, 100, item("first"), false)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if chatID != 100 {
		t.Fatalf("active chat = %d, want 100", chatID)
	}
	if queued {
		t.Fatal("first item on an idle chat should start, not queue")
	}

	current, _, ok := rig.orch.NowPlaying(100)
	if !ok {
		t.Fatal("expected a playing session")
	}
	if current.Title != "first" {
		t.Fatalf("playing %q, want first", current.Title)
	}
	if rig.transport.connectCount() != 1 {
		t.Fatalf("connects = %d, want 1", rig.transport.connectCount())
	}
}

func TestEnqueueBehindActiveSessionQueues(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.Enqueue(ctx, 100, item("first"), false)
	_, queued, err := rig.orch.Enqueue(ctx, 100, item("second"), false)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !queued {
		t.Fatal("second item should queue behind the active session")
	}

	pending, total := rig.orch.Queue(100)
	if total != 1 || len(pending) != 1 || pending[0].Title != "second" {
		t.Fatalf("queue snapshot = %v (total %d), want [second]", pending, total)
	}
	if rig.transport.connectCount() != 1 {
		t.Fatalf("connects = %d, want 1 while first is playing", rig.transport.connectCount())
	}
}

func TestStreamEndAdvancesInOrder(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.Enqueue(ctx, 100, item("a"), false)
	rig.orch.Enqueue(ctx, 100, item("b"), false)
	rig.orch.Enqueue(ctx, 100, item("c"), false)

	var order []string
	for i := 0; i < 3; i++ {
		current, _, ok := rig.orch.NowPlaying(100)
		if !ok {
			t.Fatalf("iteration %d: nothing playing", i)
		}
		order = append(order, current.Title)
		rig.orch.HandleStreamEnd(ctx, 100)
	}

	want := []string{"a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("activation order = %v, want %v", order, want)
		}
	}

	if _, _, ok := rig.orch.NowPlaying(100); ok {
		t.Fatal("chat should be idle after the queue drained")
	}
	if rig.transport.disconnectCount() != 1 {
		t.Fatalf("disconnects = %d, want 1 on drain", rig.transport.disconnectCount())
	}
}

func TestAdvanceOnIdleEmptyChatIsNoOp(t *testing.T) {
	rig := newTestRig()

	rig.orch.Advance(context.Background(), 100)

	if rig.transport.connectCount() != 0 {
		t.Fatal("no connect expected")
	}
	if rig.transport.disconnectCount() != 0 {
		t.Fatal("plain advance on an idle chat must not disconnect")
	}
	if rig.sessions.Active(100) {
		t.Fatal("no session should exist")
	}
}

func TestMutedChatDrainsSilently(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.Mute(ctx, 100)
	rig.orch.Enqueue(ctx, 100, item("a"), false)
	rig.orch.Enqueue(ctx, 100, item("b"), false)

	if rig.transport.connectCount() != 0 {
		t.Fatalf("connects = %d, want 0 while muted", rig.transport.connectCount())
	}
	if _, total := rig.orch.Queue(100); total != 0 {
		t.Fatalf("pending = %d, want 0 after muted drain", total)
	}
	if rig.sessions.Active(100) {
		t.Fatal("muted drain must not leave a session")
	}

	rig.orch.Unmute(ctx, 100)
	rig.orch.Enqueue(ctx, 100, item("c"), false)
	if current, _, ok := rig.orch.NowPlaying(100); !ok || current.Title != "c" {
		t.Fatal("unmuted chat should play again")
	}
}

func TestFallbackRetriesOnceAfterAcquisition(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	it := item("remote")
	rig.transport.reject[it.Locator] = errors.New("no direct stream")

	rig.orch.Enqueue(ctx, 100, it, false)

	current, _, ok := rig.orch.NowPlaying(100)
	if !ok {
		t.Fatal("expected playback after fallback")
	}
	if current.Remote() {
		t.Fatalf("playing locator %q, want rewritten local path", current.Locator)
	}
	if rig.acquirer.calls != 1 {
		t.Fatalf("acquire calls = %d, want 1", rig.acquirer.calls)
	}
	if got := rig.transport.connectedLocators(); len(got) != 2 {
		t.Fatalf("connect attempts = %v, want direct then local", got)
	}
}

func TestFallbackFailureSkipsWithoutRequeue(t *testing.T) {
	rig := newTestRig()
	rig.acquirer.fail = true
	ctx := context.Background()

	bad := item("bad")
	rig.transport.reject[bad.Locator] = errors.New("no direct stream")

	rig.orch.Enqueue(ctx, 100, bad, false)
	rig.orch.Enqueue(ctx, 100, item("good"), false)

	current, _, ok := rig.orch.NowPlaying(100)
	if !ok || current.Title != "good" {
		t.Fatalf("expected good to play after bad was dropped, got %v ok=%v", current.Title, ok)
	}
	if _, total := rig.orch.Queue(100); total != 0 {
		t.Fatal("failed item must not be re-queued")
	}
	if len(rig.display.notices) != 1 {
		t.Fatalf("notices = %d, want 1 failure notice", len(rig.display.notices))
	}
}

func TestRetryAfterFallbackStillRejectedSkips(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	bad := item("bad")
	rig.transport.reject[bad.Locator] = errors.New("no direct stream")
	rig.transport.reject["/tmp/downloaded-bad"] = errors.New("still rejected")

	rig.orch.Enqueue(ctx, 100, bad, false)

	if rig.sessions.Active(100) {
		t.Fatal("chat must end idle when the retry is rejected too")
	}
	if rig.acquirer.calls != 1 {
		t.Fatalf("acquire calls = %d, want exactly 1 (retry-once)", rig.acquirer.calls)
	}
}

func TestLinkedEnqueueRoutesToTarget(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.LinkChannel(100, 200)

	chatID, _, err := rig.orch.Enqueue(ctx, 100, item("a"), true)
	if err != nil {
		t.Fatalf("Enqueue linked: %v", err)
	}
	if chatID != 200 {
		t.Fatalf("active chat = %d, want linked target 200", chatID)
	}

	// While the link marker is active, plain commands from the source chat
	// operate on the target session.
	if current, _, ok := rig.orch.NowPlaying(100); !ok || current.Title != "a" {
		t.Fatal("source chat should resolve to the linked session")
	}

	rig.orch.HandleStreamEnd(ctx, 200)
	if rig.orch.ResolveActiveChatID(100) != 100 {
		t.Fatal("drain must release the active link marker")
	}
	// Persistent mapping survives the drain.
	if _, _, err := rig.orch.Enqueue(ctx, 100, item("b"), true); err != nil {
		t.Fatalf("link mapping should survive drain: %v", err)
	}
}

func TestLinkedEnqueueWithoutMappingFails(t *testing.T) {
	rig := newTestRig()

	_, _, err := rig.orch.Enqueue(context.Background(), 100, item("a"), true)
	if !errors.Is(err, ErrNoLinkedChannel) {
		t.Fatalf("err = %v, want ErrNoLinkedChannel", err)
	}
}

func TestPlainEnqueueClearsActiveLink(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.LinkChannel(100, 200)
	rig.orch.Enqueue(ctx, 100, item("a"), true)

	chatID, _, err := rig.orch.Enqueue(ctx, 100, item("b"), false)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if chatID != 100 {
		t.Fatalf("plain enqueue routed to %d, want origin 100", chatID)
	}
}

func TestSkipAdvancesImmediately(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.Enqueue(ctx, 100, item("a"), false)
	rig.orch.Enqueue(ctx, 100, item("b"), false)

	if err := rig.orch.Skip(ctx, 100); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if current, _, ok := rig.orch.NowPlaying(100); !ok || current.Title != "b" {
		t.Fatal("skip should start the next item")
	}

	rig.orch.Skip(ctx, 100)
	if err := rig.orch.Skip(ctx, 100); !errors.Is(err, ErrNothingPlaying) {
		t.Fatalf("err = %v, want ErrNothingPlaying on idle chat", err)
	}
}

func TestStopClearsQueueAndSession(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.LinkChannel(100, 200)
	rig.orch.Enqueue(ctx, 100, item("a"), true)
	rig.orch.Enqueue(ctx, 100, item("b"), true)

	if err := rig.orch.Stop(ctx, 100); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, _, ok := rig.orch.NowPlaying(200); ok {
		t.Fatal("session should be gone after stop")
	}
	if _, total := rig.orch.Queue(200); total != 0 {
		t.Fatal("queue should be cleared")
	}
	if rig.transport.disconnectCount() != 1 {
		t.Fatalf("disconnects = %d, want 1", rig.transport.disconnectCount())
	}
	if rig.orch.ResolveActiveChatID(100) != 100 {
		t.Fatal("stop must release the active link marker")
	}
	if len(rig.display.deletes) != 1 {
		t.Fatalf("control message deletions = %d, want 1", len(rig.display.deletes))
	}
}

func TestStopOnIdleChatSucceeds(t *testing.T) {
	rig := newTestRig()
	if err := rig.orch.Stop(context.Background(), 100); err != nil {
		t.Fatalf("Stop on idle chat: %v", err)
	}
}

func TestVolumeValidation(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	for _, bad := range []int{0, -5, 201} {
		if err := rig.orch.SetVolume(ctx, 100, bad); !errors.Is(err, ErrInvalidVolume) {
			t.Fatalf("SetVolume(%d) = %v, want ErrInvalidVolume", bad, err)
		}
	}
	if err := rig.orch.SetVolume(ctx, 100, 150); err != nil {
		t.Fatalf("SetVolume(150): %v", err)
	}
	if rig.transport.volume != 150 {
		t.Fatalf("transport volume = %d, want 150", rig.transport.volume)
	}
}

func TestLoopModeStoredButDiscardedByDefault(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.SetLoopMode(100, models.LoopSingle)
	if rig.orch.LoopMode(100) != models.LoopSingle {
		t.Fatal("loop mode should be stored")
	}

	rig.orch.Enqueue(ctx, 100, item("a"), false)
	rig.orch.HandleStreamEnd(ctx, 100)

	if _, total := rig.orch.Queue(100); total != 0 {
		t.Fatal("default hook must discard the finished item")
	}
}

func TestLoopModeHookReplaysSingle(t *testing.T) {
	rig := newTestRig(func(o *Options) { o.LoopHook = LoopModeHook })
	ctx := context.Background()

	rig.orch.SetLoopMode(100, models.LoopSingle)
	rig.orch.Enqueue(ctx, 100, item("a"), false)
	rig.orch.HandleStreamEnd(ctx, 100)

	if current, _, ok := rig.orch.NowPlaying(100); !ok || current.Title != "a" {
		t.Fatal("single mode should replay the finished item")
	}
}

func TestLoopModeHookAppendsQueue(t *testing.T) {
	rig := newTestRig(func(o *Options) { o.LoopHook = LoopModeHook })
	ctx := context.Background()

	rig.orch.SetLoopMode(100, models.LoopQueue)
	rig.orch.Enqueue(ctx, 100, item("a"), false)
	rig.orch.Enqueue(ctx, 100, item("b"), false)
	rig.orch.HandleStreamEnd(ctx, 100)

	if current, _, ok := rig.orch.NowPlaying(100); !ok || current.Title != "b" {
		t.Fatal("queue mode should play the next item first")
	}
	pending, total := rig.orch.Queue(100)
	if total != 1 || pending[0].Title != "a" {
		t.Fatalf("queue = %v, want finished item re-appended at tail", pending)
	}
}

func TestCurrentOnlyVisibleWhenPlaying(t *testing.T) {
	rig := newTestRig()

	startID, _ := rig.sessions.BeginStart(100)
	if _, _, ok := rig.orch.NowPlaying(100); ok {
		t.Fatal("a Starting session must not expose an item/timestamp")
	}
	rig.sessions.AbortStart(100, startID)

	start := time.Now()
	rig.orch.Enqueue(context.Background(), 100, item("a"), false)
	_, startedAt, ok := rig.sessions.Current(100)
	if !ok {
		t.Fatal("expected playing session")
	}
	if startedAt.Before(start) {
		t.Fatal("start timestamp must be set at activation time")
	}
}

func TestUnlinkChannel(t *testing.T) {
	rig := newTestRig()

	if _, err := rig.orch.UnlinkChannel(100); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("err = %v, want ErrNotLinked", err)
	}

	rig.orch.LinkChannel(100, 200)
	target, err := rig.orch.UnlinkChannel(100)
	if err != nil {
		t.Fatalf("UnlinkChannel: %v", err)
	}
	if target != 200 {
		t.Fatalf("unlinked target = %d, want 200", target)
	}
	if _, _, err := rig.orch.Enqueue(context.Background(), 100, item("a"), true); !errors.Is(err, ErrNoLinkedChannel) {
		t.Fatal("linked enqueue should fail after unlink")
	}
}

func TestInvalidItemRejected(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	if _, _, err := rig.orch.Enqueue(ctx, 100, models.PlaybackItem{Kind: models.KindAudio}, false); err == nil {
		t.Fatal("empty locator must be rejected")
	}
	if _, _, err := rig.orch.Enqueue(ctx, 100, models.PlaybackItem{Locator: "https://x", Kind: "weird"}, false); err == nil {
		t.Fatal("invalid kind must be rejected")
	}
}

func TestTwoItemSessionLifecycle(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	first := item("first")
	second := item("second")
	second.Duration = 0 // unknown length

	rig.orch.Enqueue(ctx, 100, first, false)
	rig.orch.Enqueue(ctx, 100, second, false)

	if len(rig.display.posts) != 1 {
		t.Fatalf("control posts = %d, want 1 while first plays", len(rig.display.posts))
	}

	rig.orch.HandleStreamEnd(ctx, 100)

	current, _, ok := rig.orch.NowPlaying(100)
	if !ok || current.Title != "second" {
		t.Fatal("second item should be playing after the first ended")
	}
	if len(rig.display.posts) != 2 {
		t.Fatalf("control posts = %d, want fresh message per item", len(rig.display.posts))
	}
	if len(rig.display.deletes) != 1 {
		t.Fatalf("deletes = %d, want first control message removed", len(rig.display.deletes))
	}
	// Unknown duration renders the placeholder bar on the control message.
	if got := RenderProgress(30, current.Duration); !strings.Contains(got, "--:--") {
		t.Fatalf("progress = %q, want placeholder for unknown duration", got)
	}

	rig.orch.HandleStreamEnd(ctx, 100)
	if _, _, ok := rig.orch.NowPlaying(100); ok {
		t.Fatal("chat should be idle after both items finished")
	}
	if rig.transport.disconnectCount() != 1 {
		t.Fatalf("disconnects = %d, want 1 on final drain", rig.transport.disconnectCount())
	}
}

func TestStopDuringConnectLeavesChatIdle(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	// The stop lands while the transport connect is still in flight.
	rig.transport.onConnect = func() { rig.orch.Stop(ctx, 100) }

	rig.orch.Enqueue(ctx, 100, item("a"), false)

	if rig.sessions.Active(100) {
		t.Fatal("explicit stop must leave the chat idle even mid-connect")
	}
	if _, _, ok := rig.orch.NowPlaying(100); ok {
		t.Fatal("no session may survive an explicit stop")
	}
	if _, total := rig.orch.Queue(100); total != 0 {
		t.Fatal("queue must stay cleared after the stop")
	}
	if rig.transport.disconnectCount() == 0 {
		t.Fatal("the in-flight stream must be torn down")
	}
	if len(rig.display.posts) != 0 {
		t.Fatal("no control message may be posted for a stopped session")
	}
}

func TestStreamEndDuringConnectDoesNotResurrect(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	// A late end signal for the previous stream arrives mid-connect.
	rig.transport.onConnect = func() { rig.orch.HandleStreamEnd(ctx, 100) }

	rig.orch.Enqueue(ctx, 100, item("a"), false)

	if rig.sessions.Active(100) {
		t.Fatal("chat must end idle, not stuck in a phantom session")
	}
	if _, _, ok := rig.orch.NowPlaying(100); ok {
		t.Fatal("the torn-down start must not reach Playing")
	}
	if len(rig.display.posts) != 0 {
		t.Fatal("no control message may be posted for a torn-down start")
	}
}

func TestLateStreamEndYieldsToNextItem(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.transport.onConnect = func() {
		rig.orch.Enqueue(ctx, 100, item("b"), false)
		rig.orch.HandleStreamEnd(ctx, 100)
	}

	rig.orch.Enqueue(ctx, 100, item("a"), false)

	current, _, ok := rig.orch.NowPlaying(100)
	if !ok || current.Title != "b" {
		t.Fatalf("playing %q ok=%v, want the takeover item b", current.Title, ok)
	}
	if rig.transport.disconnectCount() != 0 {
		t.Fatal("the takeover session's stream must stay connected")
	}
	if len(rig.display.posts) != 1 {
		t.Fatalf("control posts = %d, want 1 for the live session only", len(rig.display.posts))
	}
}

func TestIndependentChatsDoNotInterfere(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	rig.orch.Enqueue(ctx, 100, item("a"), false)
	rig.orch.Enqueue(ctx, 200, item("b"), false)

	if current, _, ok := rig.orch.NowPlaying(100); !ok || current.Title != "a" {
		t.Fatal("chat 100 should play its own item")
	}
	if current, _, ok := rig.orch.NowPlaying(200); !ok || current.Title != "b" {
		t.Fatal("chat 200 should play its own item")
	}

	rig.orch.HandleStreamEnd(ctx, 100)
	if _, _, ok := rig.orch.NowPlaying(200); !ok {
		t.Fatal("ending chat 100 must not touch chat 200")
	}
}
