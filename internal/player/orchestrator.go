/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/events"
	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/queue"
	"github.com/friendsincode/bragi_player/internal/session"
	"github.com/friendsincode/bragi_player/internal/telemetry"
)

var (
	// ErrNothingPlaying reports that no stream is active for the chat.
	ErrNothingPlaying = errors.New("nothing is playing")
	// ErrNoLinkedChannel reports a channel-linked request without a link.
	ErrNoLinkedChannel = errors.New("no channel linked to this chat")
	// ErrNotLinked reports an unlink on a chat with no mapping.
	ErrNotLinked = errors.New("chat is not linked to a channel")
	// ErrInvalidVolume reports a volume outside 1-200.
	ErrInvalidVolume = errors.New("volume must be between 1 and 200")
)

// EventPublisher fans playback lifecycle events out to observers.
type EventPublisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// Options configures the orchestrator.
type Options struct {
	Queues   *queue.Store
	Sessions *session.Registry
	Links    *session.Links

	Transport Transport
	Display   Display
	Acquirer  Acquirer
	Bus       EventPublisher
	Metrics   *telemetry.Metrics
	Logger    zerolog.Logger

	ProgressInterval time.Duration // default 8s
	SettleDelay      time.Duration // pause before advancing after a natural end
	QueueListLimit   int           // display cap for queue listings, default 10
	LoopHook         LoopHook      // default DiscardLoopHook
}

type notifierHandle struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator drives the per-chat playback state machine. It exclusively
// owns queue and session mutation; every exit path (natural end, skip, stop,
// fallback failure) funnels through the same advance loop.
type Orchestrator struct {
	queues   *queue.Store
	sessions *session.Registry
	links    *session.Links

	transport Transport
	display   Display
	acquirer  Acquirer
	bus       EventPublisher
	metrics   *telemetry.Metrics
	logger    zerolog.Logger

	progressInterval time.Duration
	settleDelay      time.Duration
	listLimit        int
	loopHook         LoopHook

	locks *keyedMutex

	nmu       sync.Mutex
	notifiers map[models.ChatID]*notifierHandle
}

// New creates the orchestrator.
func New(opts Options) *Orchestrator {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 8 * time.Second
	}
	if opts.QueueListLimit <= 0 {
		opts.QueueListLimit = 10
	}
	if opts.LoopHook == nil {
		opts.LoopHook = DiscardLoopHook
	}

	return &Orchestrator{
		queues:           opts.Queues,
		sessions:         opts.Sessions,
		links:            opts.Links,
		transport:        opts.Transport,
		display:          opts.Display,
		acquirer:         opts.Acquirer,
		bus:              opts.Bus,
		metrics:          opts.Metrics,
		logger:           opts.Logger.With().Str("component", "orchestrator").Logger(),
		progressInterval: opts.ProgressInterval,
		settleDelay:      opts.SettleDelay,
		listLimit:        opts.QueueListLimit,
		loopHook:         opts.LoopHook,
		locks:            newKeyedMutex(),
		notifiers:        make(map[models.ChatID]*notifierHandle),
	}
}

// Enqueue resolves the active chat for the request, appends the item and
// starts playback when the chat is idle. linked requests activate the
// persistent channel link; plain requests clear any active redirection for
// the origin chat. Returns the active chat id and whether the item was
// queued behind a current session.
func (o *Orchestrator) Enqueue(ctx context.Context, origin models.ChatID, item models.PlaybackItem, linked bool) (models.ChatID, bool, error) {
	if err := item.Validate(); err != nil {
		return 0, false, err
	}

	var chatID models.ChatID
	if linked {
		target, ok := o.links.Activate(origin)
		if !ok {
			return 0, false, ErrNoLinkedChannel
		}
		chatID = target
		o.bus.Publish(events.EventLinkActivated, events.Payload{"source_id": origin, "target_id": target})
	} else {
		o.links.Deactivate(origin)
		chatID = origin
	}

	if item.OriginID == 0 {
		item.OriginID = origin
	}

	o.locks.Lock(chatID)
	o.queues.Enqueue(chatID, item)
	queued := o.sessions.Active(chatID)
	o.locks.Unlock(chatID)

	o.metrics.ItemsEnqueued.Inc()
	o.bus.Publish(events.EventQueueUpdated, events.Payload{
		"chat_id": chatID,
		"title":   item.Title,
		"pending": o.queues.Len(chatID),
	})

	if !queued {
		o.Advance(ctx, chatID)
	}
	return chatID, queued, nil
}

// Advance pops the next playable item and starts it. Muted chats drain
// silently; failed starts surface the error and move on. Calling it with an
// empty queue and no session is a no-op. Any panic out of a transition is
// caught here so a stuck chat ends Idle instead of taking the process down.
func (o *Orchestrator) Advance(ctx context.Context, chatID models.ChatID) {
	o.advance(ctx, chatID, false)
}

func (o *Orchestrator) advance(ctx context.Context, chatID models.ChatID, wasPlaying bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Int64("chat_id", int64(chatID)).Msg("advance panicked, leaving chat idle")
			o.locks.Lock(chatID)
			o.sessions.AbortStart(chatID, "")
			o.locks.Unlock(chatID)
		}
	}()

	// Bounded: at most one pass over the queue as it stood on entry, so an
	// all-muted or all-failing queue terminates.
	limit := o.queues.Len(chatID) + 1
	for i := 0; i < limit; i++ {
		o.locks.Lock(chatID)
		if o.sessions.Active(chatID) {
			o.locks.Unlock(chatID)
			return
		}

		item, err := o.queues.DequeueFront(chatID)
		if err != nil {
			o.locks.Unlock(chatID)
			if wasPlaying {
				o.teardown(ctx, chatID)
			}
			return
		}

		if o.sessions.IsMuted(chatID) {
			o.locks.Unlock(chatID)
			o.metrics.MutedDiscards.Inc()
			o.logger.Debug().Int64("chat_id", int64(chatID)).Str("title", item.Title).Msg("chat muted, discarding item")
			continue
		}

		startID, _ := o.sessions.BeginStart(chatID)
		o.locks.Unlock(chatID)

		if o.startItem(ctx, chatID, startID, item) {
			return
		}
	}
}

// startItem connects the transport for one item, applying the fallback
// policy on rejection. Returns false when the item was dropped and the
// advance loop should try the next one. Blocking transport and acquisition
// calls run outside the per-chat lock; the Starting phase guards the slot.
func (o *Orchestrator) startItem(ctx context.Context, chatID models.ChatID, startID string, item models.PlaybackItem) bool {
	if err := o.transport.Connect(ctx, chatID, item.Locator, item.Kind); err != nil {
		if !item.Remote() {
			o.failItem(ctx, chatID, startID, item, err)
			return false
		}

		o.metrics.FallbackAttempts.Inc()
		o.bus.Publish(events.EventFallbackBegin, events.Payload{"chat_id": chatID, "locator": item.Locator})
		o.logger.Warn().Err(err).Int64("chat_id", int64(chatID)).Msg("direct stream rejected, acquiring locally")

		if aerr := o.acquirer.Acquire(ctx, &item); aerr != nil {
			o.bus.Publish(events.EventFallbackResult, events.Payload{"chat_id": chatID, "ok": false})
			o.failItem(ctx, chatID, startID, item, fmt.Errorf("fallback acquisition: %w", aerr))
			return false
		}

		o.metrics.FallbackSuccesses.Inc()
		o.bus.Publish(events.EventFallbackResult, events.Payload{"chat_id": chatID, "ok": true, "locator": item.Locator})

		if rerr := o.transport.Connect(ctx, chatID, item.Locator, item.Kind); rerr != nil {
			o.failItem(ctx, chatID, startID, item, fmt.Errorf("retry after fallback: %w", rerr))
			return false
		}
	}

	startedAt := time.Now()
	o.locks.Lock(chatID)
	promoted := o.sessions.MarkPlaying(chatID, startID, item, startedAt)
	active := o.sessions.Active(chatID)
	o.locks.Unlock(chatID)

	if !promoted {
		// The slot was torn down while the connect was in flight (explicit
		// stop or a late stream-end signal). The connected pipeline belongs
		// to nobody; drop it unless a newer session took the chat over.
		o.logger.Debug().Int64("chat_id", int64(chatID)).Str("title", item.Title).Msg("session torn down during connect, discarding stream")
		if !active {
			if err := o.transport.Disconnect(ctx, chatID); err != nil {
				o.logger.Debug().Err(err).Int64("chat_id", int64(chatID)).Msg("transport disconnect failed")
			}
		}
		return true
	}

	o.metrics.StreamsStarted.Inc()
	o.metrics.ActiveSessions.Inc()

	o.postControl(ctx, chatID, item)

	payload := events.Payload{
		"chat_id":   chatID,
		"origin_id": item.OriginID,
		"title":     item.Title,
		"kind":      item.Kind,
		"duration":  item.Duration,
		"requester": item.Requester,
	}
	o.bus.Publish(events.EventNowPlaying, payload)
	o.bus.Publish(events.EventStreamStarted, payload)
	return true
}

// postControl posts the fresh control message and starts the progress
// notifier against it. The display is best-effort: a failed post is logged
// and playback continues without a live progress bar.
func (o *Orchestrator) postControl(ctx context.Context, chatID models.ChatID, item models.PlaybackItem) {
	origin := item.OriginID
	if origin == 0 {
		origin = chatID
	}

	content := Content{Caption: buildCaption(item), Thumbnail: item.Thumbnail, ReplyToID: item.ReplyToID}
	handle, err := o.display.PostControlMessage(ctx, origin, content, BuildControls(0, item.Duration, chatID))
	if err != nil {
		o.logger.Warn().Err(err).Int64("chat_id", int64(chatID)).Msg("failed to post control message")
		return
	}

	o.locks.Lock(chatID)
	if _, _, ok := o.sessions.Current(chatID); !ok {
		// Session was torn down while the post was in flight.
		o.locks.Unlock(chatID)
		_ = o.display.DeleteMessage(ctx, handle)
		return
	}
	o.sessions.SetControl(chatID, &session.ControlMessage{ChatID: handle.ChatID, MessageID: handle.MessageID})
	o.startNotifier(chatID, handle)
	o.locks.Unlock(chatID)
}

func (o *Orchestrator) failItem(ctx context.Context, chatID models.ChatID, startID string, item models.PlaybackItem, err error) {
	o.metrics.StreamsFailed.Inc()
	o.metrics.ItemsSkipped.Inc()
	o.logger.Warn().Err(err).Int64("chat_id", int64(chatID)).Str("title", item.Title).Msg("dropping unplayable item")

	o.bus.Publish(events.EventStreamFailed, events.Payload{
		"chat_id": chatID,
		"title":   item.Title,
		"error":   err.Error(),
	})

	origin := item.OriginID
	if origin == 0 {
		origin = chatID
	}
	if nerr := o.display.PostNotice(ctx, origin, fmt.Sprintf("Could not play %q: %s", item.Title, err)); nerr != nil {
		o.logger.Debug().Err(nerr).Msg("failed to surface playback error")
	}

	o.locks.Lock(chatID)
	o.sessions.AbortStart(chatID, startID)
	o.locks.Unlock(chatID)
}

// HandleStreamEnd reacts to the transport's asynchronous stream-ended
// signal: cancel the notifier, clear the session, remove a local temp file,
// delete the control message, wait the settle delay, then advance.
func (o *Orchestrator) HandleStreamEnd(ctx context.Context, chatID models.ChatID) {
	o.logger.Info().Int64("chat_id", int64(chatID)).Msg("stream ended")

	view, ok := o.cleanupSession(ctx, chatID)
	if ok && view.Phase == session.PhasePlaying {
		switch o.loopHook(o.sessions.LoopMode(view.Item.OriginID), view.Item) {
		case LoopReplay:
			o.queues.EnqueueFront(chatID, view.Item)
		case LoopAppend:
			o.queues.Enqueue(chatID, view.Item)
		}
		o.bus.Publish(events.EventStreamEnded, events.Payload{"chat_id": chatID, "title": view.Item.Title})
	}

	if o.settleDelay > 0 {
		time.Sleep(o.settleDelay)
	}
	o.advance(ctx, chatID, true)
}

// Skip is a synthetic stream end that advances immediately.
func (o *Orchestrator) Skip(ctx context.Context, origin models.ChatID) error {
	chatID := o.links.Resolve(origin)
	if _, _, ok := o.sessions.Current(chatID); !ok {
		return ErrNothingPlaying
	}

	view, _ := o.cleanupSession(ctx, chatID)
	o.bus.Publish(events.EventStreamSkipped, events.Payload{"chat_id": chatID, "title": view.Item.Title})
	o.advance(ctx, chatID, true)
	return nil
}

// Stop clears the queue and tears the session down regardless of whether
// anything was playing.
func (o *Orchestrator) Stop(ctx context.Context, origin models.ChatID) error {
	chatID := o.links.Resolve(origin)

	o.locks.Lock(chatID)
	o.queues.Clear(chatID)
	o.locks.Unlock(chatID)

	o.cleanupSession(ctx, chatID)
	o.teardown(ctx, chatID)
	o.bus.Publish(events.EventStreamStopped, events.Payload{"chat_id": chatID})
	return nil
}

// cleanupSession cancels the notifier before any mutation, removes the
// session record, and performs the blocking cleanup (temp file removal,
// control message deletion) outside the per-chat lock.
func (o *Orchestrator) cleanupSession(ctx context.Context, chatID models.ChatID) (session.View, bool) {
	o.cancelNotifier(chatID)

	o.locks.Lock(chatID)
	view, ok := o.sessions.Finish(chatID)
	o.locks.Unlock(chatID)
	if !ok {
		return session.View{}, false
	}

	if view.Phase == session.PhasePlaying {
		o.metrics.ActiveSessions.Dec()
	}

	if view.Phase == session.PhasePlaying && !view.Item.Remote() {
		if err := os.Remove(view.Item.Locator); err != nil && !os.IsNotExist(err) {
			o.logger.Debug().Err(err).Str("path", view.Item.Locator).Msg("failed to remove local media file")
		}
	}

	if view.Control != nil {
		handle := MessageHandle{ChatID: view.Control.ChatID, MessageID: view.Control.MessageID}
		if err := o.display.DeleteMessage(ctx, handle); err != nil {
			o.logger.Debug().Err(err).Msg("failed to delete control message")
		}
	}

	return view, true
}

// teardown runs when a chat goes fully idle: disconnect the transport and
// release any channel link pointing at it.
func (o *Orchestrator) teardown(ctx context.Context, chatID models.ChatID) {
	if err := o.transport.Disconnect(ctx, chatID); err != nil {
		o.logger.Debug().Err(err).Int64("chat_id", int64(chatID)).Msg("transport disconnect failed")
	}
	o.links.DeactivateTarget(chatID)
	o.bus.Publish(events.EventQueueDrained, events.Payload{"chat_id": chatID})
	o.bus.Publish(events.EventLinkReleased, events.Payload{"target_id": chatID})
}

// Pause delegates to the transport; failures are reported, not retried.
func (o *Orchestrator) Pause(ctx context.Context, origin models.ChatID) error {
	return o.transport.Pause(ctx, o.links.Resolve(origin))
}

// Resume delegates to the transport.
func (o *Orchestrator) Resume(ctx context.Context, origin models.ChatID) error {
	return o.transport.Resume(ctx, o.links.Resolve(origin))
}

// SetVolume validates the 1-200 range and delegates to the transport.
func (o *Orchestrator) SetVolume(ctx context.Context, origin models.ChatID, percent int) error {
	if percent < 1 || percent > 200 {
		return ErrInvalidVolume
	}
	return o.transport.SetVolume(ctx, o.links.Resolve(origin), percent)
}

// Mute sets the mute flag consulted by advance and best-effort mutes the
// transport. Items started while muted are silently drained.
func (o *Orchestrator) Mute(ctx context.Context, origin models.ChatID) error {
	chatID := o.links.Resolve(origin)
	o.sessions.SetMuted(chatID, true)
	if err := o.transport.Mute(ctx, chatID); err != nil {
		o.logger.Debug().Err(err).Int64("chat_id", int64(chatID)).Msg("transport mute failed")
	}
	return nil
}

// Unmute clears the mute flag and best-effort unmutes the transport.
func (o *Orchestrator) Unmute(ctx context.Context, origin models.ChatID) error {
	chatID := o.links.Resolve(origin)
	o.sessions.SetMuted(chatID, false)
	if err := o.transport.Unmute(ctx, chatID); err != nil {
		o.logger.Debug().Err(err).Int64("chat_id", int64(chatID)).Msg("transport unmute failed")
	}
	return nil
}

// NowPlaying returns the active item and elapsed playback for the chat.
func (o *Orchestrator) NowPlaying(origin models.ChatID) (models.PlaybackItem, time.Duration, bool) {
	chatID := o.links.Resolve(origin)
	item, startedAt, ok := o.sessions.Current(chatID)
	if !ok {
		return models.PlaybackItem{}, 0, false
	}
	return item, time.Since(startedAt), true
}

// Queue returns a display-capped snapshot of pending items plus the total
// pending count.
func (o *Orchestrator) Queue(origin models.ChatID) ([]models.PlaybackItem, int) {
	chatID := o.links.Resolve(origin)
	return o.queues.PeekAll(chatID, o.listLimit), o.queues.Len(chatID)
}

// SetLoopMode stores the per-conversation loop selection.
func (o *Orchestrator) SetLoopMode(origin models.ChatID, mode models.LoopMode) {
	o.sessions.SetLoopMode(origin, mode)
}

// LoopMode returns the stored loop selection.
func (o *Orchestrator) LoopMode(origin models.ChatID) models.LoopMode {
	return o.sessions.LoopMode(origin)
}

// LinkChannel installs the persistent source -> target mapping.
func (o *Orchestrator) LinkChannel(source, target models.ChatID) {
	o.links.SetLink(source, target)
}

// LinkedChannel returns the persistent target mapping for source, if any.
func (o *Orchestrator) LinkedChannel(source models.ChatID) (models.ChatID, bool) {
	return o.links.Target(source)
}

// UnlinkChannel removes the persistent mapping and any active redirection.
func (o *Orchestrator) UnlinkChannel(source models.ChatID) (models.ChatID, error) {
	target, ok := o.links.Unlink(source)
	if !ok {
		return 0, ErrNotLinked
	}
	return target, nil
}

// ResolveActiveChatID exposes link resolution for callers that key external
// state by active chat.
func (o *Orchestrator) ResolveActiveChatID(origin models.ChatID) models.ChatID {
	return o.links.Resolve(origin)
}

func (o *Orchestrator) startNotifier(chatID models.ChatID, handle MessageHandle) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	n := &notifier{
		id:       id,
		chatID:   chatID,
		handle:   handle,
		sessions: o.sessions,
		display:  o.display,
		metrics:  o.metrics,
		interval: o.progressInterval,
		logger:   o.logger.With().Str("component", "notifier").Int64("chat_id", int64(chatID)).Logger(),
	}

	o.nmu.Lock()
	o.notifiers[chatID] = &notifierHandle{id: id, cancel: cancel, done: done}
	o.nmu.Unlock()

	o.sessions.SetNotifierID(chatID, id)

	go func() {
		defer close(done)
		n.run(ctx)
	}()
}

// cancelNotifier synchronously stops the chat's notifier, waiting for it to
// exit so a stale task cannot update the display for playback that has
// already changed.
func (o *Orchestrator) cancelNotifier(chatID models.ChatID) {
	o.nmu.Lock()
	h := o.notifiers[chatID]
	delete(o.notifiers, chatID)
	o.nmu.Unlock()

	if h != nil {
		h.cancel()
		<-h.done
	}
}
