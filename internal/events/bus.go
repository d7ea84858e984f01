package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"basicsos.app/automation/common/logger"
)

// DefaultMaxListeners is the per-type count above which registration logs a
// possible listener leak. It is not enforced.
const DefaultMaxListeners = 100

// Listener consumes an event. A returned error is logged by the Bus and
// otherwise ignored.
type Listener func(ctx context.Context, e Event) error

// Subscription identifies a registration so it can be removed with Off.
type Subscription struct {
	id        uint64
	eventType EventType // empty for wildcard
}

type ListenerOption func(*entry)

// Async runs the listener on its own goroutine. Emit does not wait for it,
// so Emit returning says nothing about the listener's side effects.
func Async() ListenerOption {
	return func(e *entry) { e.async = true }
}

// Named labels the listener in logs.
func Named(name string) ListenerOption {
	return func(e *entry) { e.name = name }
}

type entry struct {
	id       uint64
	listener Listener
	async    bool
	name     string
}

// Bus is an in-process typed publish/subscribe hub. It is not shared across
// processes; cross-process work goes through the durable queue.
type Bus struct {
	mu           sync.RWMutex
	nextID       uint64
	wildcard     []entry
	typed        map[EventType][]entry
	maxListeners int
	inflight     sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{
		typed:        make(map[EventType][]entry),
		maxListeners: DefaultMaxListeners,
	}
}

// SetMaxListeners changes the leak warning threshold. n <= 0 disables it.
func (b *Bus) SetMaxListeners(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxListeners = n
}

// On registers l for events of type t.
func (b *Bus) On(t EventType, l Listener, opts ...ListenerOption) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.newEntry(l, opts)
	b.typed[t] = append(b.typed[t], e)
	b.warnIfLeaking(string(t), len(b.typed[t]))
	return Subscription{id: e.id, eventType: t}
}

// OnAny registers l for every event. Wildcard listeners run before typed ones.
func (b *Bus) OnAny(l Listener, opts ...ListenerOption) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.newEntry(l, opts)
	b.wildcard = append(b.wildcard, e)
	b.warnIfLeaking("*", len(b.wildcard))
	return Subscription{id: e.id}
}

// Off removes the registration. Unknown or already removed subscriptions are ignored.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.eventType == "" {
		b.wildcard = without(b.wildcard, sub.id)
		return
	}
	remaining := without(b.typed[sub.eventType], sub.id)
	if len(remaining) == 0 {
		delete(b.typed, sub.eventType)
		return
	}
	b.typed[sub.eventType] = remaining
}

// RemoveAllListeners drops the listeners of the given types, or every
// listener (wildcard included) when called without arguments.
func (b *Bus) RemoveAllListeners(types ...EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(types) == 0 {
		b.wildcard = nil
		b.typed = make(map[EventType][]entry)
		return
	}
	for _, t := range types {
		delete(b.typed, t)
	}
}

// ListenerCount returns the number of listeners that would receive an event of type t.
func (b *Bus) ListenerCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.wildcard) + len(b.typed[t])
}

// Emit dispatches e to every wildcard listener in registration order, then to
// the listeners of e.Type. Listener errors and panics are logged and never
// reach the caller. An event nobody listens to is dropped.
func (b *Bus) Emit(ctx context.Context, e Event) {
	b.mu.RLock()
	targets := make([]entry, 0, len(b.wildcard)+len(b.typed[e.Type]))
	targets = append(targets, b.wildcard...)
	targets = append(targets, b.typed[e.Type]...)
	b.mu.RUnlock()

	if len(targets) == 0 {
		slog.DebugContext(ctx, "event emitted without listeners", "event_type", e.Type, "event_id", e.ID)
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TenantID:  logger.Ptr(e.TenantID),
		EventID:   logger.Ptr(e.ID),
		EventType: logger.Ptr(string(e.Type)),
	})

	for _, t := range targets {
		if !t.async {
			b.invoke(ctx, t, e)
			continue
		}
		b.inflight.Add(1)
		go func(t entry) {
			defer b.inflight.Done()
			// Async listeners outlive the emitting request.
			b.invoke(context.WithoutCancel(ctx), t, e)
		}(t)
	}
}

// Wait blocks until every async listener started so far has returned.
// Intended for graceful shutdown and tests; Emit never calls it.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

func (b *Bus) invoke(ctx context.Context, t entry, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event listener panicked",
				"listener", t.name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()

	if err := t.listener(ctx, e); err != nil {
		slog.ErrorContext(ctx, "event listener failed",
			"listener", t.name,
			"error", err)
	}
}

func (b *Bus) newEntry(l Listener, opts []ListenerOption) entry {
	b.nextID++
	e := entry{id: b.nextID, listener: l}
	for _, opt := range opts {
		opt(&e)
	}
	if e.name == "" {
		e.name = fmt.Sprintf("listener-%d", e.id)
	}
	return e
}

func (b *Bus) warnIfLeaking(key string, count int) {
	if b.maxListeners > 0 && count == b.maxListeners+1 {
		slog.Warn("possible event listener leak",
			"event_type", key,
			"listeners", count,
			"max_listeners", b.maxListeners)
	}
}

func without(entries []entry, id uint64) []entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}
