// Package confirm provides the synchronization bridge between the agent loop
// and an interactive approver for dangerous tool calls.
package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request describes a dangerous tool call awaiting a decision.
type Request struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	CreatedAt time.Time      `json:"created_at"`
}

// Decision is the approver's answer. ModifiedArgs, when non-nil, replaces
// the original arguments before execution.
type Decision struct {
	Allowed      bool
	ModifiedArgs map[string]any
}

// Notifier delivers a pending request to the approver front-end. It runs on
// the requester's goroutine and must not block; the approver answers later
// via Resolve, typically from a different goroutine.
type Notifier func(req Request)

// Bridge holds at most one outstanding confirmation request. Requesters
// queue on an internal slot so the single-outstanding invariant holds even
// under concurrent dangerous tool calls.
type Bridge struct {
	mu      sync.Mutex
	slot    chan struct{}
	notify  Notifier
	pending *pendingRequest
}

type pendingRequest struct {
	req Request
	ch  chan Decision
}

// NewBridge creates a bridge. The notifier may be nil, in which case pending
// requests are only discoverable through Pending.
func NewBridge(notify Notifier) *Bridge {
	return &Bridge{
		slot:   make(chan struct{}, 1),
		notify: notify,
	}
}

// SetNotifier replaces the approver notifier.
func (b *Bridge) SetNotifier(notify Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = notify
}

// Request registers a pending confirmation for the given tool call, signals
// the approver, and suspends until Resolve delivers a decision or the context
// is cancelled. The calling goroutine parks on a channel, so the approver's
// own event loop is never blocked.
func (b *Bridge) Request(ctx context.Context, tool string, args map[string]any) (Decision, error) {
	select {
	case b.slot <- struct{}{}:
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
	defer func() { <-b.slot }()

	p := &pendingRequest{
		req: Request{
			ID:        uuid.NewString(),
			Tool:      tool,
			Args:      args,
			CreatedAt: time.Now(),
		},
		ch: make(chan Decision, 1),
	}

	b.mu.Lock()
	b.pending = p
	notify := b.notify
	b.mu.Unlock()

	b.signalApprover(notify, p.req)

	select {
	case d := <-p.ch:
		b.clear(p.req.ID)
		return d, nil
	case <-ctx.Done():
		b.clear(p.req.ID)
		return Decision{}, ctx.Err()
	}
}

// signalApprover invokes the notifier. A missing or panicking notifier is a
// recoverable anomaly: the request stays pending and can still be resolved,
// so it is logged rather than raised.
func (b *Bridge) signalApprover(notify Notifier, req Request) {
	if notify == nil {
		slog.Warn("No approver notifier registered, confirmation awaits Resolve", "tool", req.Tool, "id", req.ID)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Approver notifier panicked, falling back to pending slot", "tool", req.Tool, "id", req.ID, "panic", r)
		}
	}()
	notify(req)
}

// Resolve delivers the approver's decision for the request with the given id.
// Safe to call from any goroutine. Decisions for stale or mismatched ids are
// ignored and reported as an error.
func (b *Bridge) Resolve(id string, allowed bool, modifiedArgs map[string]any) error {
	b.mu.Lock()
	p := b.pending
	b.mu.Unlock()

	if p == nil || p.req.ID != id {
		return fmt.Errorf("no pending confirmation: %s", id)
	}

	// Non-blocking send: the channel is buffered and consumed exactly once.
	select {
	case p.ch <- Decision{Allowed: allowed, ModifiedArgs: modifiedArgs}:
	default:
	}
	return nil
}

// Pending returns a snapshot of the outstanding request, if any.
func (b *Bridge) Pending() (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return Request{}, false
	}
	return b.pending.req, true
}

func (b *Bridge) clear(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil && b.pending.req.ID == id {
		b.pending = nil
	}
}
