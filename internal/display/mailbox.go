// Package display moves snapshots from the frame-delivery goroutine to the
// single goroutine that owns presentation.
//
// The hand-off is a single-slot mailbox: Publish never blocks, a newer
// snapshot replaces one that has not been rendered yet, and the display loop
// renders whatever is in the slot when it wakes up.
package display

import (
	"context"
	"sync"
	"sync/atomic"

	"intrinsics-map-go/internal/types"
)

// Renderer draws a snapshot. It is only ever called from the Run goroutine.
type Renderer interface {
	Render(snapshot types.DisplaySnapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(types.DisplaySnapshot)

func (f RendererFunc) Render(snapshot types.DisplaySnapshot) { f(snapshot) }

// Renderers fans a snapshot out to several renderers in order.
type Renderers []Renderer

func (rs Renderers) Render(snapshot types.DisplaySnapshot) {
	for _, r := range rs {
		r.Render(snapshot)
	}
}

type Stats struct {
	Published uint64 `json:"published_total"`
	Rendered  uint64 `json:"rendered_total"`
	Dropped   uint64 `json:"dropped_total"`
}

type Mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *types.DisplaySnapshot
	latest  *types.DisplaySnapshot
	closed  bool

	published atomic.Uint64
	rendered  atomic.Uint64
	dropped   atomic.Uint64
}

func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores snapshot for the display loop and returns immediately.
// After Close it is a no-op.
func (m *Mailbox) Publish(snapshot types.DisplaySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.pending != nil {
		m.dropped.Add(1)
	}
	m.pending = &snapshot
	m.latest = &snapshot
	m.published.Add(1)
	m.cond.Signal()
}

// Latest returns the most recently published snapshot, rendered or not.
func (m *Mailbox) Latest() (types.DisplaySnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return types.DisplaySnapshot{}, false
	}
	return *m.latest, true
}

// Next blocks until a snapshot is pending or the mailbox is closed.
func (m *Mailbox) Next() (types.DisplaySnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.pending == nil && !m.closed {
		m.cond.Wait()
	}
	if m.pending == nil {
		return types.DisplaySnapshot{}, false
	}
	snapshot := *m.pending
	m.pending = nil
	return snapshot, true
}

// Close wakes the display loop. A pending snapshot is still delivered.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Run renders snapshots until ctx is done or the mailbox is closed.
func (m *Mailbox) Run(ctx context.Context, r Renderer) {
	stop := context.AfterFunc(ctx, m.Close)
	defer stop()
	for {
		snapshot, ok := m.Next()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.Render(snapshot)
		m.rendered.Add(1)
	}
}

func (m *Mailbox) Stats() Stats {
	return Stats{
		Published: m.published.Load(),
		Rendered:  m.rendered.Load(),
		Dropped:   m.dropped.Load(),
	}
}
