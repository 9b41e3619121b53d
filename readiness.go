package clobengine

import (
	"context"
	"sync"
)

// Readiness is an awaitable gate around asynchronous client
// (re)initialization. After a wallet connect or address change the signing
// client is briefly unusable; callers await readiness instead of polling a
// mutable reference.
type Readiness struct {
	mu    sync.Mutex
	ch    chan struct{}
	ready bool
}

// NewReadiness creates a gate in the not-ready state.
func NewReadiness() *Readiness {
	return &Readiness{ch: make(chan struct{})}
}

// Ready opens the gate, releasing current and future waiters. Idempotent.
func (r *Readiness) Ready() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		r.ready = true
		close(r.ch)
	}
}

// Reset closes the gate again, e.g. when the wallet address changes and the
// client must reinitialize.
func (r *Readiness) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		r.ready = false
		r.ch = make(chan struct{})
	}
}

// Await blocks until the gate is open or ctx is done.
func (r *Readiness) Await(ctx context.Context) error {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ErrNotReady
	}
}

// IsReady reports the gate state without blocking.
func (r *Readiness) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}
