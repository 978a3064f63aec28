package registry

import (
	"sync"
	"taskpulse/internal/core/contracts"
)

// Registry is the process-local set of open connections. Both tables are
// sync.Maps so a broadcast can iterate while other goroutines connect and
// disconnect, without a registry-wide lock.
type Registry struct {
	clients sync.Map // conn id → contracts.Connection
	pending sync.Map // identity id → contracts.Connection
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (h *Registry) Add(c contracts.Connection) {
	h.clients.LoadOrStore(c.ID(), c)
}

func (h *Registry) Remove(c contracts.Connection) {
	h.clients.Delete(c.ID())
	if id := c.IdentityID(); id != 0 {
		// A newer connection for the same identity may own the slot.
		h.pending.CompareAndDelete(id, c)
		return
	}
	h.pending.Range(func(k, v any) bool {
		if v == c {
			h.pending.CompareAndDelete(k, c)
		}
		return true
	})
}

func (h *Registry) MarkPending(identityID int64, c contracts.Connection) {
	h.pending.Store(identityID, c)
	// Closed between the caller's checks and the store: don't leave it behind.
	if !c.IsOpen() {
		h.pending.CompareAndDelete(identityID, c)
	}
}

func (h *Registry) ResolvePending(identityID int64) (contracts.Connection, bool) {
	v, ok := h.pending.LoadAndDelete(identityID)
	if !ok {
		return nil, false
	}
	return v.(contracts.Connection), true
}

// Pending peeks at the pending entry without taking it.
func (h *Registry) Pending(identityID int64) (contracts.Connection, bool) {
	v, ok := h.pending.Load(identityID)
	if !ok {
		return nil, false
	}
	return v.(contracts.Connection), true
}

func (h *Registry) Range(fn func(c contracts.Connection) bool) {
	h.clients.Range(func(_, v any) bool {
		return fn(v.(contracts.Connection))
	})
}

func (h *Registry) Len() int {
	n := 0
	h.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Registry) PendingLen() int {
	n := 0
	h.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
