package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/optiqlab/scopecore/internal/types"
)

// Registration is one subscriber's membership in a device's client
// registry: the connection it belongs to, the buffer frames are
// delivered through, and when it joined.
type Registration struct {
	ID           uuid.UUID
	ConnectionID string
	Buffer       *FrameBuffer
	SubscribedAt time.Time
}

// Registry owns the ordered collection of subscriber registrations for
// exactly one frame-producing device. Subscribe and Unsubscribe are
// safe to call while a fan-out pass iterates a Snapshot; a pass
// delivers to exactly the registrations present when the snapshot was
// taken, and a closed buffer silently ignores late pushes.
type Registry struct {
	mu   sync.RWMutex
	regs []*Registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe registers a connection and allocates its frame buffer.
// A connection may hold at most one registration per device.
func (r *Registry) Subscribe(connectionID string, capacity int) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.regs {
		if reg.ConnectionID == connectionID {
			return nil, fmt.Errorf("%w: connection %s", types.ErrAlreadySubscribed, connectionID)
		}
	}

	reg := &Registration{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		Buffer:       NewFrameBuffer(capacity),
		SubscribedAt: time.Now(),
	}
	r.regs = append(r.regs, reg)
	return reg, nil
}

// Unsubscribe removes a registration and closes its buffer so no
// further frames reach the subscriber, including from a fan-out pass
// already holding an older snapshot.
func (r *Registry) Unsubscribe(id uuid.UUID) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, reg := range r.regs {
		if reg.ID == id {
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			reg.Buffer.Close()
			return reg, nil
		}
	}
	return nil, fmt.Errorf("unknown subscription: %s", id)
}

// RemoveIfUnreachable drops the registration for a connection whose
// transport failed. Returns nil if the connection holds none.
func (r *Registry) RemoveIfUnreachable(connectionID string) *Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, reg := range r.regs {
		if reg.ConnectionID == connectionID {
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			reg.Buffer.Close()
			return reg
		}
	}
	return nil
}

// Snapshot returns the registrations in subscription order as of the
// call. The returned slice is the caller's to iterate; membership
// changes after the snapshot do not affect it.
func (r *Registry) Snapshot() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Registration, len(r.regs))
	copy(out, r.regs)
	return out
}

// Get returns the registration with the given subscription ID.
func (r *Registry) Get(id uuid.UUID) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, reg := range r.regs {
		if reg.ID == id {
			return reg, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regs)
}

// CloseAll removes every registration, closing each buffer. Used at
// device shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.regs {
		reg.Buffer.Close()
	}
	r.regs = nil
}
