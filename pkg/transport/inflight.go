package transport

import (
	"context"
	"sync"
)

// InFlightRegistry maps answer IDs to the cancel functions of streams
// still being generated. A DELETE on an in-flight answer looks its ID
// up here to abort the generation. Safe for concurrent use.
type InFlightRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register tracks a newly started stream.
func (r *InFlightRegistry) Register(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()
}

// Cancel aborts the stream for id and reports whether it was still
// registered. False means the stream already finished or never existed.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[id]
	if !ok {
		return false
	}
	cancel()
	delete(r.cancels, id)
	return true
}

// Remove drops id without cancelling, for streams that completed on
// their own.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.cancels, id)
	r.mu.Unlock()
}
