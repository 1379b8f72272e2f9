package events

import (
	"context"
	"sync"

	"newswatch/internal/intel"
)

// MemoryPublisher records outcome events in memory. Used by tests and
// as the default when no broker is configured.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []intel.OutcomeEvent
}

// NewMemory creates an empty in-memory publisher.
func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends the event to the in-memory log.
func (p *MemoryPublisher) Publish(_ context.Context, event intel.OutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []intel.OutcomeEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]intel.OutcomeEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Close is a no-op.
func (p *MemoryPublisher) Close() error { return nil }
