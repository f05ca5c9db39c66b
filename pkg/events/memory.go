package events

import (
	"context"
	"sync"
)

// MemoryPublisher buffers events in memory. Used in tests and single-node
// setups without a broker.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*Event
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends the event to the buffer.
func (p *MemoryPublisher) Publish(_ context.Context, event *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Event(nil), p.events...)
}

// ByType returns published events of one type.
func (p *MemoryPublisher) ByType(t Type) []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
