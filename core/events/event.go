package events

import (
	"sync"

	"sentechain/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves as the flat
// attribute map consumed by RPC clients and the mirror.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// ToTypes converts evt into its generic payload.
func ToTypes(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if p, ok := evt.(Payload); ok {
		if out := p.Event(); out != nil {
			return out
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Record is a committed event annotated with its position in the global
// mutation order. Index is the position of the event within its height.
type Record struct {
	Height    uint64       `json:"height"`
	Index     int          `json:"index"`
	Timestamp int64        `json:"timestamp"`
	Event     *types.Event `json:"event"`
}

// EventType implements the Event interface.
func (r Record) EventType() string {
	if r.Event == nil {
		return ""
	}
	return r.Event.Type
}

// Fanout delivers every event to each registered emitter in registration
// order.
type Fanout struct {
	mu       sync.RWMutex
	emitters []Emitter
}

// NewFanout constructs a fanout over the supplied emitters. Nil entries are
// skipped.
func NewFanout(emitters ...Emitter) *Fanout {
	f := &Fanout{}
	for _, e := range emitters {
		f.Add(e)
	}
	return f
}

// Add registers an additional emitter.
func (f *Fanout) Add(e Emitter) {
	if f == nil || e == nil {
		return
	}
	f.mu.Lock()
	f.emitters = append(f.emitters, e)
	f.mu.Unlock()
}

// Emit implements the Emitter interface.
func (f *Fanout) Emit(evt Event) {
	if f == nil {
		return
	}
	f.mu.RLock()
	emitters := append([]Emitter(nil), f.emitters...)
	f.mu.RUnlock()
	for _, e := range emitters {
		e.Emit(evt)
	}
}
