package connection

import (
	"sort"
	"time"
)

// EventType identifies what an Event carries.
type EventType int

const (
	// EventStateChanged reports a transition. From, To and Err are set.
	EventStateChanged EventType = iota + 1
	// EventMessage reports a buffered inbound message. Message is set.
	EventMessage
)

func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state_changed"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is delivered to observers registered with Manager.Subscribe.
type Event struct {
	Type    EventType
	From    State
	To      State
	Err     error         // Cause of the transition, if any
	Delay   time.Duration // Retry delay when To is StateReconnecting
	Message InboundMessage
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it. Observers run one at a time in event order, outside the
// manager lock, and must not block. Calling Manager methods from an observer
// is allowed.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// emitLocked queues ev for the next dispatch. Caller holds m.mu.
func (m *Manager) emitLocked(ev Event) {
	if len(m.observers) == 0 {
		return
	}
	m.pending = append(m.pending, ev)
}

// dispatch drains queued events. Only one goroutine drains at a time; a
// nested or concurrent call returns immediately and its events are picked up
// by the active drain.
func (m *Manager) dispatch() {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true

	for len(m.pending) > 0 {
		events := m.pending
		m.pending = nil
		observers := m.observerListLocked()
		m.mu.Unlock()

		for _, ev := range events {
			for _, fn := range observers {
				fn(ev)
			}
		}

		m.mu.Lock()
	}

	m.dispatching = false
	m.mu.Unlock()
}

func (m *Manager) observerListLocked() []func(Event) {
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, m.observers[id])
	}
	return out
}
