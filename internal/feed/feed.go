// Package feed carries readings and source state from a producer to any
// number of display sinks without letting a slow sink stall the producer.
package feed

import (
	"sync"
	"time"

	"github.com/luki/o2ring/internal/reading"
)

// State is the connection state a source reports.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateConnected
	StateReceiving
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReceiving:
		return "receiving"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Event is one thing a source has to say: a reading, a line it could not
// parse, or a change of connection state.
type Event struct {
	Time       time.Time
	Reading    reading.Reading
	HasReading bool
	Charge     reading.Charge
	Line       string // raw status line, when the source is text based
	Err        error
	State      State
	Status     string
}

// ReadingEvent builds a receiving event for r.
func ReadingEvent(r reading.Reading, t time.Time) Event {
	return Event{
		Time:       t,
		Reading:    r,
		HasReading: true,
		State:      StateReceiving,
		Status:     "Connected - Receiving Data",
	}
}

// StateEvent builds an event that only reports a state change.
func StateEvent(s State, status string, err error) Event {
	return Event{Time: time.Now(), State: s, Status: status, Err: err}
}

// Sink consumes events. Deliver must not block the caller for long.
type Sink interface {
	Deliver(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Deliver(e Event) { f(e) }

// Fanout delivers each event to every sink in order.
type Fanout []Sink

func (f Fanout) Deliver(e Event) {
	for _, s := range f {
		if s != nil {
			s.Deliver(e)
		}
	}
}

// ChannelSink buffers events for a consumer loop. When the buffer is full
// the oldest queued event is dropped.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChannelSink creates a sink with the given buffer size (minimum 1).
func NewChannelSink(size int) *ChannelSink {
	if size < 1 {
		size = 1
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

// Deliver queues e without blocking.
func (c *ChannelSink) Deliver(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for {
		select {
		case c.ch <- e:
			return
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// Events returns the receive side of the buffer.
func (c *ChannelSink) Events() <-chan Event {
	return c.ch
}

// Close closes the channel. Later deliveries are discarded.
func (c *ChannelSink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
