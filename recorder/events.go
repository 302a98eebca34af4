package recorder

import (
	"sync"
	"time"

	"github.com/DustinWehr/LinWhisper/log"
)

// EventKind classifies messages emitted during a recording cycle.
type EventKind string

const (
	// EventStatus carries a Status transition.
	EventStatus EventKind = "status"
	// EventLevel carries audio level metering while recording.
	EventLevel EventKind = "level"
	// EventProcessing brackets the AI post-processing sub-step.
	EventProcessing EventKind = "processing"
	// EventNavigation asks the frontend to show a route, e.g. the
	// history view after a finished cycle.
	EventNavigation EventKind = "navigation"
)

// Event is the payload delivered to subscribers. Fields beyond Kind
// and Timestamp are populated per kind.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	Status Status // EventStatus
	Err    string // EventStatus, set when Status is StatusError

	Level float64 // EventLevel, RMS scaled to [0,1]
	Peak  float64 // EventLevel

	Active bool // EventProcessing

	Route string // EventNavigation
}

const subscriberBuffer = 64

// Bus fans events out to subscribers over buffered channels. A slow
// subscriber never blocks the recording path: level events are dropped
// silently when a buffer is full, anything else is dropped with a
// warning.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a cancel func. The channel
// is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Bus) publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		if ev.Kind != EventStatus {
			if ev.Kind != EventLevel {
				log.Warnf("event subscriber too slow, dropping %s event", ev.Kind)
			}
			continue
		}
		// Status transitions must not be lost: evict the oldest queued
		// event to make room. Only publish adds to ch and it runs under
		// b.mu, so after the eviction the send cannot fail.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
