package analytics

import (
	"sync"

	"github.com/voicecouncil/council/internal/clog"
)

// EventBus fans a published Event out to every subscriber's own bounded
// channel. Publish never blocks on a slow subscriber: a full channel
// drops the event for that subscriber rather than stalling the emitter.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	bufferSize  int
	log         *clog.Logger
}

func newEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		bufferSize:  bufferSize,
		log:         clog.New("analytics.bus"),
	}
}

// Subscribe returns a channel that receives every future event of typ.
// The caller owns draining it; nothing closes it until Unsubscribe.
func (b *EventBus) Subscribe(typ EventType) <-chan Event {
	ch := make(chan Event, b.bufferSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	key := string(typ)
	b.subscribers[key] = append(b.subscribers[key], ch)
	return ch
}

// Unsubscribe removes and closes ch from typ's subscriber list. A no-op
// if ch was never subscribed.
func (b *EventBus) Unsubscribe(typ EventType, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := string(typ)
	subs := b.subscribers[key]
	for i, s := range subs {
		if s == ch {
			close(s)
			b.subscribers[key] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish fans e out to every subscriber of e.Type. A subscriber whose
// buffer is full has the event dropped for it rather than blocking every
// other subscriber and the publisher behind it.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subscribers[string(e.Type)]
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			b.log.Warn("dropping event: subscriber buffer full", clog.Fields{"type": e.Type})
		}
	}
}
