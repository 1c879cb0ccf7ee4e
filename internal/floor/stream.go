package floor

import (
	"sync"

	"github.com/aquamarinepk/aqm"
)

// TableChangeEvent is the payload pushed to dashboard clients whenever the
// published snapshot moves.
type TableChangeEvent struct {
	Event      string `json:"event"`
	Generation int64  `json:"generation"`
	Hydrated   bool   `json:"hydrated"`
	TableCount int    `json:"table_count"`
}

// Broadcaster fans snapshot-change events out to SSE subscribers. Sends are
// non-blocking: a subscriber that cannot keep up loses events instead of
// stalling the rest.
type Broadcaster struct {
	logger aqm.Logger

	mu          sync.RWMutex
	subscribers map[string]chan TableChangeEvent
}

func NewBroadcaster(logger aqm.Logger) *Broadcaster {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Broadcaster{
		logger:      logger,
		subscribers: make(map[string]chan TableChangeEvent),
	}
}

// Subscribe registers a subscriber and returns its event channel.
func (b *Broadcaster) Subscribe(subscriberID string) <-chan TableChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan TableChangeEvent, 100)
	b.subscribers[subscriberID] = ch
	b.logger.Info("new stream subscriber", "subscriber_id", subscriberID, "total_subscribers", len(b.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[subscriberID]; ok {
		close(ch)
		delete(b.subscribers, subscriberID)
		b.logger.Info("stream subscriber disconnected", "subscriber_id", subscriberID, "total_subscribers", len(b.subscribers))
	}
}

// Publish sends the event to every subscriber, dropping it for the slow ones.
func (b *Broadcaster) Publish(evt TableChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subscriberID, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Info("subscriber channel full, dropping event", "subscriber_id", subscriberID)
		}
	}
}
