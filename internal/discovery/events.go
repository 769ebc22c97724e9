// internal/discovery/events.go - in-process event stream toward the UI layer
package discovery

import (
	"sync"
)

// Event types pushed to subscribers.
const (
	EventProgress     = "discoveryProgress"
	EventNewDevice    = "newDeviceFound"
	EventDeviceUpdate = "deviceUpdated"
	EventComplete     = "discoveryComplete"
)

type Event struct {
	Type  string      `json:"type"`
	RunID string      `json:"run_id,omitempty"`
	Data  interface{} `json:"data"`
}

type ProgressData struct {
	Progress  int `json:"progress"`
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Found     int `json:"found"`
}

type CompleteData struct {
	FoundDevices   int     `json:"foundDevices"`
	TotalProcessed int     `json:"totalProcessed"`
	DurationMs     float64 `json:"duration_ms"`
}

const subscriberBuffer = 256

// Bus is a small broadcast channel. Messages are small and subscribers are
// expected to keep up; when one falls behind, the oldest queued event is
// dropped rather than blocking the run.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]bool)}
}

// Subscribe returns a receive channel and a cancel function. The cancel
// function is idempotent.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = true
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

func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Full buffer: drop the oldest event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
