package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a notification.
type EventKind string

const (
	EventCellErrorsChanged EventKind = "cell-errors-changed"
	EventRowValidated      EventKind = "row-validated"
	EventOperationFailed   EventKind = "operation-failed"
	EventBatchProgress     EventKind = "batch-progress"
)

// Event is a notification emitted to subscribers. Row is -1 for events
// that are not tied to a row.
type Event struct {
	ID     string    `json:"id"`
	Kind   EventKind `json:"kind"`
	Time   time.Time `json:"time"`
	Row    int       `json:"row"`
	Column string    `json:"column,omitempty"`

	// cell-errors-changed
	Errors []string `json:"errors,omitempty"`

	// row-validated
	Duration   time.Duration      `json:"duration,omitempty"`
	AsyncCount int                `json:"async_count,omitempty"`
	Results    []ValidationResult `json:"results,omitempty"`

	// operation-failed
	Operation string `json:"operation,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Err       error  `json:"-"`

	// batch-progress
	Progress *BatchProgress `json:"progress,omitempty"`
}

// Notifier fans events out to subscribers.
//
// Delivery never blocks the publisher: a subscriber whose buffer is full
// misses the event.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewNotifier creates a notifier without subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel receiving events and a func that ends the
// subscription. The channel is closed on unsubscribe or when the notifier
// closes.
func (n *Notifier) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if sub, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(sub)
			}
		})
	}
}

// Publish sends e to every subscriber. ID and Time are filled when empty.
func (n *Notifier) Publish(e Event) {
	if n == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is slow, skip this event
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close closes every subscriber channel. Later publishes are dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		close(ch)
		delete(n.subs, id)
	}
}
