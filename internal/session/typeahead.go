package session

import (
	"sync"
	"time"
)

// PendingInput is one queued keystroke record waiting for the host to
// hand the line back.
type PendingInput struct {
	Sequence uint64
	AID      byte
	Payload  []byte
	QueuedAt time.Time
}

// Typeahead queues input typed while the keyboard is locked. It drains
// in arrival order the moment the host invites the next operation.
type Typeahead struct {
	mu    sync.Mutex
	queue []PendingInput
	next  uint64
}

func NewTypeahead() *Typeahead {
	return &Typeahead{}
}

func (q *Typeahead) Enqueue(aid byte, payload []byte) uint64 {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.queue = append(q.queue, PendingInput{
		Sequence: q.next,
		AID:      aid,
		Payload:  buf,
		QueuedAt: time.Now(),
	})
	return q.next
}

// Drain removes and returns every queued input in arrival order.
func (q *Typeahead) Drain() []PendingInput {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue
	q.queue = nil
	return out
}

func (q *Typeahead) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Clear drops queued input without sending, as on reset or abort.
func (q *Typeahead) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = nil
}
