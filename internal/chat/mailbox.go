package chat

import "sync"

// mailbox is an unbounded FIFO feeding a session's event loop. Posting never
// blocks, so platform callbacks may fire from inside the loop itself.
type mailbox struct {
	mu     sync.Mutex
	queue  []event
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// post enqueues e and reports whether it was accepted.
func (m *mailbox) post(e event) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

// close rejects further posts and returns whatever was still queued.
func (m *mailbox) close() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	out := m.queue
	m.queue = nil
	return out
}
