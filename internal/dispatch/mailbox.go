package dispatch

import (
	"sync"

	"github.com/mmynk/tableside/internal/models"
)

const (
	boxOpen = iota
	boxDraining
	boxStopped
)

// mailbox is an unbounded FIFO queue for one subscriber.
type mailbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []models.Event
	state int
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) push(ev models.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != boxOpen {
		return false
	}
	m.queue = append(m.queue, ev)
	m.cond.Signal()
	return true
}

// pop blocks until an event is available. It returns false once the mailbox
// is stopped, or drained after drain was called.
func (m *mailbox) pop() (models.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && m.state == boxOpen {
		m.cond.Wait()
	}
	if m.state == boxStopped || len(m.queue) == 0 {
		return models.Event{}, false
	}
	ev := m.queue[0]
	m.queue[0] = models.Event{}
	m.queue = m.queue[1:]
	return ev, true
}

// stop discards queued events and returns how many were dropped.
func (m *mailbox) stop() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := len(m.queue)
	m.queue = nil
	m.state = boxStopped
	m.cond.Broadcast()
	return dropped
}

// drain lets queued events be delivered, then ends the consumer.
func (m *mailbox) drain() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == boxOpen {
		m.state = boxDraining
	}
	m.cond.Broadcast()
}

func (m *mailbox) depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
