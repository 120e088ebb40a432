package sampler

import "sync"

// mailbox holds at most one pending frame. A newer frame replaces an older
// one that has not been taken yet.
type mailbox struct {
	mu     sync.Mutex
	frame  *Frame
	notify chan struct{}
}

// put stores f and reports whether an undelivered frame was overwritten.
func (m *mailbox) put(f Frame) bool {
	m.mu.Lock()
	replaced := m.frame != nil
	m.frame = &f
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return replaced
}

func (m *mailbox) take() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == nil {
		return Frame{}, false
	}
	f := *m.frame
	m.frame = nil
	return f, true
}

func (m *mailbox) clear() {
	m.mu.Lock()
	m.frame = nil
	m.mu.Unlock()
}
