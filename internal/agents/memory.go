package agents

import "sync"

// Exchange is one completed user/agent message pair.
type Exchange struct {
	UserMsg string
	Reply   string
}

// Memory is a sliding window over an agent's own recent exchanges. When the
// window is full the oldest exchange is dropped.
type Memory struct {
	mu        sync.Mutex
	max       int
	exchanges []Exchange
}

// NewMemory creates a memory holding at most max exchanges.
func NewMemory(max int) *Memory {
	return &Memory{max: max}
}

// Record appends a completed exchange, evicting the oldest when full.
func (m *Memory) Record(userMsg, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, Exchange{UserMsg: userMsg, Reply: reply})
	if len(m.exchanges) > m.max {
		m.exchanges = m.exchanges[len(m.exchanges)-m.max:]
	}
}

// Exchanges returns a copy of the window, oldest first.
func (m *Memory) Exchanges() []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Exchange, len(m.exchanges))
	copy(out, m.exchanges)
	return out
}

// Len reports how many exchanges the window currently holds.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.exchanges)
}
