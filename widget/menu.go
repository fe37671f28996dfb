package widget

import "sync"

// Menu tracks whether the feed list menu is shown. It starts hidden.
type Menu struct {
	mu     sync.Mutex
	hidden bool
}

func NewMenu() *Menu {
	return &Menu{hidden: true}
}

func (m *Menu) Hidden() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hidden
}

// Toggle opens a closed menu or closes an open one, returning the new hidden state
func (m *Menu) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hidden = !m.hidden
	return m.hidden
}
