package viewgate

import "sync"

// Navigator is the routing facility the gate drives
type Navigator interface {
	Navigate(path string)
	CurrentPath() string
}

// MemoryNavigator tracks a session's current route in memory
type MemoryNavigator struct {
	mu      sync.RWMutex
	current string
	history []string
}

// NewMemoryNavigator creates a navigator positioned at start
func NewMemoryNavigator(start string) *MemoryNavigator {
	if start == "" {
		start = "/"
	}
	return &MemoryNavigator{current: start, history: []string{start}}
}

// Navigate moves to path
func (n *MemoryNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
	n.history = append(n.history, path)
}

// CurrentPath returns the current route
func (n *MemoryNavigator) CurrentPath() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// History returns every route visited, oldest first
func (n *MemoryNavigator) History() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.history...)
}
