package search

import "sync"

// Ticket identifies one query issued against a Slot
type Ticket uint64

// Slot holds the result of the most recently issued query. Completions carrying a
// ticket older than the newest one issued are discarded.
type Slot[T any] struct {
	mu      sync.Mutex
	issued  Ticket
	settled Ticket
	value   T
	err     error
}

// Begin issues a ticket for a new query
func (s *Slot[T]) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Complete stores the outcome of the query holding ticket. It reports false and leaves
// the slot unchanged when a newer query has been issued since.
func (s *Slot[T]) Complete(ticket Ticket, value T, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.issued || ticket <= s.settled {
		return false
	}
	s.settled = ticket
	s.value = value
	s.err = err
	return true
}

// Snapshot is the visible state of a Slot
type Snapshot[T any] struct {
	Value T
	Err   error
	// Ticket of the stored result, zero before any completion
	Ticket Ticket
	// Loading is true while the newest issued query has not completed
	Loading bool
}

// Load returns the stored result
func (s *Slot[T]) Load() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot[T]{Value: s.value, Err: s.err, Ticket: s.settled, Loading: s.issued > s.settled}
}
