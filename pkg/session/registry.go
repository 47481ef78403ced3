package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry holds live console sessions in memory. Sessions idle longer than the
// TTL are evicted and never persisted.
type Registry[T any] struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, T]
}

// NewRegistry creates a registry holding at most size sessions. onEvict, if set,
// is called when a session expires or is removed.
func NewRegistry[T any](size int, ttl time.Duration, onEvict func(id string, value T)) *Registry[T] {
	var cb expirable.EvictCallback[string, T]
	if onEvict != nil {
		cb = func(key string, value T) { onEvict(key, value) }
	}
	return &Registry[T]{
		sessions: expirable.NewLRU[string, T](size, cb, ttl),
	}
}

// Get returns the session and refreshes its idle timer
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.sessions.Get(id)
	if ok {
		r.sessions.Add(id, v)
	}
	return v, ok
}

// Create stores a new session under a fresh id built by create
func (r *Registry[T]) Create(create func(id string) (T, error)) (string, T, error) {
	id := uuid.NewString()
	v, err := create(id)
	if err != nil {
		var zero T
		return "", zero, err
	}

	r.mu.Lock()
	r.sessions.Add(id, v)
	r.mu.Unlock()
	return id, v, nil
}

// Remove ends a session
func (r *Registry[T]) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Remove(id)
}

// Values returns the live sessions without refreshing their idle timers
func (r *Registry[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Values()
}

// Len returns the number of live sessions
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Len()
}
