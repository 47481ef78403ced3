package search

import (
	"context"
	"time"
)

// RunFunc executes one search query
type RunFunc[T any] func(ctx context.Context, query string) (T, error)

type liveInput struct {
	ctx   context.Context
	query string
}

type liveValue[T any] struct {
	query string
	value T
}

// Live debounces query input and keeps the latest result
type Live[T any] struct {
	debouncer *Debouncer[liveInput]
	slot      Slot[liveValue[T]]
	run       RunFunc[T]
}

// NewLive creates a live search running run after each quiet period
func NewLive[T any](quiet time.Duration, run RunFunc[T]) *Live[T] {
	l := &Live[T]{run: run}
	l.debouncer = NewDebouncer(quiet, l.start)
	return l
}

// Input records the text typed so far. The query runs with ctx's values once input
// settles; ctx's cancellation does not stop it.
func (l *Live[T]) Input(ctx context.Context, query string) {
	l.debouncer.Trigger(liveInput{ctx: context.WithoutCancel(ctx), query: query})
}

// Flush runs the pending input without waiting for the quiet period
func (l *Live[T]) Flush() {
	l.debouncer.Flush()
}

func (l *Live[T]) start(in liveInput) {
	ticket := l.slot.Begin()
	go func() {
		value, err := l.run(in.ctx, in.query)
		l.slot.Complete(ticket, liveValue[T]{query: in.query, value: value}, err)
	}()
}

// LiveResult is the state of a live search
type LiveResult[T any] struct {
	Query   string
	Value   T
	Err     error
	Loading bool
	// Pending is true while input is waiting for the quiet period
	Pending bool
}

// Result returns the latest settled result
func (l *Live[T]) Result() LiveResult[T] {
	snap := l.slot.Load()
	return LiveResult[T]{
		Query:   snap.Value.query,
		Value:   snap.Value.value,
		Err:     snap.Err,
		Loading: snap.Loading,
		Pending: l.debouncer.Pending(),
	}
}

// Close drops pending input
func (l *Live[T]) Close() {
	l.debouncer.Stop()
}
