package storage

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
)

// Simulator imitates a remote backend: every call waits a fixed latency and may
// fail transiently.
type Simulator struct {
	latency     time.Duration
	failureRate float64

	mu       sync.Mutex
	failNext int
	rng      *rand.Rand
}

// NewSimulator creates a simulator. A zero latency and failure rate make it a no-op.
func NewSimulator(latency time.Duration, failureRate float64) *Simulator {
	return &Simulator{
		latency:     latency,
		failureRate: failureRate,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// NewSimulatorFromConfig creates a simulator from the mock settings of cfg
func NewSimulatorFromConfig(cfg Config) *Simulator {
	return NewSimulator(cfg.MockLatency, cfg.MockFailureRate)
}

// FailNext makes the next n calls fail with a transient error
func (s *Simulator) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Call waits out the latency and reports whether the call failed. Cancellation of
// ctx ends the wait early with ctx's error.
func (s *Simulator) Call(ctx context.Context, operation string) error {
	if s == nil {
		return nil
	}
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	if s.shouldFail() {
		return apperr.Wrap(apperr.TransientFailure, apperr.ErrTransient, "backend call "+operation+" failed")
	}
	return nil
}

func (s *Simulator) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return true
	}
	return s.failureRate > 0 && s.rng.Float64() < s.failureRate
}
