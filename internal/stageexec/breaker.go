package stageexec

import (
	"fmt"
	"sync"
	"time"

	"nativize/internal/services"
)

// Breaker is a per-service circuit breaker. After threshold consecutive
// failures it opens and rejects calls until the cooldown elapses; the
// first call after the cooldown probes the service, and a failure there
// reopens the circuit immediately.
type Breaker struct {
	mu        sync.Mutex
	name      string
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	halfOpen  bool
	now       func() time.Time
}

// NewBreaker constructs a closed breaker for the named service.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. When the circuit is open it
// returns a service_unavailable error that callers should not retry
// against this breaker until the cooldown passes.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return nil
	}
	if b.now().Before(b.openUntil) {
		remaining := b.openUntil.Sub(b.now()).Round(time.Second)
		return services.Wrap(services.ErrUnavailable, b.name, "circuit_breaker",
			fmt.Sprintf("circuit open, retry in %s", remaining), nil)
	}
	// Cooldown elapsed: let one probe through.
	b.halfOpen = true
	return nil
}

// Success records a successful call and closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
	b.halfOpen = false
}

// Failure records a failed call, opening the circuit at the threshold
// or immediately when a half-open probe fails.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.halfOpen || b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		b.halfOpen = false
		b.failures = 0
	}
}

// BreakerSet hands out one breaker per service name.
type BreakerSet struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	breakers  map[string]*Breaker
}

// NewBreakerSet constructs an empty set with shared thresholds.
func NewBreakerSet(threshold int, cooldown time.Duration) *BreakerSet {
	return &BreakerSet{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*Breaker),
	}
}

// Get returns the breaker for a service, creating it on first use.
func (s *BreakerSet) Get(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, s.threshold, s.cooldown)
	s.breakers[name] = b
	return b
}
