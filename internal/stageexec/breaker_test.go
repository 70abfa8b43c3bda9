package stageexec

import (
	"errors"
	"testing"
	"time"

	"nativize/internal/services"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := NewBreaker("analyzer", 3, time.Minute)
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		b.Failure()
		if err := b.Allow(); err != nil {
			t.Fatalf("breaker opened after %d failures: %v", i+1, err)
		}
	}
	b.Failure()

	err := b.Allow()
	if err == nil {
		t.Fatalf("expected open circuit after threshold failures")
	}
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected service_unavailable, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("speech", 2, time.Minute)
	b.Failure()
	b.Success()
	b.Failure()
	if err := b.Allow(); err != nil {
		t.Fatalf("success should reset the failure count: %v", err)
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := NewBreaker("speech", 1, time.Minute)
	b.now = func() time.Time { return now }

	b.Failure()
	if err := b.Allow(); err == nil {
		t.Fatalf("expected open circuit")
	}

	// Cooldown elapsed: one probe goes through.
	now = now.Add(61 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe after cooldown: %v", err)
	}

	// A failed probe reopens immediately, without reaching the threshold.
	b.Failure()
	if err := b.Allow(); err == nil {
		t.Fatalf("expected circuit to reopen after failed probe")
	}

	now = now.Add(61 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected second probe: %v", err)
	}
	b.Success()
	if err := b.Allow(); err != nil {
		t.Fatalf("expected closed circuit after successful probe: %v", err)
	}
}

func TestBreakerSetReturnsSameInstancePerName(t *testing.T) {
	set := NewBreakerSet(5, time.Minute)
	if set.Get("analyzer") != set.Get("analyzer") {
		t.Fatalf("expected one breaker per service name")
	}
	if set.Get("analyzer") == set.Get("speech") {
		t.Fatalf("expected distinct breakers for distinct services")
	}
}
