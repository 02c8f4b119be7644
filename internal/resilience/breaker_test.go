package resilience

import (
	"testing"
	"time"
)

func TestClosedStateAllowsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)
	if !b.Allow() {
		t.Fatal("expected closed breaker to allow calls")
	}
	if got := b.State(); got != "closed" {
		t.Fatalf("expected state closed, got %q", got)
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for range 3 {
		b.RecordFailure()
	}

	if b.Allow() {
		t.Fatal("expected open breaker to reject calls")
	}
	if got := b.State(); got != "open" {
		t.Fatalf("expected state open, got %q", got)
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	// Trip the breaker
	b.RecordFailure()
	b.RecordFailure()

	if b.Allow() {
		t.Fatal("expected open breaker to reject calls")
	}

	// Advance past timeout
	now = now.Add(2 * time.Second)

	// Half-open: one probe allowed
	if !b.Allow() {
		t.Fatal("expected half-open breaker to allow a probe")
	}
	if got := b.State(); got != "half-open" {
		t.Fatalf("expected state half-open, got %q", got)
	}

	// Probe success closes the circuit
	b.RecordSuccess()
	if got := b.State(); got != "closed" {
		t.Fatalf("expected state closed after half-open success, got %q", got)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	// Trip the breaker
	b.RecordFailure()
	b.RecordFailure()

	// Advance past timeout to reach half-open
	now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("expected half-open breaker to allow a probe")
	}

	// Probe failure reopens immediately
	b.RecordFailure()
	if got := b.State(); got != "open" {
		t.Fatalf("expected state open after half-open failure, got %q", got)
	}
	if b.Allow() {
		t.Fatal("expected reopened breaker to reject calls")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures should not trip (counter was reset, need 3)
	b.RecordFailure()
	b.RecordFailure()

	if !b.Allow() {
		t.Fatal("expected breaker to stay closed below threshold")
	}
}
