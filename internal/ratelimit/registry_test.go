package ratelimit

import (
	"testing"
	"time"
)

func TestRegistrySharesLimiterPerModel(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	a, err := r.For("gemini-2.0-flash", 5, time.Minute)
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	b, err := r.For("gemini-2.0-flash", 99, time.Hour)
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	if a != b {
		t.Fatal("same model should share one limiter instance")
	}

	c, err := r.For("gemini-2.0-pro", 5, time.Minute)
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	if a == c {
		t.Fatal("different models must not share a limiter")
	}

	// Quota consumed through one handle is visible through the other.
	a.Acquire()
	if got := b.Remaining(); got != 4 {
		t.Fatalf("remaining via second handle = %d, want 4", got)
	}
}

func TestRegistryRejectsInvalidConfig(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	if _, err := r.For("m", 0, time.Minute); err == nil {
		t.Fatal("expected error for max=0")
	}
}
