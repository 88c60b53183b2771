package ingress

import (
	"testing"
	"time"
)

func TestIsDuplicateWithinWindow(t *testing.T) {
	g := NewGuard()
	if g.IsDuplicate("msg-1") {
		t.Fatal("first sighting should not be a duplicate")
	}
	if !g.IsDuplicate("msg-1") {
		t.Error("second sighting within window should be a duplicate")
	}
	if g.IsDuplicate("msg-2") {
		t.Error("different id should not be a duplicate")
	}
}

func TestIsDuplicateExpiresAfterWindow(t *testing.T) {
	g := NewGuard(WithDedupWindow(30 * time.Second))
	current := time.Unix(1000, 0)
	g.now = func() time.Time { return current }

	if g.IsDuplicate("msg-1") {
		t.Fatal("first sighting should not be a duplicate")
	}
	current = current.Add(31 * time.Second)
	if g.IsDuplicate("msg-1") {
		t.Error("sighting after window expiry should not be a duplicate")
	}
}

func TestIsDuplicateEmptyID(t *testing.T) {
	g := NewGuard()
	if g.IsDuplicate("") || g.IsDuplicate("") {
		t.Error("messages without an id must never be treated as duplicates")
	}
}

func TestEvictExpired(t *testing.T) {
	g := NewGuard(WithDedupWindow(time.Second))
	current := time.Unix(1000, 0)
	g.now = func() time.Time { return current }

	g.IsDuplicate("msg-1")
	current = current.Add(2 * time.Second)
	g.evictExpired()

	g.mu.Lock()
	remaining := len(g.seen)
	g.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected dedup set to be empty after eviction, have %d entries", remaining)
	}
}

func TestAllowCeiling(t *testing.T) {
	g := NewGuard(WithRateLimit(15))
	for i := 0; i < 15; i++ {
		if !g.Allow("sender") {
			t.Fatalf("message %d should be allowed", i+1)
		}
	}
	if g.Allow("sender") {
		t.Error("16th message within epoch should be dropped")
	}
	if !g.Allow("other") {
		t.Error("other senders should be unaffected")
	}
}

func TestAllowAfterEpochReset(t *testing.T) {
	g := NewGuard(WithRateLimit(2))
	g.Allow("sender")
	g.Allow("sender")
	if g.Allow("sender") {
		t.Fatal("ceiling should apply before reset")
	}
	g.ResetCounters()
	if !g.Allow("sender") {
		t.Error("counter should be zero after epoch rollover")
	}
}
