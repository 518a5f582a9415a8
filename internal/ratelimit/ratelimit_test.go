package ratelimit

import (
	"testing"
	"time"
)

func TestPerClientAllowsBurst(t *testing.T) {
	pc := NewPerClient(3, 1, time.Minute)
	defer pc.Close()

	for i := 0; i < 3; i++ {
		if ok, _ := pc.Allow("client-a"); !ok {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}

	ok, retryAfter := pc.Allow("client-a")
	if ok {
		t.Fatal("request beyond burst should be rejected")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retryAfter, got %v", retryAfter)
	}
}

func TestPerClientIsolatesClients(t *testing.T) {
	pc := NewPerClient(1, 0, time.Minute)
	defer pc.Close()

	if ok, _ := pc.Allow("a"); !ok {
		t.Fatal("first request from a should pass")
	}
	if ok, _ := pc.Allow("a"); ok {
		t.Fatal("second request from a should be rejected")
	}
	if ok, _ := pc.Allow("b"); !ok {
		t.Fatal("b has its own bucket")
	}
	if pc.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", pc.Len())
	}
}

func TestPerClientRefills(t *testing.T) {
	pc := NewPerClient(1, 1000, time.Minute)
	defer pc.Close()

	base := time.Now()
	pc.now = func() time.Time { return base }

	if ok, _ := pc.Allow("a"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := pc.Allow("a"); ok {
		t.Fatal("bucket should be empty")
	}

	pc.now = func() time.Time { return base.Add(10 * time.Millisecond) }
	if ok, _ := pc.Allow("a"); !ok {
		t.Fatal("bucket should have refilled after 10ms at 1000/s")
	}
}

func TestPerClientSweepRemovesStale(t *testing.T) {
	pc := NewPerClient(1, 1, time.Minute)
	defer pc.Close()

	pc.Allow("old")
	pc.sweep(time.Now().Add(2 * time.Minute))

	if pc.Len() != 0 {
		t.Fatalf("stale bucket should be removed, %d left", pc.Len())
	}
}

func TestPerClientCloseIsIdempotent(t *testing.T) {
	pc := NewPerClient(1, 1, time.Minute)
	pc.Close()
	pc.Close()
}
