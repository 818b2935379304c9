package ratelimit

import (
	"testing"
	"time"
)

func TestAcquireSession_EnforcesConcurrency(t *testing.T) {
	l := New(Config{MaxConcurrentSessions: 1})
	now := time.Now()

	first := l.AcquireSession("k1", now)
	if !first.Allowed || first.Permit == nil {
		t.Fatalf("first allowed=%v permit=%v", first.Allowed, first.Permit)
	}

	second := l.AcquireSession("k1", now)
	if second.Allowed {
		t.Fatal("second session for same key should be rejected")
	}

	other := l.AcquireSession("k2", now)
	if !other.Allowed {
		t.Fatal("different key should not share the cap")
	}
	other.Permit.Release()

	first.Permit.Release()
	third := l.AcquireSession("k1", now)
	if !third.Allowed {
		t.Fatal("release should free the slot")
	}
	third.Permit.Release()
}

func TestAcquireSession_ConnectRate(t *testing.T) {
	l := New(Config{ConnectRPS: 1, ConnectBurst: 2})
	now := time.Now()

	for i := 0; i < 2; i++ {
		d := l.AcquireSession("k1", now)
		if !d.Allowed {
			t.Fatalf("connect %d within burst should pass", i)
		}
		d.Permit.Release()
	}

	d := l.AcquireSession("k1", now)
	if d.Allowed {
		t.Fatal("burst exhausted, expected rejection")
	}
	if d.RetryAfter < 1 {
		t.Fatalf("RetryAfter=%d, want >=1", d.RetryAfter)
	}

	later := l.AcquireSession("k1", now.Add(2*time.Second))
	if !later.Allowed {
		t.Fatal("bucket should refill over time")
	}
	later.Permit.Release()
}

func TestPermitRelease_Idempotent(t *testing.T) {
	l := New(Config{MaxConcurrentSessions: 1})
	now := time.Now()

	d := l.AcquireSession("k1", now)
	d.Permit.Release()
	d.Permit.Release()

	if again := l.AcquireSession("k1", now); !again.Allowed {
		t.Fatal("double release must not corrupt the semaphore")
	}
}

func TestKeyFromAPIKey_StableAndOpaque(t *testing.T) {
	a := KeyFromAPIKey("secret-1")
	b := KeyFromAPIKey("secret-1")
	c := KeyFromAPIKey("secret-2")

	if a != b {
		t.Fatal("same credential must map to the same key")
	}
	if a == c {
		t.Fatal("different credentials must map to different keys")
	}
	if len(a) != len("k_")+32 {
		t.Fatalf("unexpected key length %d", len(a))
	}
}
