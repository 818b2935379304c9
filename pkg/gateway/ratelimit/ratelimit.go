// Package ratelimit bounds how many live sessions a single API key may
// hold open at once, and how fast it may open new ones. State is kept
// in-process; running multiple daemon replicas multiplies the limits.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

type Config struct {
	// ConnectRPS/ConnectBurst shape session opens per key (token bucket).
	ConnectRPS   float64
	ConnectBurst int

	// MaxConcurrentSessions caps simultaneously open sessions per key.
	MaxConcurrentSessions int

	// Operational bounds for the in-memory key map.
	MaxEntries int
	EntryTTL   time.Duration
}

const (
	defaultMaxEntries = 10_000
	defaultEntryTTL   = 30 * time.Minute
)

type Limiter struct {
	cfg Config

	mu   sync.Mutex
	keys map[string]*keyState
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = defaultEntryTTL
	}
	return &Limiter{cfg: cfg, keys: make(map[string]*keyState)}
}

// KeyFromAPIKey derives a stable map key without retaining the raw
// credential in memory.
func KeyFromAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "k_" + hex.EncodeToString(sum[:16])
}

type Permit struct {
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

type Decision struct {
	Allowed    bool
	RetryAfter int
	Permit     *Permit
}

func rejected(retryAfter int) Decision {
	return Decision{RetryAfter: retryAfter}
}

func allowed(release func()) Decision {
	return Decision{Allowed: true, Permit: &Permit{release: release}}
}

// AcquireSession admits or rejects a new session for the key. On an
// allowed decision the caller must Release the permit when the session
// ends.
func (l *Limiter) AcquireSession(key string, now time.Time) Decision {
	if key == "" {
		key = "anonymous"
	}
	ks := l.stateFor(key, now)

	if l.cfg.ConnectRPS > 0 && l.cfg.ConnectBurst > 0 {
		if wait := ks.takeToken(now, l.cfg.ConnectRPS, l.cfg.ConnectBurst); wait > 0 {
			return rejected(wait)
		}
	}

	if l.cfg.MaxConcurrentSessions > 0 {
		select {
		case ks.sessions <- struct{}{}:
			return allowed(func() { <-ks.sessions })
		default:
			return rejected(1)
		}
	}
	return allowed(func() {})
}

type keyState struct {
	sessions chan struct{}
	lastSeen time.Time

	mu sync.Mutex
	// Token bucket for connect pacing; filled lazily on first use.
	tokens   float64
	refilled time.Time
	primed   bool
}

func (l *Limiter) stateFor(key string, now time.Time) *keyState {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.keys) >= l.cfg.MaxEntries {
		l.evictLocked(now)
	}

	ks, ok := l.keys[key]
	if !ok {
		ks = &keyState{sessions: make(chan struct{}, max(1, l.cfg.MaxConcurrentSessions))}
		l.keys[key] = ks
	}
	ks.lastSeen = now
	return ks
}

// evictLocked drops idle entries, then an arbitrary one if the map is
// still at capacity. Bounded memory wins over perfect fairness here.
func (l *Limiter) evictLocked(now time.Time) {
	for k, ks := range l.keys {
		if now.Sub(ks.lastSeen) > l.cfg.EntryTTL {
			delete(l.keys, k)
		}
	}
	if len(l.keys) < l.cfg.MaxEntries {
		return
	}
	for k := range l.keys {
		delete(l.keys, k)
		return
	}
}

// takeToken consumes one connect token, returning 0 on success or the
// whole number of seconds to wait before a token will be available.
func (ks *keyState) takeToken(now time.Time, rps float64, burst int) int {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	capacity := float64(burst)
	if !ks.primed {
		ks.tokens = capacity
		ks.refilled = now
		ks.primed = true
	}

	if gap := now.Sub(ks.refilled).Seconds(); gap > 0 {
		ks.tokens = math.Min(capacity, ks.tokens+gap*rps)
		ks.refilled = now
	}

	if ks.tokens >= 1 {
		ks.tokens--
		return 0
	}
	wait := int(math.Ceil((1 - ks.tokens) / rps))
	return max(wait, 1)
}
