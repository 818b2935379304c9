// Package sessions tracks the live WebSocket connections so shutdown can
// cancel them and wait for their goroutines to drain.
package sessions

import (
	"context"
	"sync"
)

type Tracker struct {
	mu      sync.Mutex
	nextID  int
	cancels map[int]context.CancelFunc
	wg      sync.WaitGroup
}

func NewTracker() *Tracker {
	return &Tracker{cancels: make(map[int]context.CancelFunc)}
}

// Register records one running connection. The returned function must be
// called when the connection ends; it is safe to call more than once.
func (t *Tracker) Register(cancel context.CancelFunc) (unregister func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.cancels[id] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.cancels, id)
			t.mu.Unlock()
			t.wg.Done()
		})
	}
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cancels)
}

// CancelAll signals every tracked connection to stop.
func (t *Tracker) CancelAll() int {
	t.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(t.cancels))
	for _, c := range t.cancels {
		if c != nil {
			cancels = append(cancels, c)
		}
	}
	t.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return len(cancels)
}

// Wait blocks until every tracked connection has unregistered, or ctx
// expires. Reports whether the drain completed.
func (t *Tracker) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
