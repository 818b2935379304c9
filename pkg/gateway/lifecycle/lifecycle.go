// Package lifecycle tracks whether the daemon is draining. The readiness
// endpoint reports draining as not-ready so load balancers stop routing
// new WebSocket sessions while in-flight ones finish.
package lifecycle

import "sync/atomic"

type Lifecycle struct {
	draining atomic.Bool
}

// Drain marks the process as shutting down. It is never unset.
func (l *Lifecycle) Drain() {
	if l == nil {
		return
	}
	l.draining.Store(true)
}

func (l *Lifecycle) Draining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
