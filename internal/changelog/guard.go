package changelog

import "sync"

// lifetime makes callbacks inert once its owner is destroyed. A callback
// either finishes before destroy returns or never runs.
type lifetime struct {
	mu   sync.RWMutex
	dead bool
}

// wrap must not be used for callbacks that destroy the same lifetime.
func wrap[T any](l *lifetime, fn func(T)) func(T) {
	return func(v T) {
		l.mu.RLock()
		defer l.mu.RUnlock()
		if l.dead {
			return
		}
		fn(v)
	}
}

func (l *lifetime) destroy() {
	l.mu.Lock()
	l.dead = true
	l.mu.Unlock()
}
