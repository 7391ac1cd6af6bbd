package forms

import "sync"

// Inflight allows at most one submission per key at a time.
type Inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewInflight creates an empty guard.
func NewInflight() *Inflight {
	return &Inflight{keys: make(map[string]struct{})}
}

// Acquire claims key. It returns ErrSubmitInProgress when key is already
// claimed; otherwise the returned func releases it.
func (g *Inflight) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.keys[key]; busy {
		return nil, ErrSubmitInProgress
	}
	g.keys[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.keys, key)
			g.mu.Unlock()
		})
	}, nil
}
