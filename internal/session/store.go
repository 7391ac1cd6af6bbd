// Package session keeps the bearer token and user of the signed-in visitor.
package session

import (
	"sync"
)

// Scope is the lifetime of a stored value.
type Scope int

const (
	// Durable values survive browser restarts.
	Durable Scope = iota
	// Session values end with the browser session.
	Session
)

func (s Scope) String() string {
	if s == Session {
		return "session"
	}
	return "durable"
}

// Keys under which auth state is stored.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Store is a string key-value store split by scope.
type Store interface {
	Get(scope Scope, key string) (string, bool)
	Set(scope Scope, key, value string)
	Clear(scope Scope, key string)
}

// MemoryStore is a Store held in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[Scope]map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: map[Scope]map[string]string{
			Durable: {},
			Session: {},
		},
	}
}

// Get implements Store.
func (m *MemoryStore) Get(scope Scope, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[scope][key]
	return v, ok
}

// Set implements Store.
func (m *MemoryStore) Set(scope Scope, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope][key] = value
}

// Clear implements Store.
func (m *MemoryStore) Clear(scope Scope, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[scope], key)
}
