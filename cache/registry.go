package cache

import "sync"

// Registry owns one Cache per admin session. Open on login, Close on logout.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Cache
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Cache)}
}

// Open starts a fresh session cache for userID, replacing any previous one.
func (r *Registry) Open(userID string) *Cache {
	c := New()
	r.mu.Lock()
	if old, ok := r.sessions[userID]; ok {
		old.Clear()
	}
	r.sessions[userID] = c
	r.mu.Unlock()
	return c
}

// Get returns the session cache for userID, creating it if the session predates the
// process (tokens survive restarts, caches do not).
func (r *Registry) Get(userID string) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[userID]
	if !ok {
		c = New()
		r.sessions[userID] = c
	}
	return c
}

// Close clears and forgets the session cache for userID.
func (r *Registry) Close(userID string) {
	r.mu.Lock()
	c, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		c.Clear()
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
