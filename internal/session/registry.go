package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Registry tracks active sessions by ID for the HTTP surface. Only one
// session exists per user interaction flow; the registry just maps flows to
// their controllers.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session under a fresh random ID.
func (r *Registry) Add(s *Session) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id, nil
}

// Get returns the session for an ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes the session and drops it from the registry. Closing first
// guarantees a pending feedback timer cannot fire into a removed session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
