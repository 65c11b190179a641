package session

import "sync"

// Registry owns one Orchestrator per session identifier. Safe for concurrent
// use across sessions; per-session serialization is the Orchestrator's job.
type Registry struct {
	mu       sync.RWMutex
	deps     Deps
	sessions map[string]*Orchestrator
}

// NewRegistry creates an empty registry whose sessions share the given
// collaborators.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Orchestrator),
	}
}

// Create starts a fresh session, replacing any existing one with the same id.
func (r *Registry) Create(sessionID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := NewOrchestrator(sessionID, r.deps)
	r.sessions[sessionID] = o
	return o
}

// Get returns the session with the given id.
func (r *Registry) Get(sessionID string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[sessionID]
	return o, ok
}

// GetOrCreate returns the existing session or starts a fresh one.
func (r *Registry) GetOrCreate(sessionID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.sessions[sessionID]; ok {
		return o
	}
	o := NewOrchestrator(sessionID, r.deps)
	r.sessions[sessionID] = o
	return o
}

// Delete removes a session from the registry.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// List returns the identifiers of all live sessions.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
