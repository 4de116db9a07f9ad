// Package registry is the single source of truth for the architecture each
// simulation session currently has. State lives in process memory only;
// entries are created on first plan, overwritten on every subsequent plan or
// edit, and never deleted.
package registry

import (
	"sync"

	"github.com/dkoutsos/agentsim/internal/model"
)

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.AgentNetworkArchitecture
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*model.AgentNetworkArchitecture),
	}
}

// Get returns the last-written architecture for a session, or false if the
// session has none yet.
func (r *Registry) Get(simulationID string) (*model.AgentNetworkArchitecture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	arch, ok := r.sessions[simulationID]
	return arch, ok
}

// Put replaces a session's architecture wholesale. Last writer wins.
func (r *Registry) Put(simulationID string, arch *model.AgentNetworkArchitecture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[simulationID] = arch
}

// Len reports the number of sessions with a stored architecture.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
