package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallnest/bedrockgraph/store"
)

// Store is an in-process checkpoint store. It is intended for tests and
// single-process workflows; nothing survives a restart.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
	sessions    map[string][]string
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory checkpoint store
func New() *Store {
	return &Store{
		checkpoints: make(map[string]*store.Checkpoint),
		sessions:    make(map[string][]string),
	}
}

// Save stores a checkpoint
func (s *Store) Save(_ context.Context, checkpoint *store.Checkpoint) error {
	if checkpoint == nil || checkpoint.ID == "" {
		return fmt.Errorf("checkpoint must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.checkpoints[checkpoint.ID]; !exists && checkpoint.SessionID != "" {
		s.sessions[checkpoint.SessionID] = append(s.sessions[checkpoint.SessionID], checkpoint.ID)
	}
	cp := *checkpoint
	s.checkpoints[checkpoint.ID] = &cp

	return nil
}

// Load retrieves a checkpoint by ID
func (s *Store) Load(_ context.Context, checkpointID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, fmt.Errorf("checkpoint not found: %s", checkpointID)
	}
	copied := *cp
	return &copied, nil
}

// List returns all checkpoints for a session, in save order
func (s *Store) List(_ context.Context, sessionID string) ([]*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sessions[sessionID]
	result := make([]*store.Checkpoint, 0, len(ids))
	for _, id := range ids {
		if cp, ok := s.checkpoints[id]; ok {
			copied := *cp
			result = append(result, &copied)
		}
	}
	return result, nil
}

// Delete removes a checkpoint
func (s *Store) Delete(_ context.Context, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil
	}
	delete(s.checkpoints, checkpointID)

	ids := s.sessions[cp.SessionID]
	for i, id := range ids {
		if id == checkpointID {
			s.sessions[cp.SessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes all checkpoints for a session
func (s *Store) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.sessions[sessionID] {
		delete(s.checkpoints, id)
	}
	delete(s.sessions, sessionID)
	return nil
}
