package sideeffect

import (
	"sync"

	"github.com/keon-labs/marketops/pkg/contracts"
)

// MemoryIntentStore is the process-scoped, multi-writer/multi-reader
// intent store. Append and Snapshot are the only supported operations and
// both are atomic; there is no cross-run locking since run prefixes are
// disjoint by construction.
type MemoryIntentStore struct {
	mu      sync.Mutex
	byRunID map[string][]contracts.SideEffectIntent
}

// NewMemoryIntentStore builds an empty store.
func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{byRunID: make(map[string][]contracts.SideEffectIntent)}
}

// Append records intent in call order under its run.
func (s *MemoryIntentStore) Append(runID string, intent contracts.SideEffectIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRunID[runID] = append(s.byRunID[runID], intent)
}

// Snapshot returns a defensive copy of every intent recorded for runID, in
// append order.
func (s *MemoryIntentStore) Snapshot(runID string) []contracts.SideEffectIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.byRunID[runID]
	out := make([]contracts.SideEffectIntent, len(src))
	copy(out, src)
	return out
}
