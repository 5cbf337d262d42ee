package repository

import (
	"sync"
	"time"
)

// MemoryRuleStore keeps per-rule last-fired marks in process memory.
// Cooldown state is deliberately not persisted: after a restart every
// rule is simply eligible to fire again.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	fired map[string]time.Time
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{fired: make(map[string]time.Time)}
}

func (s *MemoryRuleStore) LastFired(ruleID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.fired[ruleID]
	return t, ok
}

func (s *MemoryRuleStore) MarkFired(ruleID string, at time.Time) {
	s.mu.Lock()
	s.fired[ruleID] = at
	s.mu.Unlock()
}
