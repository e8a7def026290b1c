package ledger

import (
	"sync"
	"time"

	"github.com/vschool/agentsync/internal/models"
)

// MemoryStore is an in-memory ledger for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.LedgerEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.LedgerEntry)}
}

func (s *MemoryStore) Load() (map[string]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.LedgerEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) RecordOutcome(threadID string, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SyncFailed
	if outcome.Success {
		status = models.SyncSuccess
	}
	agents := outcome.Agents
	if agents == nil {
		agents = []string{}
	}
	s.entries[Key(threadID)] = models.LedgerEntry{
		SyncedAt: time.Now().UTC(),
		Status:   status,
		Agents:   agents,
	}
	return nil
}
