package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vschool/agentsync/internal/models"
)

// MemoryStore is an in-memory MessageStore for tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	messages      map[string]*models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
	}
}

func (s *MemoryStore) UpsertConversation(conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *conv
	if existing, ok := s.conversations[c.ID]; ok && existing.LastMessageAt.After(c.LastMessageAt) {
		c.LastMessageAt = existing.LastMessageAt
	}
	s.conversations[c.ID] = &c
	return nil
}

func (s *MemoryStore) UpsertMessage(msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *msg
	if existing, ok := s.messages[m.ExternalID]; ok {
		// Match the SQL upsert: only content and intent survive a replay,
		// the session assignment is left alone.
		m.SessionID = existing.SessionID
	}
	s.messages[m.ExternalID] = &m
	return nil
}

func (s *MemoryStore) ListConversations() ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (s *MemoryStore) ListMessages(conversationID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			mm := *m
			out = append(out, &mm)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateSessionAssignments(conversationID string, assignments map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for externalID, sessionID := range assignments {
		m, ok := s.messages[externalID]
		if !ok || m.ConversationID != conversationID {
			return fmt.Errorf("error updating session for message %s: not found", externalID)
		}
		m.SessionID = sessionID
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
