package attributes

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs
type MemoryStore struct {
	mu            sync.Mutex
	contacts      map[string]Map
	conversations map[string]Map
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:      map[string]Map{},
		conversations: map[string]Map{},
	}
}

func (s *MemoryStore) GetContactAttributes(_ context.Context, contactID string) (Map, error) {
	return s.get(s.contacts, contactID), nil
}

func (s *MemoryStore) SetContactAttributes(_ context.Context, contactID string, attrs Map) error {
	s.set(s.contacts, contactID, attrs)
	return nil
}

func (s *MemoryStore) GetConversationAttributes(_ context.Context, conversationID string) (Map, error) {
	return s.get(s.conversations, conversationID), nil
}

func (s *MemoryStore) SetConversationAttributes(_ context.Context, conversationID string, attrs Map) error {
	s.set(s.conversations, conversationID, attrs)
	return nil
}

func (s *MemoryStore) get(scope map[string]Map, id string) Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scope[id].Clone()
}

func (s *MemoryStore) set(scope map[string]Map, id string, attrs Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := scope[id]
	if !ok {
		current = Map{}
		scope[id] = current
	}
	for k, v := range attrs {
		current[k] = v
	}
}
