package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. Used when no Redis is
// configured; sessions do not survive restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryRecord
}

type memoryRecord struct {
	identityID uuid.UUID
	role       string
	expiresAt  time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryRecord)}
}

func (s *MemoryStore) SaveRefresh(_ context.Context, tokenHash string, identityID uuid.UUID, role string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = memoryRecord{identityID: identityID, role: role, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) LookupRefresh(_ context.Context, tokenHash string) (uuid.UUID, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[tokenHash]
	if !ok || time.Now().After(record.expiresAt) {
		delete(s.sessions, tokenHash)
		return uuid.Nil, "", fmt.Errorf("refresh session not found or expired")
	}
	return record.identityID, record.role, nil
}

func (s *MemoryStore) RevokeRefresh(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}
