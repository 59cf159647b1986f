package sessionsvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/academia/core"
)

// MemoryStore keeps revoked session ids in process; used when no redis is configured
// and in tests. Revocations do not survive restarts nor span instances.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time // {id: expiry}
}

var _ core.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryStore) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := core.NowFunc()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[sessionID] = now.Add(ttl)
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.revoked[sessionID]
	return ok && exp.After(core.NowFunc()), nil
}
