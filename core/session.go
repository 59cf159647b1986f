package core

import (
	"context"
	"time"
)

// SessionStore remembers revoked sessions, by session id, until their token expires.
type SessionStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}
