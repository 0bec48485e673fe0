package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/angelmondragon/sellerhub-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DelIfEquals(ctx context.Context, key, expected string) (bool, error)
}

type sessionKeyer interface {
	SellerSessionKey(sessionID string) string
}

// Manager tracks which issued seller session ids are still live.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
}

// SessionChecker exposes the read-only surface needed by middleware.
type SessionChecker interface {
	HasSession(ctx context.Context, sessionID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client}, nil
}

// Register records the session id for the seller until ttl elapses.
func (m *Manager) Register(ctx context.Context, sellerID, sessionID string, ttl time.Duration) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(sellerID) == "" {
		return fmt.Errorf("seller id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return m.store.Set(ctx, m.keyer.SellerSessionKey(sessionID), sellerID, ttl)
}

// Claim ends a live session owned by sellerID. It reports false when the
// session is unknown, already ended or owned by another seller; only one of
// any number of concurrent claims for the same session wins.
func (m *Manager) Claim(ctx context.Context, sellerID, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(sellerID) == "" {
		return false, nil
	}
	return m.store.DelIfEquals(ctx, m.keyer.SellerSessionKey(sessionID), sellerID)
}

// HasSession reports whether the session id is still registered.
func (m *Manager) HasSession(ctx context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, fmt.Errorf("session id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.SellerSessionKey(sessionID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Owner returns the seller id a live session belongs to.
func (m *Manager) Owner(ctx context.Context, sessionID string) (string, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", false, fmt.Errorf("session id is required")
	}
	sellerID, err := m.store.Get(ctx, m.keyer.SellerSessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return sellerID, true, nil
}
