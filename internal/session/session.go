// Package session hands out the per-tab conversation token sent with every
// gateway call.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	KeySessionID = "kakapo_session_id"
	suffixLen    = 9
)

// Store is the tab-scoped key/value store holding the token.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Identity reads or lazily creates the session token. Tokens are
// probabilistically unique and never checked for collision.
type Identity struct {
	store Store
	now   func() time.Time
}

func NewIdentity(store Store) (*Identity, error) {
	if store == nil {
		return nil, errors.New("session: store must not be nil")
	}
	return &Identity{store: store, now: time.Now}, nil
}

// GetOrCreate returns the stored token, creating and storing one if absent.
func (i *Identity) GetOrCreate(ctx context.Context) (string, error) {
	id, ok, err := i.store.Get(ctx, KeySessionID)
	if err != nil {
		return "", fmt.Errorf("session: read token: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = fmt.Sprintf("session_%d_%s", i.now().UnixMilli(), randomSuffix())
	if err := i.store.Set(ctx, KeySessionID, id); err != nil {
		return "", fmt.Errorf("session: store token: %w", err)
	}
	return id, nil
}

// Invalidate drops the token so the next call starts a new backend context.
func (i *Identity) Invalidate(ctx context.Context) error {
	if err := i.store.Delete(ctx, KeySessionID); err != nil {
		return fmt.Errorf("session: delete token: %w", err)
	}
	return nil
}

func randomSuffix() string {
	return strings.ReplaceAll(newUUID(), "-", "")[:suffixLen]
}

var newUUID = func() string {
	return uuid.NewString()
}
