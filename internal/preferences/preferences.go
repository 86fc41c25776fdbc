// Package preferences persists the user display name and theme choice.
package preferences

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

const (
	KeyUserName = "kakapo_user_name"
	KeyDarkMode = "kakapo_dark_mode"
)

// Store is a long-lived string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Preferences reads and writes the two independent preference keys. Store
// failures are logged and otherwise treated as absence: a broken store must
// not block the conversation.
type Preferences struct {
	store Store
}

func New(store Store) (*Preferences, error) {
	if store == nil {
		return nil, errors.New("preferences: store must not be nil")
	}
	return &Preferences{store: store}, nil
}

// Name returns the stored display name, or "" when none is stored.
func (p *Preferences) Name(ctx context.Context) string {
	v, ok, err := p.store.Get(ctx, KeyUserName)
	if err != nil {
		slog.Warn("failed to read stored name", "err", err)
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (p *Preferences) SetName(ctx context.Context, name string) {
	if err := p.store.Set(ctx, KeyUserName, name); err != nil {
		slog.Warn("failed to persist name", "err", err)
	}
}

func (p *Preferences) ClearName(ctx context.Context) {
	if err := p.store.Delete(ctx, KeyUserName); err != nil {
		slog.Warn("failed to clear stored name", "err", err)
	}
}

// DarkMode reports the stored theme flag. Anything other than "true"
// reads as light mode.
func (p *Preferences) DarkMode(ctx context.Context) bool {
	v, ok, err := p.store.Get(ctx, KeyDarkMode)
	if err != nil {
		slog.Warn("failed to read theme flag", "err", err)
		return false
	}
	return ok && v == "true"
}

func (p *Preferences) SetDarkMode(ctx context.Context, dark bool) {
	if err := p.store.Set(ctx, KeyDarkMode, strconv.FormatBool(dark)); err != nil {
		slog.Warn("failed to persist theme flag", "err", err)
	}
}
