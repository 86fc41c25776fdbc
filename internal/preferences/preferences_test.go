package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"kakapo-chat/internal/repository"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (brokenStore) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (brokenStore) Delete(context.Context, string) error      { return errors.New("disk on fire") }

func TestNew_NilStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestName_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := New(repository.NewMemoryStore())
	require.NoError(t, err)

	require.Empty(t, p.Name(ctx))
	p.SetName(ctx, "Alex")
	require.Equal(t, "Alex", p.Name(ctx))
	p.ClearName(ctx)
	require.Empty(t, p.Name(ctx))
}

func TestDarkMode_StoredAsString(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	p, err := New(store)
	require.NoError(t, err)

	require.False(t, p.DarkMode(ctx))
	p.SetDarkMode(ctx, true)
	raw, ok, _ := store.Get(ctx, KeyDarkMode)
	require.True(t, ok)
	require.Equal(t, "true", raw)
	require.True(t, p.DarkMode(ctx))

	p.SetDarkMode(ctx, false)
	raw, _, _ = store.Get(ctx, KeyDarkMode)
	require.Equal(t, "false", raw)
	require.False(t, p.DarkMode(ctx))
}

func TestClearName_KeepsTheme(t *testing.T) {
	ctx := context.Background()
	p, err := New(repository.NewMemoryStore())
	require.NoError(t, err)

	p.SetName(ctx, "Alex")
	p.SetDarkMode(ctx, true)
	p.ClearName(ctx)
	require.True(t, p.DarkMode(ctx))
}

func TestBrokenStore_DegradesToDefaults(t *testing.T) {
	ctx := context.Background()
	p, err := New(brokenStore{})
	require.NoError(t, err)

	p.SetName(ctx, "Alex")
	p.SetDarkMode(ctx, true)
	p.ClearName(ctx)
	require.Empty(t, p.Name(ctx))
	require.False(t, p.DarkMode(ctx))
}
