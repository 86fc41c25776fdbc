package session

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kakapo-chat/internal/repository"
)

type failingStore struct {
	getErr error
	setErr error
	delErr error
}

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.getErr }
func (f failingStore) Set(context.Context, string, string) error         { return f.setErr }
func (f failingStore) Delete(context.Context, string) error              { return f.delErr }

func TestNewIdentity_NilStore(t *testing.T) {
	_, err := NewIdentity(nil)
	require.Error(t, err)
}

func TestGetOrCreate_FormatAndStability(t *testing.T) {
	ctx := context.Background()
	id, err := NewIdentity(repository.NewMemoryStore())
	require.NoError(t, err)
	id.now = func() time.Time { return time.UnixMilli(1760000000123) }

	first, err := id.GetOrCreate(ctx)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^session_1760000000123_[0-9a-f]{9}$`), first)

	second, err := id.GetOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestInvalidate_CreatesFreshToken(t *testing.T) {
	ctx := context.Background()
	id, err := NewIdentity(repository.NewMemoryStore())
	require.NoError(t, err)

	orig := newUUID
	t.Cleanup(func() { newUUID = orig })
	suffixes := []string{"aaaaaaaa-aaaa", "bbbbbbbb-bbbb"}
	newUUID = func() string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}

	first, err := id.GetOrCreate(ctx)
	require.NoError(t, err)
	require.NoError(t, id.Invalidate(ctx))
	second, err := id.GetOrCreate(ctx)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Contains(t, first, "_aaaaaaaaa")
	require.Contains(t, second, "_bbbbbbbbb")
}

func TestGetOrCreate_StoreErrors(t *testing.T) {
	ctx := context.Background()

	id, err := NewIdentity(failingStore{getErr: errors.New("read boom")})
	require.NoError(t, err)
	_, err = id.GetOrCreate(ctx)
	require.ErrorContains(t, err, "read boom")

	id, err = NewIdentity(failingStore{setErr: errors.New("write boom")})
	require.NoError(t, err)
	_, err = id.GetOrCreate(ctx)
	require.ErrorContains(t, err, "write boom")

	id, err = NewIdentity(failingStore{delErr: errors.New("delete boom")})
	require.NoError(t, err)
	require.ErrorContains(t, id.Invalidate(ctx), "delete boom")
}
