package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/questkids-api/internal/repository"
)

func newSessionService(t *testing.T, store SessionStore) SessionService {
	t.Helper()
	profiles, _, _ := newProfileService(t)
	db := newTestDB(t)
	catalog := NewCatalogService(repository.NewThemeRepository(db), nil, time.Minute, zerolog.Nop())
	return NewSessionService(store, profiles, catalog, time.Hour, zerolog.Nop())
}

func TestSessionLifecycleInRedis(t *testing.T) {
	mr, client := newTestRedis(t)
	svc := newSessionService(t, NewRedisSessionStore(client))
	ctx := context.Background()

	_, err := svc.Get(ctx, "kid-1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	state, err := svc.Open(ctx, "kid-1", "Ada")
	require.NoError(t, err)
	require.Equal(t, "Ada", state.Profile.Username)
	require.True(t, state.Fallback)
	require.Equal(t, WarningCatalogNotReady, state.Warning)
	require.NotEmpty(t, state.Themes)
	require.True(t, mr.Exists("session:kid-1"))
	require.Equal(t, time.Hour, mr.TTL("session:kid-1"))

	loaded, err := svc.Get(ctx, "kid-1")
	require.NoError(t, err)
	require.Equal(t, state.UserID, loaded.UserID)
	require.Len(t, loaded.Themes, len(state.Themes))

	refreshed, err := svc.Refresh(ctx, "kid-1")
	require.NoError(t, err)
	require.True(t, refreshed.OpenedAt.Equal(loaded.OpenedAt))

	require.NoError(t, svc.Close(ctx, "kid-1"))
	_, err = svc.Get(ctx, "kid-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Refresh(ctx, "kid-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStoreExpires(t *testing.T) {
	store := NewMemorySessionStore().(*memorySessionStore)
	now := time.Now()
	store.now = func() time.Time { return now }
	svc := newSessionService(t, store)
	ctx := context.Background()

	_, err := svc.Open(ctx, "kid-1", "")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "kid-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.Get(ctx, "kid-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
