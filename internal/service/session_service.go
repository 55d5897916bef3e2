package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
)

// ErrSessionNotFound indicates the user has no open session.
var ErrSessionNotFound = errors.New("session not found")

// SessionService builds and keeps the per-user application state.
type SessionService interface {
	Open(ctx context.Context, userID, username string) (dto.SessionState, error)
	Get(ctx context.Context, userID string) (dto.SessionState, error)
	Refresh(ctx context.Context, userID string) (dto.SessionState, error)
	Close(ctx context.Context, userID string) error
}

// SessionStore persists session states with an expiry.
type SessionStore interface {
	Save(ctx context.Context, state dto.SessionState, ttl time.Duration) error
	Load(ctx context.Context, userID string) (dto.SessionState, error)
	Delete(ctx context.Context, userID string) error
}

type sessionService struct {
	store    SessionStore
	profiles ProfileService
	catalog  CatalogService
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSessionService constructs the session service over the given store.
func NewSessionService(store SessionStore, profiles ProfileService, catalog CatalogService, ttl time.Duration, logger zerolog.Logger) SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionService{
		store:    store,
		profiles: profiles,
		catalog:  catalog,
		ttl:      ttl,
		logger:   logger.With().Str("component", "session_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) Open(ctx context.Context, userID, username string) (dto.SessionState, error) {
	state, err := s.build(ctx, userID, username)
	if err != nil {
		return dto.SessionState{}, err
	}
	if err := s.store.Save(ctx, state, s.ttl); err != nil {
		return dto.SessionState{}, fmt.Errorf("store session: %w", err)
	}
	s.logger.Debug().Str("user_id", userID).Bool("fallback", state.Fallback).Msg("session opened")
	return state, nil
}

func (s *sessionService) Get(ctx context.Context, userID string) (dto.SessionState, error) {
	return s.store.Load(ctx, userID)
}

// Refresh rebuilds profile and themes while keeping the original open time.
func (s *sessionService) Refresh(ctx context.Context, userID string) (dto.SessionState, error) {
	current, err := s.store.Load(ctx, userID)
	if err != nil {
		return dto.SessionState{}, err
	}
	state, err := s.build(ctx, userID, "")
	if err != nil {
		return dto.SessionState{}, err
	}
	state.OpenedAt = current.OpenedAt
	if err := s.store.Save(ctx, state, s.ttl); err != nil {
		return dto.SessionState{}, fmt.Errorf("store session: %w", err)
	}
	return state, nil
}

func (s *sessionService) Close(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

func (s *sessionService) build(ctx context.Context, userID, username string) (dto.SessionState, error) {
	profile, err := s.profiles.EnsureProfile(ctx, userID, username)
	if err != nil {
		return dto.SessionState{}, err
	}
	catalog, err := s.catalog.Themes(ctx, userID)
	if err != nil {
		return dto.SessionState{}, err
	}

	return dto.SessionState{
		UserID:   userID,
		Profile:  profile,
		Themes:   dto.NewThemeResponseSlice(catalog.Themes),
		Fallback: catalog.Fallback,
		Warning:  catalog.Warning,
		OpenedAt: s.now(),
	}, nil
}

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore keeps sessions in Redis under session:<user id>.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (r *redisSessionStore) Save(ctx context.Context, state dto.SessionState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(state.UserID), payload, ttl).Err()
}

func (r *redisSessionStore) Load(ctx context.Context, userID string) (dto.SessionState, error) {
	payload, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return dto.SessionState{}, ErrSessionNotFound
		}
		return dto.SessionState{}, err
	}
	var state dto.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return dto.SessionState{}, fmt.Errorf("decode session: %w", err)
	}
	return state, nil
}

func (r *redisSessionStore) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, sessionKey(userID)).Err()
}

func sessionKey(userID string) string {
	return "session:" + userID
}

type memorySessionEntry struct {
	state     dto.SessionState
	expiresAt time.Time
}

type memorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memorySessionEntry
	now     func() time.Time
}

// NewMemorySessionStore keeps sessions in process memory; used when Redis is not configured.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		entries: make(map[string]memorySessionEntry),
		now:     time.Now,
	}
}

func (m *memorySessionStore) Save(_ context.Context, state dto.SessionState, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[state.UserID] = memorySessionEntry{state: state, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *memorySessionStore) Load(_ context.Context, userID string) (dto.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[userID]
	if !ok {
		return dto.SessionState{}, ErrSessionNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, userID)
		return dto.SessionState{}, ErrSessionNotFound
	}
	return entry.state, nil
}

func (m *memorySessionStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}
