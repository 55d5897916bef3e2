package service

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

// Leaderboard dimensions and their sorted set keys.
const (
	LeaderboardByCoins      = "coins"
	LeaderboardByExperience = "experience"

	leaderboardCoinsKey      = "leaderboard:coins"
	leaderboardExperienceKey = "leaderboard:experience"

	leaderboardWarmBatch = 500
)

// LeaderboardService ranks users by coins or experience.
type LeaderboardService interface {
	ScoreRecorder
	Top(ctx context.Context, by string, limit int) ([]dto.LeaderboardEntry, error)
}

type leaderboardService struct {
	profiles repository.ProfileRepository
	cache    *redis.Client
	logger   zerolog.Logger
}

// NewLeaderboardService constructs the leaderboard. Without Redis rankings come from the database.
func NewLeaderboardService(profiles repository.ProfileRepository, cache *redis.Client, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		profiles: profiles,
		cache:    cache,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Record copies the stored totals of the user into both sorted sets.
func (s *leaderboardService) Record(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load profile for leaderboard")
		}
		return
	}
	s.store(ctx, profile)
}

func (s *leaderboardService) Top(ctx context.Context, by string, limit int) ([]dto.LeaderboardEntry, error) {
	by = normalizeLeaderboard(by)
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	if s.cache != nil {
		entries, err := s.topFromWarmCache(ctx, by, limit)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn().Err(err).Msg("leaderboard cache unavailable, using database")
	}

	profiles, err := s.profiles.Top(ctx, by, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(profiles))
	for i, profile := range profiles {
		entries = append(entries, leaderboardEntry(i+1, profile, by))
	}
	return entries, nil
}

// topFromWarmCache serves from the sorted sets once they hold every stored profile.
// A smaller set, after a restart or for profiles never recorded, is rebuilt from the database first.
func (s *leaderboardService) topFromWarmCache(ctx context.Context, by string, limit int) ([]dto.LeaderboardEntry, error) {
	if err := s.warm(ctx); err != nil {
		return nil, err
	}
	return s.topFromCache(ctx, by, limit)
}

func (s *leaderboardService) warm(ctx context.Context) error {
	total, err := s.profiles.Count(ctx)
	if err != nil {
		return err
	}

	cached := int64(-1)
	for _, key := range []string{leaderboardCoinsKey, leaderboardExperienceKey} {
		size, err := s.cache.ZCard(ctx, key).Result()
		if err != nil {
			return err
		}
		if cached < 0 || size < cached {
			cached = size
		}
	}
	if cached >= total {
		return nil
	}

	s.logger.Info().Int64("cached", cached).Int64("profiles", total).Msg("rebuilding leaderboard cache")
	return s.profiles.EachBatch(ctx, leaderboardWarmBatch, func(batch []models.UserProfile) error {
		_, err := s.cache.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, profile := range batch {
				pipe.ZAdd(ctx, leaderboardCoinsKey, redis.Z{Score: float64(profile.Coins), Member: profile.UserID})
				pipe.ZAdd(ctx, leaderboardExperienceKey, redis.Z{Score: float64(profile.Experience), Member: profile.UserID})
			}
			return nil
		})
		return err
	})
}

func (s *leaderboardService) topFromCache(ctx context.Context, by string, limit int) ([]dto.LeaderboardEntry, error) {
	ranked, err := s.cache.ZRevRangeWithScores(ctx, leaderboardKey(by), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return []dto.LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(ranked))
	for _, member := range ranked {
		if id, ok := member.Member.(string); ok {
			ids = append(ids, id)
		}
	}
	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.UserProfile, len(profiles))
	for _, profile := range profiles {
		byID[profile.UserID] = profile
	}

	entries := make([]dto.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		profile, ok := byID[id]
		if !ok {
			continue
		}
		entries = append(entries, leaderboardEntry(len(entries)+1, profile, by))
	}
	return entries, nil
}

func (s *leaderboardService) store(ctx context.Context, profile models.UserProfile) {
	if s.cache == nil {
		return
	}
	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, leaderboardCoinsKey, redis.Z{Score: float64(profile.Coins), Member: profile.UserID})
		pipe.ZAdd(ctx, leaderboardExperienceKey, redis.Z{Score: float64(profile.Experience), Member: profile.UserID})
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", profile.UserID).Msg("failed to update leaderboard")
	}
}

func leaderboardEntry(rank int, profile models.UserProfile, by string) dto.LeaderboardEntry {
	score := profile.Coins
	if by == LeaderboardByExperience {
		score = profile.Experience
	}
	return dto.LeaderboardEntry{
		Rank:     rank,
		UserID:   profile.UserID,
		Username: profile.DisplayName(),
		Avatar:   profile.Avatar,
		Score:    score,
		Level:    models.LevelFor(profile.Experience),
	}
}

func normalizeLeaderboard(by string) string {
	if strings.EqualFold(strings.TrimSpace(by), LeaderboardByExperience) {
		return LeaderboardByExperience
	}
	return LeaderboardByCoins
}

func leaderboardKey(by string) string {
	if by == LeaderboardByExperience {
		return leaderboardExperienceKey
	}
	return leaderboardCoinsKey
}
