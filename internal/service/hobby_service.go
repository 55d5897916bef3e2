package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/repository"
)

// HobbyService lists the generated hobby tracks.
type HobbyService interface {
	List(ctx context.Context, query dto.HobbyListQuery) ([]dto.HobbyResponse, error)
}

type hobbyService struct {
	repo      repository.HobbyRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewHobbyService constructs a hobby service.
func NewHobbyService(repo repository.HobbyRepository, validate *validator.Validate, logger zerolog.Logger) HobbyService {
	return &hobbyService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "hobby_service").Logger(),
	}
}

func (s *hobbyService) List(ctx context.Context, query dto.HobbyListQuery) ([]dto.HobbyResponse, error) {
	query.AgeBracket = strings.TrimSpace(query.AgeBracket)
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	hobbies, err := s.repo.List(ctx, query.AgeBracket)
	if err != nil {
		s.logger.Error().Err(err).Str("age_bracket", query.AgeBracket).Msg("failed to list hobbies")
		return nil, err
	}
	return dto.NewHobbyResponseSlice(hobbies), nil
}
