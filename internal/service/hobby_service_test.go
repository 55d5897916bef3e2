package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/questkids-api/internal/content"
	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/repository"
)

func TestHobbyServiceFiltersByAgeBracket(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewHobbyRepository(db)
	_, err := repo.UpsertBatch(context.Background(), content.Generate(rand.New(rand.NewSource(3)), content.Options{}))
	require.NoError(t, err)

	svc := NewHobbyService(repo, validator.New(), zerolog.Nop())

	all, err := svc.List(context.Background(), dto.HobbyListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 36)

	older, err := svc.List(context.Background(), dto.HobbyListQuery{AgeBracket: " 10-12 "})
	require.NoError(t, err)
	require.Len(t, older, 12)
	for _, hobby := range older {
		require.Equal(t, "10-12", hobby.AgeBracket)
		require.NotEmpty(t, hobby.Levels)
	}

	_, err = svc.List(context.Background(), dto.HobbyListQuery{AgeBracket: "13-15"})
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}
