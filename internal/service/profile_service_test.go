package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

func newProfileService(t *testing.T) (ProfileService, repository.ProfileRepository, *recordingScores) {
	t.Helper()
	db := newTestDB(t)
	profiles := repository.NewProfileRepository(db)
	catalog := NewCatalogService(repository.NewThemeRepository(db), nil, time.Minute, zerolog.Nop())
	scores := &recordingScores{}
	svc := NewProfileService(
		repository.NewUnitOfWork(db),
		profiles,
		catalog,
		scores,
		NewAvatarUploader(&memoryStorage{}, 1, zerolog.Nop()),
		validator.New(),
		zerolog.Nop(),
	)
	return svc, profiles, scores
}

func TestEnsureProfileSetsUsernameOnce(t *testing.T) {
	svc, _, _ := newProfileService(t)
	ctx := context.Background()

	profile, err := svc.EnsureProfile(ctx, "kid-1", "Ada")
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.Username)
	require.Equal(t, 1, profile.Level)

	profile, err = svc.EnsureProfile(ctx, "kid-1", "Someone Else")
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.Username)

	_, err = svc.Profile(ctx, "ghost")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestCompleteQuestTaskRewardsOnce(t *testing.T) {
	svc, _, scores := newProfileService(t)
	ctx := context.Background()

	result, err := svc.CompleteQuestTask(ctx, "kid-1", dto.CompleteTaskRequest{ThemeID: "math-magic", TaskID: "math-1"})
	require.NoError(t, err)
	require.Equal(t, 20, result.CoinsEarned)
	require.Equal(t, 20, result.Profile.Coins)
	require.Equal(t, 20, result.Profile.Experience)
	require.Equal(t, []string{"math-1"}, result.Profile.CompletedTasks)
	require.False(t, result.LeveledUp)
	require.Equal(t, []string{"kid-1"}, scores.users)

	_, err = svc.CompleteQuestTask(ctx, "kid-1", dto.CompleteTaskRequest{ThemeID: "math-magic", TaskID: "math-1"})
	require.ErrorIs(t, err, ErrTaskAlreadyCompleted)

	profile, err := svc.Profile(ctx, "kid-1")
	require.NoError(t, err)
	require.Equal(t, 20, profile.Coins)

	_, err = svc.CompleteQuestTask(ctx, "kid-1", dto.CompleteTaskRequest{ThemeID: "math-magic", TaskID: "nope"})
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestCompleteQuestTaskReportsLevelUp(t *testing.T) {
	svc, profiles, _ := newProfileService(t)
	ctx := context.Background()

	profile, err := profiles.Ensure(ctx, "kid-1")
	require.NoError(t, err)
	profile.Experience = 95
	require.NoError(t, profiles.Save(ctx, &profile))

	result, err := svc.CompleteQuestTask(ctx, "kid-1", dto.CompleteTaskRequest{ThemeID: "space-explorers", TaskID: "space-1"})
	require.NoError(t, err)
	require.True(t, result.LeveledUp)
	require.Equal(t, 2, result.Profile.Level)
	require.Equal(t, 5, result.Profile.LevelProgress)
}

func TestAddFriendAndUpdateProfile(t *testing.T) {
	svc, _, _ := newProfileService(t)
	ctx := context.Background()

	_, err := svc.EnsureProfile(ctx, "kid-2", "Ben")
	require.NoError(t, err)

	_, err = svc.AddFriend(ctx, "kid-1", dto.AddFriendRequest{FriendID: "kid-1"})
	require.ErrorIs(t, err, ErrSelfFriend)
	_, err = svc.AddFriend(ctx, "kid-1", dto.AddFriendRequest{FriendID: "ghost"})
	require.ErrorIs(t, err, ErrProfileNotFound)

	profile, err := svc.AddFriend(ctx, "kid-1", dto.AddFriendRequest{FriendID: "kid-2"})
	require.NoError(t, err)
	require.Equal(t, []string{"kid-2"}, profile.Friends)
	profile, err = svc.AddFriend(ctx, "kid-1", dto.AddFriendRequest{FriendID: "kid-2"})
	require.NoError(t, err)
	require.Equal(t, []string{"kid-2"}, profile.Friends)

	name := "  Captain Ada "
	profile, err = svc.UpdateProfile(ctx, "kid-1", dto.UpdateProfileRequest{Username: &name})
	require.NoError(t, err)
	require.Equal(t, "Captain Ada", profile.Username)

	tooShort := "A"
	_, err = svc.UpdateProfile(ctx, "kid-1", dto.UpdateProfileRequest{Username: &tooShort})
	require.Error(t, err)
}

func TestUploadAvatarStoresURL(t *testing.T) {
	svc, _, _ := newProfileService(t)

	profile, err := svc.UploadAvatar(context.Background(), "kid-1", dto.AvatarUploadRequest{Data: pngHeader})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/kid-1.png", profile.Avatar)
}

func TestLeaderboardUsesRedisWhenAvailable(t *testing.T) {
	db := newTestDB(t)
	profiles := repository.NewProfileRepository(db)
	ctx := context.Background()
	for _, seed := range []models.UserProfile{
		{UserID: "a", Username: "Ada", Coins: 30, Experience: 10},
		{UserID: "b", Username: "Ben", Coins: 10, Experience: 250},
		{UserID: "c", Username: "Cy", Coins: 20, Experience: 20},
	} {
		profile := seed
		require.NoError(t, profiles.Save(ctx, &profile))
	}

	mr, client := newTestRedis(t)
	board := NewLeaderboardService(profiles, client, zerolog.Nop())

	entries, err := board.Top(ctx, "coins", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].UserID)
	require.Equal(t, 30, entries[0].Score)
	require.Equal(t, "c", entries[1].UserID)
	require.True(t, mr.Exists(leaderboardCoinsKey))

	require.NoError(t, profiles.Grant(ctx, "b", 100, 0))
	board.Record(ctx, "b")

	entries, err = board.Top(ctx, "coins", 1)
	require.NoError(t, err)
	require.Equal(t, "b", entries[0].UserID)
	require.Equal(t, 110, entries[0].Score)

	entries, err = board.Top(ctx, "EXPERIENCE", 1)
	require.NoError(t, err)
	require.Equal(t, "b", entries[0].UserID)
	require.Equal(t, 3, entries[0].Level)
}

func TestLeaderboardFallsBackToDatabase(t *testing.T) {
	db := newTestDB(t)
	profiles := repository.NewProfileRepository(db)
	ctx := context.Background()
	for _, seed := range []models.UserProfile{
		{UserID: "a", Coins: 5},
		{UserID: "b", Coins: 15},
	} {
		profile := seed
		require.NoError(t, profiles.Save(ctx, &profile))
	}

	board := NewLeaderboardService(profiles, nil, zerolog.Nop())
	entries, err := board.Top(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "b", entries[0].UserID)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "b", entries[0].Username)
}

func TestLeaderboardRebuildsPartialCache(t *testing.T) {
	db := newTestDB(t)
	profiles := repository.NewProfileRepository(db)
	ctx := context.Background()
	for _, seed := range []models.UserProfile{
		{UserID: "a", Coins: 30},
		{UserID: "b", Coins: 10},
		{UserID: "c", Coins: 20},
	} {
		profile := seed
		require.NoError(t, profiles.Save(ctx, &profile))
	}

	mr, client := newTestRedis(t)
	board := NewLeaderboardService(profiles, client, zerolog.Nop())

	// a cold cache that only heard about one low scorer
	board.Record(ctx, "b")

	entries, err := board.Top(ctx, "coins", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b"}, leaderboardIDs(entries))
	require.Equal(t, 3, entries[2].Rank)

	members, err := mr.ZMembers(leaderboardExperienceKey)
	require.NoError(t, err)
	require.Len(t, members, 3)

	entries, err = board.Top(ctx, "coins", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, leaderboardIDs(entries))

	entries, err = board.Top(ctx, "coins", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	_, err = profiles.Ensure(ctx, "d")
	require.NoError(t, err)
	entries, err = board.Top(ctx, "coins", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b", "d"}, leaderboardIDs(entries))
}

func leaderboardIDs(entries []dto.LeaderboardEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}
	return ids
}
