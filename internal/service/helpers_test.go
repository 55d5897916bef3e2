package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/jobs"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.RoomEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event dto.RoomEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []dto.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dto.RoomEvent{}, p.events...)
}

type delayedTask struct {
	name  string
	delay time.Duration
	task  jobs.Task
}

type manualDelayer struct {
	mu    sync.Mutex
	tasks []delayedTask
}

func (d *manualDelayer) After(name string, delay time.Duration, task jobs.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, delayedTask{name: name, delay: delay, task: task})
	return nil
}

// RunAll fires every pending task in registration order.
func (d *manualDelayer) RunAll(ctx context.Context) {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, pending := range tasks {
		pending.task(ctx)
	}
}

func (d *manualDelayer) Pending() []delayedTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delayedTask{}, d.tasks...)
}

type recordingScores struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingScores) Record(_ context.Context, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

type roomFixture struct {
	db        *gorm.DB
	rooms     repository.RoomRepository
	profiles  repository.ProfileRepository
	publisher *recordingPublisher
	delayer   *manualDelayer
	scores    *recordingScores
	service   RoomService
}

func newRoomFixture(t *testing.T) *roomFixture {
	return newRoomFixtureWithUnitOfWork(t, nil)
}

func newRoomFixtureWithUnitOfWork(t *testing.T, wrap func(repository.UnitOfWork) repository.UnitOfWork) *roomFixture {
	t.Helper()
	db := newTestDB(t)
	uow := repository.NewUnitOfWork(db)
	if wrap != nil {
		uow = wrap(uow)
	}

	fixture := &roomFixture{
		db:        db,
		rooms:     repository.NewRoomRepository(db),
		profiles:  repository.NewProfileRepository(db),
		publisher: &recordingPublisher{},
		delayer:   &manualDelayer{},
		scores:    &recordingScores{},
	}
	catalog := NewCatalogService(repository.NewThemeRepository(db), nil, time.Minute, zerolog.Nop())
	fixture.service = NewRoomService(
		uow,
		fixture.rooms,
		fixture.profiles,
		catalog,
		fixture.publisher,
		fixture.scores,
		fixture.delayer,
		validator.New(),
		zerolog.Nop(),
		RoomServiceConfig{MaxPlayers: 2, PresenceTTL: time.Minute},
	)
	return fixture
}

// seedProfile stores a named profile so participants get readable display names.
func (f *roomFixture) seedProfile(t *testing.T, userID, username string) {
	t.Helper()
	profile, err := f.profiles.Ensure(context.Background(), userID)
	require.NoError(t, err)
	profile.Username = username
	require.NoError(t, f.profiles.Save(context.Background(), &profile))
}

func (f *roomFixture) coins(t *testing.T, userID string) int {
	t.Helper()
	profile, err := f.profiles.Get(context.Background(), userID)
	require.NoError(t, err)
	return profile.Coins
}
