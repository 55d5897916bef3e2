package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Task is a unit of background work. The context is cancelled when the scheduler shuts down.
type Task func(ctx context.Context)

// Delayer runs a task once after the given delay.
type Delayer interface {
	After(name string, delay time.Duration, task Task) error
}

// Scheduler runs recurring and delayed background work for the API process.
type Scheduler interface {
	Delayer
	Every(name string, interval time.Duration, task Task) error
	Start()
	Shutdown() error
}

type gocronScheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	logger    zerolog.Logger
	once      sync.Once
}

// NewScheduler constructs a scheduler backed by gocron.
func NewScheduler(logger zerolog.Logger) (Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &gocronScheduler{
		scheduler: scheduler,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Every registers a recurring job. Overlapping runs of the same job are skipped.
func (s *gocronScheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.wrap(name, task)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// After registers a one-shot job that fires once the delay elapsed.
func (s *gocronScheduler) After(name string, delay time.Duration, task Task) error {
	if delay < 0 {
		delay = 0
	}

	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(delay))),
		gocron.NewTask(s.wrap(name, task)),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *gocronScheduler) Start() {
	s.scheduler.Start()
}

func (s *gocronScheduler) Shutdown() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.scheduler.Shutdown()
	})
	return err
}

func (s *gocronScheduler) wrap(name string, task Task) func() {
	return func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Error().Str("job", name).Interface("panic", recovered).Msg("job panicked")
			}
		}()

		started := time.Now()
		task(s.ctx)
		s.logger.Debug().Str("job", name).Dur("duration", time.Since(started)).Msg("job finished")
	}
}
