// Command roomgc deletes finished and abandoned challenge rooms.
//
//	roomgc                 delete inactive, empty, completed or stale rooms
//	roomgc --old-only      delete every room older than 24 hours
//	roomgc --old-only=48   delete every room older than 48 hours
//
// The exit code is always 0; failures are logged.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/noah-isme/questkids-api/internal/config"
	"github.com/noah-isme/questkids-api/internal/database"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/pkg/archive"
)

type options struct {
	oldOnly bool
	hours   int
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "roomgc").Logger()

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		logger.Error().Err(err).Msg("invalid arguments")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error().Err(err).Msg("room cleanup failed")
	}
}

// parseArgs accepts --old-only, --old-only=48 and --old-only 48.
func parseArgs(args []string, output io.Writer) (options, error) {
	fs := pflag.NewFlagSet("roomgc", pflag.ContinueOnError)
	fs.SetOutput(output)
	hours := fs.Int("old-only", 0, "delete every room created more than N hours ago (default 24 when no value is given)")
	fs.Lookup("old-only").NoOptDefVal = strconv.Itoa(service.DefaultOldRoomHours)

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{oldOnly: fs.Changed("old-only"), hours: *hours}
	switch {
	case fs.NArg() > 1 || (fs.NArg() == 1 && !opts.oldOnly):
		return options{}, fmt.Errorf("unexpected arguments %q", fs.Args())
	case fs.NArg() == 1:
		parsed, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			return options{}, fmt.Errorf("--old-only needs a number of hours, got %q", fs.Arg(0))
		}
		opts.hours = parsed
	}
	if opts.oldOnly && opts.hours <= 0 {
		return options{}, fmt.Errorf("--old-only needs a positive number of hours, got %d", opts.hours)
	}
	return opts, nil
}

func run(ctx context.Context, opts options, logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var archiver service.RoomArchiver
	if cfg.Archive.Enabled() {
		store, err := archive.New(ctx, archive.Config(cfg.Archive), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("archive unavailable, deleting without transcripts")
		} else {
			archiver = store
		}
	}

	publisher, closeRelay := relayPublisher(ctx, cfg, logger)
	defer closeRelay()

	cleanup := service.NewRoomCleanupService(
		repository.NewRoomRepository(db),
		archiver,
		publisher,
		cfg.Room.StaleAfter,
		logger,
	)

	if opts.oldOnly {
		deleted, err := cleanup.CleanupOlderThan(ctx, opts.hours)
		if err != nil {
			return err
		}
		logger.Info().Int("hours", opts.hours).Int("deleted", deleted).Msg("old rooms deleted")
		return nil
	}

	deleted, err := cleanup.CleanupStale(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int("deleted", deleted).Msg("stale rooms deleted")
	return nil
}

// relayPublisher tells running API nodes about deleted rooms when a relay is configured.
// The returned func flushes and closes the relay connections.
func relayPublisher(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.RoomPublisher, func()) {
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, subscribers will not be notified")
		} else {
			redisClient = client
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, "roomgc")
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, subscribers will not be notified")
		} else {
			natsConn = conn
		}
	}

	closeRelay := func() {
		if natsConn != nil {
			if err := natsConn.Drain(); err != nil {
				logger.Warn().Err(err).Msg("failed to drain nats connection")
			}
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	if redisClient == nil && natsConn == nil {
		return nil, closeRelay
	}
	return service.NewRoomHub(redisClient, cfg.RealtimeBase, natsConn, logger), closeRelay
}
