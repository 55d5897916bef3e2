// Command seed loads the sample quest themes and generated hobby tracks into the database.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/noah-isme/questkids-api/internal/config"
	"github.com/noah-isme/questkids-api/internal/database"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
	"github.com/noah-isme/questkids-api/internal/service"
)

func main() {
	seed := pflag.Int64("seed", 0, "random seed for hobby generation (0 picks one from the clock)")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "seed").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	themes := repository.NewThemeRepository(db)
	catalog := service.NewCatalogService(themes, nil, cfg.CatalogCacheTTL, logger)
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, cached catalog will expire on its own")
		} else {
			defer redisClient.Close()
			catalog = service.NewCatalogService(themes, redisClient, cfg.CatalogCacheTTL, logger)
		}
	}

	seeder, err := service.NewSeedService(themes, repository.NewHobbyRepository(db), catalog, logger)
	if err != nil {
		log.Fatalf("failed to create seed service: %v", err)
	}

	summary, err := seeder.Seed(ctx, *seed)
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	logger.Info().
		Int64("seed", summary.Seed).
		Int("themes", summary.Themes).
		Int("hobbies", summary.Hobbies).
		Int("tasks", summary.Tasks).
		Msg("seed complete")
}
