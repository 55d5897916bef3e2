package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/questkids-api/internal/config"
	"github.com/noah-isme/questkids-api/internal/database"
	"github.com/noah-isme/questkids-api/internal/handler"
	"github.com/noah-isme/questkids-api/internal/jobs"
	"github.com/noah-isme/questkids-api/internal/middleware"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/repository"
	"github.com/noah-isme/questkids-api/internal/router"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/pkg/archive"
	cloud "github.com/noah-isme/questkids-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, using in-process cache, sessions and fan-out")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer func() {
			if err := natsConn.Drain(); err != nil {
				logger.Warn().Err(err).Msg("failed to drain nats connection")
			}
		}()
	}

	var avatarStorage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		avatarStorage = uploader
	}

	var archiver service.RoomArchiver
	if cfg.Archive.Enabled() {
		store, err := archive.New(rootCtx, archive.Config(cfg.Archive), logger)
		if err != nil {
			log.Fatalf("failed to create archive client: %v", err)
		}
		archiver = store
	}

	scheduler, err := jobs.NewScheduler(logger)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	uow := repository.NewUnitOfWork(db)
	roomRepo := repository.NewRoomRepository(db)
	themeRepo := repository.NewThemeRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	hobbyRepo := repository.NewHobbyRepository(db)

	hub := service.NewRoomHub(redisClient, cfg.RealtimeBase, natsConn, logger)
	if err := hub.Start(rootCtx); err != nil {
		log.Fatalf("failed to start room hub: %v", err)
	}

	catalog := service.NewCatalogService(themeRepo, redisClient, cfg.CatalogCacheTTL, logger)
	leaderboard := service.NewLeaderboardService(profileRepo, redisClient, logger)
	avatars := service.NewAvatarUploader(avatarStorage, cfg.AvatarMaxSizeMB, logger)
	profiles := service.NewProfileService(uow, profileRepo, catalog, leaderboard, avatars, validate, logger)
	rooms := service.NewRoomService(uow, roomRepo, profileRepo, catalog, hub, leaderboard, scheduler, validate, logger, service.RoomServiceConfig{
		MaxPlayers:         cfg.Room.MaxPlayers,
		PresenceTTL:        cfg.Room.PresenceTTL,
		RejectResetDelay:   cfg.Room.RejectResetDelay,
		CompleteResetDelay: cfg.Room.CompleteResetDelay,
	})
	cleanup := service.NewRoomCleanupService(roomRepo, archiver, hub, cfg.Room.StaleAfter, logger)
	hobbies := service.NewHobbyService(hobbyRepo, validate, logger)
	seeder, err := service.NewSeedService(themeRepo, hobbyRepo, catalog, logger)
	if err != nil {
		log.Fatalf("failed to create seed service: %v", err)
	}

	sessionStore := service.NewMemorySessionStore()
	if redisClient != nil {
		sessionStore = service.NewRedisSessionStore(redisClient)
	}
	sessions := service.NewSessionService(sessionStore, profiles, catalog, cfg.SessionTTL, logger)

	if err := scheduleMaintenance(scheduler, cfg.Room, rooms, cleanup, logger); err != nil {
		log.Fatalf("failed to schedule maintenance: %v", err)
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		ThemeHandler:       handler.NewThemeHandler(catalog, validate, logger),
		HobbyHandler:       handler.NewHobbyHandler(hobbies, logger),
		RoomHandler:        handler.NewRoomHandler(rooms, hub, validate, logger),
		ProfileHandler:     handler.NewProfileHandler(profiles, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboard, validate, logger),
		SessionHandler:     handler.NewSessionHandler(sessions, validate, logger),
		SeedHandler:        handler.NewSeedHandler(seeder, logger),
		RoomCleanupHandler: handler.NewRoomCleanupHandler(cleanup, logger),
		HealthProbes:       healthProbes(db, redisClient),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWT:        middleware.JWTOptional(cfg.JWTSecret),
		MessageRateLimit:   middleware.RateLimit("room-messages", 5, time.Second),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(rootCtx, app, scheduler, logger)
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger()
}

func scheduleMaintenance(scheduler jobs.Scheduler, cfg config.RoomConfig, rooms service.RoomService, cleanup service.RoomCleanupService, logger zerolog.Logger) error {
	if cfg.PresenceSweepInterval > 0 {
		err := scheduler.Every("presence-sweep", cfg.PresenceSweepInterval, func(ctx context.Context) {
			removed, err := rooms.SweepPresence(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn().Err(err).Msg("presence sweep failed")
				return
			}
			if removed > 0 {
				logger.Info().Int("removed", removed).Msg("removed idle participants")
			}
		})
		if err != nil {
			return err
		}
	}

	if cfg.CleanupInterval > 0 {
		return scheduler.Every("room-cleanup", cfg.CleanupInterval, func(ctx context.Context) {
			if _, err := cleanup.CleanupStale(ctx); err != nil {
				logger.Error().Err(err).Msg("scheduled room cleanup failed")
			}
		})
	}
	return nil
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return probes
}

func waitForShutdown(ctx context.Context, app *fiber.App, scheduler jobs.Scheduler, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
