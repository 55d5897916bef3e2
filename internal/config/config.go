package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and its batch tools.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	CORSOrigins string
	LogLevel    string

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	RealtimeBase   string

	JWTSecret string

	CatalogCacheTTL time.Duration
	SessionTTL      time.Duration

	Room RoomConfig

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	AvatarMaxSizeMB        int

	Archive ArchiveConfig
}

// RoomConfig groups the challenge room tunables.
type RoomConfig struct {
	MaxPlayers            int
	StaleAfter            time.Duration
	PresenceTTL           time.Duration
	PresenceSweepInterval time.Duration
	RejectResetDelay      time.Duration
	CompleteResetDelay    time.Duration
	CleanupInterval       time.Duration
}

// ArchiveConfig describes the S3 compatible bucket used for room transcripts.
type ArchiveConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Enabled reports whether transcript archival is configured.
func (a ArchiveConfig) Enabled() bool {
	return strings.TrimSpace(a.Bucket) != ""
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ValidateAPI checks the settings only the HTTP server needs.
func (c Config) ValidateAPI() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	return nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QUEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "QuestKids API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.cors_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("realtime.channel", "questkids")
	v.SetDefault("catalog.cache_ttl", "5m")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("room.max_players", 4)
	v.SetDefault("room.stale_after", "24h")
	v.SetDefault("room.presence_ttl", "2m")
	v.SetDefault("room.presence_sweep_interval", "30s")
	v.SetDefault("room.reject_reset_delay", "3s")
	v.SetDefault("room.complete_reset_delay", "5s")
	v.SetDefault("room.cleanup_interval", "0s")
	v.SetDefault("cloudinary.folder", "questkids/avatars")
	v.SetDefault("avatar.max_size_mb", 2)
	v.SetDefault("archive.region", "auto")
	v.SetDefault("archive.prefix", "rooms")

	return v
}

// FromViper materialises a Config from an already prepared viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	durations := map[string]time.Duration{}
	for _, key := range []string{
		"catalog.cache_ttl",
		"session.ttl",
		"room.stale_after",
		"room.presence_ttl",
		"room.presence_sweep_interval",
		"room.reject_reset_delay",
		"room.complete_reset_delay",
		"room.cleanup_interval",
	} {
		parsed, err := parseDuration(v, key)
		if err != nil {
			return Config{}, err
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSOrigins:            v.GetString("app.cors_origins"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeBase:           v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CatalogCacheTTL:        durations["catalog.cache_ttl"],
		SessionTTL:             durations["session.ttl"],
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AvatarMaxSizeMB:        v.GetInt("avatar.max_size_mb"),
		Room: RoomConfig{
			MaxPlayers:            v.GetInt("room.max_players"),
			StaleAfter:            durations["room.stale_after"],
			PresenceTTL:           durations["room.presence_ttl"],
			PresenceSweepInterval: durations["room.presence_sweep_interval"],
			RejectResetDelay:      durations["room.reject_reset_delay"],
			CompleteResetDelay:    durations["room.complete_reset_delay"],
			CleanupInterval:       durations["room.cleanup_interval"],
		},
		Archive: ArchiveConfig{
			Bucket:    v.GetString("archive.bucket"),
			Endpoint:  v.GetString("archive.endpoint"),
			Region:    v.GetString("archive.region"),
			AccessKey: v.GetString("archive.access_key"),
			SecretKey: v.GetString("archive.secret_key"),
			Prefix:    v.GetString("archive.prefix"),
		},
	}

	if cfg.Room.MaxPlayers < 2 {
		cfg.Room.MaxPlayers = 4
	}
	if cfg.Room.StaleAfter <= 0 {
		cfg.Room.StaleAfter = 24 * time.Hour
	}
	if cfg.AvatarMaxSizeMB <= 0 {
		cfg.AvatarMaxSizeMB = 2
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
