package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the reminder service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	ChannelBase         string
	JWTSecret           string
	CORSOrigins         string
	RearmCron           string
	DeliveryGuardTTL    time.Duration
	StreamKeepAlive     time.Duration
	TestNotifyRateLimit int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AuthEnabled reports whether bearer tokens are required on the API.
func (c Config) AuthEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TASKMINDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Taskminder API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "sqlite://data/taskminder.db")
	v.SetDefault("channel.base", "taskminder")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("scheduler.rearm_cron", "")
	v.SetDefault("delivery.guard_ttl", "24h")
	v.SetDefault("stream.keepalive", "30s")
	v.SetDefault("notifications.test_rate_limit", 5)

	guardTTL, err := parseDuration(v.GetString("delivery.guard_ttl"), 24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid delivery guard ttl: %w", err)
	}

	keepAlive, err := parseDuration(v.GetString("stream.keepalive"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stream keepalive: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         strings.TrimSpace(v.GetString("database.url")),
		RedisURL:            strings.TrimSpace(v.GetString("redis.url")),
		NATSURL:             strings.TrimSpace(v.GetString("nats.url")),
		ChannelBase:         strings.TrimSpace(v.GetString("channel.base")),
		JWTSecret:           v.GetString("jwt.secret"),
		CORSOrigins:         strings.TrimSpace(v.GetString("cors.origins")),
		RearmCron:           strings.TrimSpace(v.GetString("scheduler.rearm_cron")),
		DeliveryGuardTTL:    guardTTL,
		StreamKeepAlive:     keepAlive,
		TestNotifyRateLimit: v.GetInt("notifications.test_rate_limit"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.TestNotifyRateLimit <= 0 {
		cfg.TestNotifyRateLimit = 5
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
