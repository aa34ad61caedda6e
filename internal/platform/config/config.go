package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProviderConfig points at the identity provider's administrative API.
type ProviderConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Audience     string
}

// RedisConfig configures the optional institution lookup cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the fail-open audit publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// EngineConfig carries engine-level tunables. MajorInstitutionAlias gates
// whether the major field is resolved at all; institutions whose name
// contains the alias (case-insensitive) surface a major on the profile.
type EngineConfig struct {
	MajorInstitutionAlias string
	MinimalTimeout        time.Duration
	FullTimeout           time.Duration
}

// Config is the process-wide configuration assembled from the environment.
type Config struct {
	Addr          string
	LogLevel      string
	SessionSecret string
	PostgresDSN   string
	Provider      ProviderConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Engine        EngineConfig
}

// FromEnv builds the Config from MEMBERHUB_* environment variables so main
// stays lean. A .env file in the working directory is loaded first when
// present; real environment variables win over file entries.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Addr:          envOr("MEMBERHUB_ADDR", ":8080"),
		LogLevel:      envOr("MEMBERHUB_LOG_LEVEL", "info"),
		SessionSecret: envOr("MEMBERHUB_SESSION_SECRET", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("MEMBERHUB_POSTGRES_DSN"),
		Provider: ProviderConfig{
			BaseURL:      os.Getenv("MEMBERHUB_PROVIDER_BASE_URL"),
			ClientID:     os.Getenv("MEMBERHUB_PROVIDER_CLIENT_ID"),
			ClientSecret: os.Getenv("MEMBERHUB_PROVIDER_CLIENT_SECRET"),
			Audience:     os.Getenv("MEMBERHUB_PROVIDER_AUDIENCE"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("MEMBERHUB_REDIS_URL"),
			PoolSize:     envInt("MEMBERHUB_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("MEMBERHUB_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("MEMBERHUB_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("MEMBERHUB_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("MEMBERHUB_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("MEMBERHUB_KAFKA_BROKERS"),
			Topic:   envOr("MEMBERHUB_KAFKA_AUDIT_TOPIC", "memberhub.engine.audit"),
		},
		Engine: EngineConfig{
			MajorInstitutionAlias: envOr("MEMBERHUB_MAJOR_INSTITUTION_ALIAS", "State University"),
			MinimalTimeout:        envDuration("MEMBERHUB_PROFILE_MINIMAL_TIMEOUT", 3*time.Second),
			FullTimeout:           envDuration("MEMBERHUB_PROFILE_FULL_TIMEOUT", 9*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
