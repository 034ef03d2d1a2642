// Package config builds process configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database Database
	Redis    Redis
	Kafka    Kafka
	Sources  Sources
	SMTP     SMTP
	Telegram Telegram
	OpenAI   OpenAI
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Database configures the Postgres pool.
type Database struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis configures the shared cache client. An empty URL disables Redis and
// the catalog falls back to its in-process cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the domain event store. Empty brokers disable Kafka and
// events stay in memory.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Sources configures the external book catalogs.
type Sources struct {
	GoogleBooksURL string
	GoogleBooksKey string
	OpenLibraryURL string
	Timeout        time.Duration
	CacheTTL       time.Duration
}

// SMTP configures the email notification channel.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Telegram configures the bot notification channel.
type Telegram struct {
	BotToken string
	APIBase  string
}

// OpenAI configures the assistant LLM client.
type OpenAI struct {
	APIKey string
	Model  string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("LIBRIPAL_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Database: Database{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envIntOr("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envIntOr("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDurationOr("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envOr("KAFKA_EVENTS_TOPIC", "libripal.events"),
		},
		Sources: Sources{
			GoogleBooksURL: envOr("GOOGLE_BOOKS_URL", "https://www.googleapis.com/books/v1"),
			GoogleBooksKey: os.Getenv("GOOGLE_BOOKS_API_KEY"),
			OpenLibraryURL: envOr("OPEN_LIBRARY_URL", "https://openlibrary.org"),
			Timeout:        envDurationOr("SOURCE_TIMEOUT", 10*time.Second),
			CacheTTL:       envDurationOr("CATALOG_CACHE_TTL", 30*time.Minute),
		},
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envIntOr("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("SMTP_FROM", "noreply@libripal.local"),
		},
		Telegram: Telegram{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			APIBase:  envOr("TELEGRAM_API_BASE", "https://api.telegram.org"),
		},
		OpenAI: OpenAI{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  envOr("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
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
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
