// Package config loads harvester settings from a .env file and the process
// environment.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials means no client ID or secret was configured.
var ErrMissingCredentials = errors.New("config: SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverCSV      = "csv"
)

// Config holds application configuration.
type Config struct {
	ClientID     string
	ClientSecret string

	APIURL       string
	TokenURL     string
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPTimeout  time.Duration
	TokenTimeout time.Duration

	Driver      string
	SQLitePath  string
	DatabaseURL string
	CSVDir      string
	IDDir       string
}

// Load reads configuration from the .env file or system environment variables.
// Variables already set in the environment take precedence over .env.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO config: no .env file found, using system environment variables")
	}
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) *Config {
	get := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}
	positive := func(key string, fallback int) int {
		if raw := getenv(key); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				return parsed
			}
			log.Printf("WARN config: invalid %s=%q, using %d", key, raw, fallback)
		}
		return fallback
	}

	return &Config{
		ClientID:     get("SPOTIFY_CLIENT_ID", getenv("CLIENT_ID")),
		ClientSecret: get("SPOTIFY_CLIENT_SECRET", getenv("CLIENT_SECRET")),

		APIURL:       getenv("SPOTIFY_API_URL"),
		TokenURL:     getenv("SPOTIFY_TOKEN_URL"),
		MaxRetries:   positive("SPOTIFY_MAX_RETRIES", 3),
		RetryBackoff: time.Duration(positive("SPOTIFY_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		HTTPTimeout:  time.Duration(positive("SPOTIFY_HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		TokenTimeout: time.Duration(positive("SPOTIFY_TOKEN_TIMEOUT_SECONDS", 10)) * time.Second,

		Driver:      get("STORAGE_DRIVER", DriverSQLite),
		SQLitePath:  get("SQLITE_PATH", "spotify_db/spotify.db"),
		DatabaseURL: getenv("DATABASE_URL"),
		CSVDir:      get("CSV_DIR", "exports"),
		IDDir:       get("ID_DIR", "."),
	}
}

// RequireCredentials fails when the client credentials are incomplete.
func (c *Config) RequireCredentials() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}
