package config

import (
	"errors"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, c *Config)
		wantErr error
	}{
		{
			name:    "defaults",
			env:     map[string]string{},
			wantErr: ErrMissingCredentials,
			check: func(t *testing.T, c *Config) {
				if c.Driver != DriverSQLite || c.SQLitePath != "spotify_db/spotify.db" {
					t.Errorf("storage: got %s %s", c.Driver, c.SQLitePath)
				}
				if c.MaxRetries != 3 || c.RetryBackoff != 500*time.Millisecond {
					t.Errorf("retry: got %d %s", c.MaxRetries, c.RetryBackoff)
				}
				if c.HTTPTimeout != 15*time.Second || c.TokenTimeout != 10*time.Second {
					t.Errorf("timeouts: got %s %s", c.HTTPTimeout, c.TokenTimeout)
				}
				if c.CSVDir != "exports" || c.IDDir != "." {
					t.Errorf("dirs: got %s %s", c.CSVDir, c.IDDir)
				}
			},
		},
		{
			name: "legacy credential names",
			env:  map[string]string{"CLIENT_ID": "id", "CLIENT_SECRET": "secret"},
			check: func(t *testing.T, c *Config) {
				if c.ClientID != "id" || c.ClientSecret != "secret" {
					t.Errorf("credentials: got %q %q", c.ClientID, c.ClientSecret)
				}
			},
		},
		{
			name: "prefixed names win",
			env: map[string]string{
				"CLIENT_ID": "old", "CLIENT_SECRET": "old",
				"SPOTIFY_CLIENT_ID": "new", "SPOTIFY_CLIENT_SECRET": "new",
			},
			check: func(t *testing.T, c *Config) {
				if c.ClientID != "new" || c.ClientSecret != "new" {
					t.Errorf("credentials: got %q %q", c.ClientID, c.ClientSecret)
				}
			},
		},
		{
			name:    "only half the credentials",
			env:     map[string]string{"SPOTIFY_CLIENT_ID": "id"},
			wantErr: ErrMissingCredentials,
		},
		{
			name: "overrides and invalid numbers",
			env: map[string]string{
				"SPOTIFY_CLIENT_ID": "id", "SPOTIFY_CLIENT_SECRET": "secret",
				"STORAGE_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/spotify",
				"SPOTIFY_MAX_RETRIES": "5", "SPOTIFY_RETRY_BACKOFF_MS": "-1",
				"SPOTIFY_HTTP_TIMEOUT_SECONDS": "abc",
			},
			check: func(t *testing.T, c *Config) {
				if c.Driver != DriverPostgres || c.DatabaseURL != "postgres://localhost/spotify" {
					t.Errorf("storage: got %s %s", c.Driver, c.DatabaseURL)
				}
				if c.MaxRetries != 5 {
					t.Errorf("max retries: got %d", c.MaxRetries)
				}
				if c.RetryBackoff != 500*time.Millisecond || c.HTTPTimeout != 15*time.Second {
					t.Errorf("fallbacks: got %s %s", c.RetryBackoff, c.HTTPTimeout)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := fromEnv(func(key string) string { return tc.env[key] })

			if err := c.RequireCredentials(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("credentials: got %v, want %v", err, tc.wantErr)
			}
			if tc.check != nil {
				tc.check(t, c)
			}
		})
	}
}
