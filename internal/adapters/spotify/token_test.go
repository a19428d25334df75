package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

func newTokenServer(t *testing.T, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-id" || secret != "client-secret" {
			t.Errorf("basic auth: got %q/%q (ok=%v)", id, secret, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type: got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestTokenProvider_Token(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		cached        Token
		status        int
		wantExchanges int32
		wantToken     string
		wantExpiry    time.Time
		wantAuthErr   bool
	}{
		{
			name:          "expired token triggers one exchange",
			cached:        Token{AccessToken: "stale", Expiry: now.Add(-time.Second)},
			status:        http.StatusOK,
			wantExchanges: 1,
			wantToken:     "fresh-token",
			wantExpiry:    now.Add(3600*time.Second - 60*time.Second),
		},
		{
			name:          "valid token is reused",
			cached:        Token{AccessToken: "cached", Expiry: now.Add(3600 * time.Second)},
			status:        http.StatusOK,
			wantExchanges: 0,
			wantToken:     "cached",
			wantExpiry:    now.Add(3600 * time.Second),
		},
		{
			name:          "empty slot triggers exchange",
			status:        http.StatusOK,
			wantExchanges: 1,
			wantToken:     "fresh-token",
			wantExpiry:    now.Add(3540 * time.Second),
		},
		{
			name:          "rejected credentials are an auth error",
			status:        http.StatusUnauthorized,
			wantExchanges: 1,
			wantAuthErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := newTokenServer(t, tt.status, &calls)

			p := NewTokenProvider("client-id", "client-secret", ts.URL, ts.Client())
			p.now = func() time.Time { return now }
			p.token = tt.cached

			tok, err := p.Token(context.Background())
			if tt.wantAuthErr {
				var authErr *domain.AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("expected AuthError, got %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tok.AccessToken != tt.wantToken {
					t.Fatalf("token: got %q, want %q", tok.AccessToken, tt.wantToken)
				}
				if d := tok.Expiry.Sub(tt.wantExpiry); d > 5*time.Second || d < -5*time.Second {
					t.Fatalf("expiry: got %s, want %s", tok.Expiry, tt.wantExpiry)
				}
			}
			if got := calls.Load(); got != tt.wantExchanges {
				t.Fatalf("exchanges: got %d, want %d", got, tt.wantExchanges)
			}
		})
	}
}

func TestTokenProvider_Invalidate(t *testing.T) {
	var calls atomic.Int32
	ts := newTokenServer(t, http.StatusOK, &calls)

	p := NewTokenProvider("client-id", "client-secret", ts.URL, ts.Client())
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("first token: %v", err)
	}
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("cached token: %v", err)
	}
	p.Invalidate()
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("refreshed token: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("exchanges: got %d, want 2", got)
	}
}

func TestTokenProvider_MissingCredentials(t *testing.T) {
	var calls atomic.Int32
	ts := newTokenServer(t, http.StatusOK, &calls)

	p := NewTokenProvider("", "", ts.URL, ts.Client())
	_, err := p.Token(context.Background())

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no exchange without credentials")
	}
}

func TestTokenProvider_TokenSource(t *testing.T) {
	var calls atomic.Int32
	ts := newTokenServer(t, http.StatusOK, &calls)

	p := NewTokenProvider("client-id", "client-secret", ts.URL, ts.Client())
	tok, err := p.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("token source: %v", err)
	}
	if tok.AccessToken != "fresh-token" || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected oauth2 token: %+v", tok)
	}
}

func TestUsableLifetime(t *testing.T) {
	tests := []struct {
		lifetime time.Duration
		want     time.Duration
	}{
		{lifetime: time.Hour, want: time.Hour - time.Minute},
		{lifetime: 121 * time.Second, want: 61 * time.Second},
		{lifetime: 60 * time.Second, want: 30 * time.Second},
		{lifetime: 10 * time.Second, want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.lifetime.String(), func(t *testing.T) {
			if got := usableLifetime(tt.lifetime); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTokenProvider_ShortLivedTokenIsUsable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"short","token_type":"Bearer","expires_in":30}`))
	}))
	defer ts.Close()

	now := time.Now()
	p := NewTokenProvider("client-id", "client-secret", ts.URL, ts.Client())
	p.now = func() time.Time { return now }

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tok.Valid(now) {
		t.Fatalf("expected a usable token, expiry %s is not after %s", tok.Expiry, now)
	}
}
