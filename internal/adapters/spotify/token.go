package spotify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

// DefaultTokenURL is the client-credentials endpoint of the accounts service.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// expiryMargin is subtracted from expires_in so a token is never sent right
// as it lapses.
const expiryMargin = 60 * time.Second

// Token is a bearer token with the instant after which it must not be used.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the token may still be used at now.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.Expiry)
}

// TokenProvider obtains and caches a client-credentials bearer token.
// It owns a single token slot; a refresh replaces it atomically.
type TokenProvider struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time

	mu    sync.Mutex
	token Token
}

// NewTokenProvider creates a provider for the given credentials.
// An empty tokenURL selects DefaultTokenURL.
func NewTokenProvider(clientID, clientSecret, tokenURL string, httpClient *http.Client) *TokenProvider {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenProvider{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Token returns the cached token, exchanging credentials for a new one when
// the cached token is missing or expired.
func (p *TokenProvider) Token(ctx context.Context) (Token, error) {
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		return Token{}, &domain.AuthError{Reason: "client credentials are not configured"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.token.Valid(now) {
		return p.token, nil
	}

	tok, err := p.exchange(ctx, now)
	if err != nil {
		return Token{}, err
	}
	p.token = tok
	log.Printf("INFO spotify adapter: obtained access token valid until %s", tok.Expiry.Format(time.RFC3339))
	return tok, nil
}

// Invalidate drops the cached token so the next Token call re-authenticates.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = Token{}
	p.mu.Unlock()
}

func (p *TokenProvider) exchange(ctx context.Context, now time.Time) (Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	raw, err := p.cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return Token{}, &domain.AuthError{
				Reason: fmt.Sprintf("token endpoint returned status %d", re.Response.StatusCode),
				Err:    err,
			}
		}
		return Token{}, &domain.AuthError{Reason: "token exchange failed", Err: err}
	}

	var lifetime time.Duration
	switch {
	case raw.ExpiresIn > 0:
		lifetime = time.Duration(raw.ExpiresIn) * time.Second
	case !raw.Expiry.IsZero():
		lifetime = time.Until(raw.Expiry)
	default:
		return Token{}, &domain.AuthError{Reason: "token response has no expires_in"}
	}

	if lifetime <= 0 {
		return Token{}, &domain.AuthError{Reason: "token response is already expired"}
	}

	return Token{
		AccessToken: raw.AccessToken,
		Expiry:      now.Add(usableLifetime(lifetime)),
	}, nil
}

// usableLifetime subtracts expiryMargin. A lifetime shorter than twice the
// margin keeps half of what was granted, so the token is never born expired.
func usableLifetime(lifetime time.Duration) time.Duration {
	if lifetime > 2*expiryMargin {
		return lifetime - expiryMargin
	}
	return lifetime / 2
}

// TokenSource adapts the provider for clients built on oauth2.Transport.
func (p *TokenProvider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return providerSource{ctx: ctx, p: p}
}

type providerSource struct {
	ctx context.Context
	p   *TokenProvider
}

func (s providerSource) Token() (*oauth2.Token, error) {
	tok, err := s.p.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   "Bearer",
		Expiry:      tok.Expiry,
	}, nil
}
