// Package spotify fetches catalog entities from the Spotify Web API and
// shapes them into flat records.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

// DefaultBaseURL is the root of the Web API.
const DefaultBaseURL = "https://api.spotify.com/v1"

const playlistPageSize = 100

// tokenSource is the part of TokenProvider the client depends on.
type tokenSource interface {
	Token(ctx context.Context) (Token, error)
	Invalidate()
}

// Options tune the client. Zero values select defaults.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
}

// Client fetches entities one request at a time.
type Client struct {
	http        *resty.Client
	baseURL     string
	tokens      tokenSource
	maxRetries  int
	baseBackoff time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// compile-time interface assertion
var _ ports.EntityFetcher = (*Client)(nil)

// NewClient constructs a client that authenticates through tokens.
func NewClient(tokens tokenSource, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetDisableWarn(true)

	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokens:      tokens,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		sleep:       sleepWithContext,
	}
}

// Fetch retrieves one entity and shapes it into a record for kind's table.
func (c *Client) Fetch(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Record{}, &domain.FetchError{Kind: kind, ID: id, Err: errors.New("empty id")}
	}

	entityURL := fmt.Sprintf("%s/%s/%s", c.baseURL, kind.Path(), url.PathEscape(id))

	var doc map[string]any
	status, err := c.getJSON(ctx, entityURL, &doc)
	if err != nil {
		return domain.Record{}, fetchFailure(kind, id, status, err)
	}

	rec, err := shapeRecord(kind, doc)
	if err != nil {
		return domain.Record{}, &domain.FetchError{Kind: kind, ID: id, Err: err}
	}
	return rec, nil
}

// playlistTrackPage is one page of the playlist-tracks listing.
type playlistTrackPage struct {
	Items []struct {
		AddedAt string `json:"added_at"`
		Track   *struct {
			ID *string `json:"id"`
		} `json:"track"`
	} `json:"items"`
	Next *string `json:"next"`
}

// FetchPlaylistTracks pages through a playlist's tracks and returns one
// playlist_tracks row per item. Items without a track ID (removed or local
// tracks) are skipped. A failed page fails the whole playlist.
func (c *Client) FetchPlaylistTracks(ctx context.Context, playlistID string) ([]domain.Record, error) {
	playlistID = strings.TrimSpace(playlistID)
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", c.baseURL, url.PathEscape(playlistID), playlistPageSize)
	seen := make(map[string]bool)

	var rows []domain.Record
	for next != "" {
		if seen[next] {
			return nil, &domain.FetchError{Kind: domain.KindPlaylist, ID: playlistID, Err: fmt.Errorf("pagination loop at %s", next)}
		}
		seen[next] = true

		var page playlistTrackPage
		status, err := c.getJSON(ctx, next, &page)
		if err != nil {
			return nil, fetchFailure(domain.KindPlaylist, playlistID, status, err)
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == nil || *item.Track.ID == "" {
				continue
			}
			rows = append(rows, domain.NewRecord(domain.TablePlaylistTracks,
				domain.Field{Name: "playlist_id", Value: playlistID},
				domain.Field{Name: "track_id", Value: *item.Track.ID},
				domain.Field{Name: "added_at", Value: item.AddedAt},
			))
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return rows, nil
}

// getJSON performs an authenticated GET and decodes a 200 body into v.
// A 401 invalidates the token and the request is repeated once with a fresh
// one; a second 401 is returned as a failure.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) (int, error) {
	reauthenticated := false
	for {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, err
		}

		resp, err := c.doRequestWithRetry(ctx, rawURL, tok.AccessToken)
		if err != nil {
			return statusOf(resp), err
		}

		if resp.StatusCode() == http.StatusUnauthorized && !reauthenticated {
			log.Printf("WARN spotify adapter: token rejected for %s, re-authenticating", rawURL)
			c.tokens.Invalidate()
			reauthenticated = true
			continue
		}

		if resp.StatusCode() != http.StatusOK {
			return resp.StatusCode(), fmt.Errorf("spotify adapter: status %d", resp.StatusCode())
		}

		dec := json.NewDecoder(bytes.NewReader(resp.Body()))
		dec.UseNumber()
		if err := dec.Decode(v); err != nil {
			return resp.StatusCode(), fmt.Errorf("spotify adapter: decode error: %w", err)
		}
		return resp.StatusCode(), nil
	}
}

// fetchFailure keeps auth failures fatal and turns everything else into a
// skippable FetchError.
func fetchFailure(kind domain.Kind, id string, status int, err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return &domain.FetchError{Kind: kind, ID: id, Status: status, Err: err}
}

func statusOf(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}
