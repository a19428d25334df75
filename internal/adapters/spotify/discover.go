package spotify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

const (
	// DefaultDiscoverCount is how many IDs per kind a seed run keeps.
	DefaultDiscoverCount = 40

	discoverPageSize = 50
	discoverQuery    = "a"
)

// Discoverer samples catalog IDs from browse and search endpoints so a run
// has something to harvest.
type Discoverer struct {
	api     *spotify.Client
	count   int
	shuffle func(n int, swap func(i, j int))
}

// NewDiscoverer builds a discoverer on an already-authenticated HTTP client.
// An empty baseURL selects the public API.
func NewDiscoverer(httpClient *http.Client, baseURL string, count int) *Discoverer {
	if count <= 0 {
		count = DefaultDiscoverCount
	}
	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &Discoverer{
		api:     spotify.New(httpClient, opts...),
		count:   count,
		shuffle: rand.Shuffle,
	}
}

// Discover returns up to count random IDs per kind. Albums come from new
// releases, artists and tracks from a broad search, playlists from featured
// playlists and users from those playlists' owners. A kind whose endpoint
// fails is logged and left empty; an auth failure aborts.
func (d *Discoverer) Discover(ctx context.Context) (map[domain.Kind][]string, error) {
	found := make(map[domain.Kind][]string)

	releases, err := d.api.NewReleases(ctx, spotify.Limit(discoverPageSize))
	if fatal := d.check("new releases", err); fatal != nil {
		return nil, fatal
	}
	if err == nil && releases != nil {
		for _, a := range releases.Albums {
			found[domain.KindAlbum] = append(found[domain.KindAlbum], a.ID.String())
		}
	}

	result, err := d.api.Search(ctx, discoverQuery, spotify.SearchTypeArtist|spotify.SearchTypeTrack, spotify.Limit(discoverPageSize))
	if fatal := d.check("search", err); fatal != nil {
		return nil, fatal
	}
	if err == nil && result != nil {
		if result.Artists != nil {
			for _, a := range result.Artists.Artists {
				found[domain.KindArtist] = append(found[domain.KindArtist], a.ID.String())
			}
		}
		if result.Tracks != nil {
			for _, t := range result.Tracks.Tracks {
				found[domain.KindTrack] = append(found[domain.KindTrack], t.ID.String())
			}
		}
	}

	_, featured, err := d.api.FeaturedPlaylists(ctx, spotify.Limit(discoverPageSize))
	if fatal := d.check("featured playlists", err); fatal != nil {
		return nil, fatal
	}
	if err == nil && featured != nil {
		for _, p := range featured.Playlists {
			found[domain.KindPlaylist] = append(found[domain.KindPlaylist], p.ID.String())
			if p.Owner.ID != "" {
				found[domain.KindUser] = append(found[domain.KindUser], p.Owner.ID)
			}
		}
	}

	for kind, ids := range found {
		found[kind] = d.sample(ids)
	}
	return found, nil
}

// check logs a failed discovery call and returns it only when it is fatal.
func (d *Discoverer) check(source string, err error) error {
	if err == nil {
		return nil
	}
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return fmt.Errorf("spotify adapter: discover %s: %w", source, err)
	}
	log.Printf("WARN spotify adapter: discover %s failed: %v", source, err)
	return nil
}

// sample de-duplicates ids and keeps a random subset of at most d.count.
func (d *Discoverer) sample(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	d.shuffle(len(unique), func(i, j int) { unique[i], unique[j] = unique[j], unique[i] })
	if len(unique) > d.count {
		unique = unique[:d.count]
	}
	return unique
}
