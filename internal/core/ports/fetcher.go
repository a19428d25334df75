package ports

import (
	"context"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

// EntityFetcher retrieves catalog entities and shapes them into flat records.
//
// Errors wrapping *domain.FetchError mean the entity is unavailable and should
// be skipped. Errors wrapping *domain.AuthError are fatal for the run.
type EntityFetcher interface {
	Fetch(ctx context.Context, kind domain.Kind, id string) (domain.Record, error)
	FetchPlaylistTracks(ctx context.Context, playlistID string) ([]domain.Record, error)
}

// IDSource lists the IDs to harvest for a kind. An absent list is empty, not an error.
type IDSource interface {
	IDs(kind domain.Kind) ([]string, error)
}
