package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

// Harvester reads ID lists, fetches each entity and writes one batch per table.
// It works sequentially: one request in flight, one table written at a time.
type Harvester struct {
	ids      ports.IDSource
	fetcher  ports.EntityFetcher
	store    ports.RecordStore
	newRunID func() string
}

// NewHarvester constructs a Harvester.
func NewHarvester(ids ports.IDSource, fetcher ports.EntityFetcher, store ports.RecordStore) *Harvester {
	return &Harvester{
		ids:      ids,
		fetcher:  fetcher,
		store:    store,
		newRunID: uuid.NewString,
	}
}

// Run harvests every kind and persists the results.
//
// Fetch failures drop single entities and persistence failures drop single
// tables; both are reported in the summary. An auth failure, a schema
// failure or a canceled context aborts the run and is returned.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: h.newRunID()}
	log.Printf("INFO harvester: run %s started", summary.RunID)

	if err := h.store.CreateSchema(ctx); err != nil {
		return summary, fmt.Errorf("harvester: create schema: %w", err)
	}

	batches := make(map[string][]domain.Record)
	var owners []domain.Record

	for _, kind := range domain.FetchOrder() {
		stats, err := h.harvestKind(ctx, kind, batches, &owners)
		summary.Kinds = append(summary.Kinds, stats)
		if err != nil {
			return summary, err
		}
	}

	users := domain.KindUser.Table()
	batches[users] = mergeUsers(batches[users], owners)

	for _, table := range domain.Schema() {
		summary.Tables = append(summary.Tables, h.writeTable(ctx, table.Name, batches[table.Name]))
	}

	log.Printf("INFO harvester: run %s finished", summary.RunID)
	return summary, nil
}

func (h *Harvester) harvestKind(ctx context.Context, kind domain.Kind, batches map[string][]domain.Record, owners *[]domain.Record) (KindStats, error) {
	stats := KindStats{Kind: kind}

	ids, err := h.ids.IDs(kind)
	if err != nil {
		log.Printf("ERROR harvester: read %s ids: %v", kind, err)
		return stats, nil
	}
	stats.Requested = len(ids)
	if len(ids) == 0 {
		log.Printf("INFO harvester: no %s ids, skipping", kind)
		return stats, nil
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("harvester: %w", err)
		}

		rec, err := h.fetcher.Fetch(ctx, kind, id)
		if err != nil {
			if fatal(err) {
				return stats, fmt.Errorf("harvester: %w", err)
			}
			log.Printf("WARN harvester: skipping %s %s: %v", kind, id, err)
			stats.Failed++
			continue
		}
		stats.Fetched++
		batches[kind.Table()] = append(batches[kind.Table()], rec)

		if kind != domain.KindPlaylist {
			continue
		}
		if owner, ok := ownerRecord(rec); ok {
			*owners = append(*owners, owner)
		}
		rows, err := h.fetcher.FetchPlaylistTracks(ctx, id)
		if err != nil {
			if fatal(err) {
				return stats, fmt.Errorf("harvester: %w", err)
			}
			log.Printf("WARN harvester: skipping tracks of playlist %s: %v", id, err)
			continue
		}
		batches[domain.TablePlaylistTracks] = append(batches[domain.TablePlaylistTracks], rows...)
	}

	log.Printf("INFO harvester: %s fetched=%d failed=%d", kind, stats.Fetched, stats.Failed)
	return stats, nil
}

func (h *Harvester) writeTable(ctx context.Context, table string, records []domain.Record) TableResult {
	result := TableResult{Table: table, Records: len(records)}
	if len(records) == 0 {
		return result
	}

	written, err := h.store.WriteBatch(ctx, table, records)
	if err != nil {
		log.Printf("ERROR harvester: write %s (%d records): %v", table, len(records), err)
		result.Err = err
		return result
	}
	result.Written = written
	log.Printf("INFO harvester: %s written=%d skipped=%d", table, written, result.Skipped())
	return result
}

// fatal reports whether err must abort the run.
func fatal(err error) bool {
	var authErr *domain.AuthError
	return errors.As(err, &authErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ownerRecord derives a users row from a playlist's owner. Only the ID is
// known, so the profile fields stay NULL.
func ownerRecord(playlist domain.Record) (domain.Record, bool) {
	id := playlist.String("owner_id")
	if id == "" {
		return domain.Record{}, false
	}
	return domain.NewRecord(domain.KindUser.Table(),
		domain.Field{Name: "user_id", Value: id},
		domain.Field{Name: "display_name", Value: nil},
		domain.Field{Name: "followers", Value: nil},
		domain.Field{Name: "user_uri", Value: "spotify:user:" + id},
	), true
}

// mergeUsers appends owners whose ID was not fetched directly. Fetched
// profiles win because they carry the full field set.
func mergeUsers(fetched, owners []domain.Record) []domain.Record {
	known := make(map[string]bool, len(fetched)+len(owners))
	for _, u := range fetched {
		known[u.String("user_id")] = true
	}
	merged := fetched
	for _, o := range owners {
		id := o.String("user_id")
		if known[id] {
			continue
		}
		known[id] = true
		merged = append(merged, o)
	}
	return merged
}
