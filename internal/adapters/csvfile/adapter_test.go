package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

func track(id string, explicit bool) domain.Record {
	return domain.NewRecord("tracks",
		domain.Field{Name: "track_id", Value: id},
		domain.Field{Name: "track_name", Value: "Song, " + id},
		domain.Field{Name: "duration_ms", Value: int64(180000)},
		domain.Field{Name: "explicit", Value: explicit},
		domain.Field{Name: "popularity", Value: nil},
		domain.Field{Name: "artists", Value: `[{"id":"ar1"}]`, Opaque: true},
	)
}

func newReadyAdapter(t *testing.T) (*Adapter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "exports")
	a := NewAdapter(dir)
	if err := a.CreateSchema(context.Background()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return a, dir
}

func TestAdapter_WriteBatch(t *testing.T) {
	a, dir := newReadyAdapter(t)
	ctx := context.Background()

	inserted, err := a.WriteBatch(ctx, "tracks", []domain.Record{track("t1", true), track("t2", false), track("t1", true)})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted: got %d, want 2", inserted)
	}

	inserted, err = a.WriteBatch(ctx, "tracks", []domain.Record{track("t2", false), track("t3", false)})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("second inserted: got %d, want 1", inserted)
	}

	got, err := os.ReadFile(filepath.Join(dir, "tracks.csv"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	want := "track_id,track_name,duration_ms,explicit,popularity,artists\n" +
		"t1,\"Song, t1\",180000,true,,\"[{\"\"id\"\":\"\"ar1\"\"}]\"\n" +
		"t2,\"Song, t2\",180000,false,,\"[{\"\"id\"\":\"\"ar1\"\"}]\"\n" +
		"t3,\"Song, t3\",180000,false,,\"[{\"\"id\"\":\"\"ar1\"\"}]\"\n"
	if string(got) != want {
		t.Fatalf("file:\n%s\nwant:\n%s", got, want)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestAdapter_WriteBatchCompositeKey(t *testing.T) {
	a, dir := newReadyAdapter(t)
	ctx := context.Background()

	entry := func(playlist, track string) domain.Record {
		return domain.NewRecord(domain.TablePlaylistTracks,
			domain.Field{Name: "playlist_id", Value: playlist},
			domain.Field{Name: "track_id", Value: track},
			domain.Field{Name: "added_at", Value: "x"},
		)
	}

	inserted, err := a.WriteBatch(ctx, domain.TablePlaylistTracks, []domain.Record{entry("a b", "c"), entry("a", "b c")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted: got %d, want 2", inserted)
	}

	inserted, err = a.WriteBatch(ctx, domain.TablePlaylistTracks, []domain.Record{entry("a", "b c"), entry("a b", "c")})
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("rewrite inserted: got %d, want 0", inserted)
	}

	got, err := os.ReadFile(filepath.Join(dir, domain.TablePlaylistTracks+".csv"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	want := "playlist_id,track_id,added_at\n" +
		"a b,c,x\n" +
		"a,b c,x\n"
	if string(got) != want {
		t.Fatalf("file:\n%s\nwant:\n%s", got, want)
	}
}

func TestAdapter_WriteBatchErrors(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		records []domain.Record
	}{
		{
			name:    "unknown table",
			table:   "episodes",
			records: []domain.Record{track("t1", false)},
		},
		{
			name:  "missing primary key column",
			table: "tracks",
			records: []domain.Record{
				domain.NewRecord("tracks", domain.Field{Name: "track_name", Value: "x"}),
			},
		},
		{
			name:  "header mismatch with existing file",
			table: "tracks",
			records: []domain.Record{
				domain.NewRecord("tracks", domain.Field{Name: "track_id", Value: "t9"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newReadyAdapter(t)
			ctx := context.Background()
			if _, err := a.WriteBatch(ctx, "tracks", []domain.Record{track("t1", false)}); err != nil {
				t.Fatalf("seed: %v", err)
			}

			_, err := a.WriteBatch(ctx, tt.table, tt.records)
			var perr *domain.PersistenceError
			if !errors.As(err, &perr) {
				t.Fatalf("expected PersistenceError, got %v", err)
			}
		})
	}
}

func TestAdapter_InspectAndLifecycle(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(t.TempDir())

	if _, err := a.WriteBatch(ctx, "tracks", []domain.Record{track("t1", false)}); !errors.Is(err, domain.ErrSchemaNotReady) {
		t.Fatalf("write before schema: got %v", err)
	}
	if err := a.CreateSchema(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := a.WriteBatch(ctx, "tracks", []domain.Record{track("t1", false), track("t2", false)}); err != nil {
		t.Fatalf("write: %v", err)
	}

	stats, err := a.Inspect(ctx)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, s := range stats {
		switch s.Table {
		case "tracks":
			if s.Rows != 2 || s.Columns != 6 {
				t.Errorf("tracks: got %+v", s)
			}
			if len(s.Details) != 6 {
				t.Fatalf("tracks details: got %+v", s.Details)
			}
			if d := s.Details[1]; d.Name != "track_name" || d.Type != "TEXT" || d.Sample != "Song, t1" {
				t.Errorf("track_name detail: got %+v", d)
			}
			if d := s.Details[4]; d.Name != "popularity" || d.Sample != "" {
				t.Errorf("popularity detail: got %+v", d)
			}
		default:
			if s.Rows != 0 || s.Columns != 0 {
				t.Errorf("%s: expected untouched, got %+v", s.Table, s)
			}
		}
	}

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := a.Inspect(ctx); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("inspect after close: got %v", err)
	}
}
