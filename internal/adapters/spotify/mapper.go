package spotify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

// source locates a column's value inside an API document. Path segments are
// object keys or list indexes ("artists.0.id").
type source struct {
	path     string
	optional bool
}

func req(path string) source { return source{path: path} }
func opt(path string) source { return source{path: path, optional: true} }

// sources maps every declared column of a kind's table to its JSON path.
var sources = map[domain.Kind]map[string]source{
	domain.KindArtist: {
		"artist_id":   req("id"),
		"artist_name": req("name"),
		"followers":   opt("followers.total"),
		"popularity":  opt("popularity"),
		"genres":      opt("genres"),
		"artist_uri":  req("uri"),
	},
	domain.KindUser: {
		"user_id":      req("id"),
		"display_name": opt("display_name"),
		"followers":    opt("followers.total"),
		"user_uri":     req("uri"),
	},
	domain.KindAlbum: {
		"album_id":     req("id"),
		"album_name":   req("name"),
		"album_type":   req("album_type"),
		"artist_id":    req("artists.0.id"),
		"artist_name":  req("artists.0.name"),
		"release_date": req("release_date"),
		"total_tracks": req("total_tracks"),
		"label":        opt("label"),
		"genres":       opt("genres"),
		"album_uri":    req("uri"),
	},
	domain.KindTrack: {
		"track_id":    req("id"),
		"track_name":  req("name"),
		"artist_id":   req("artists.0.id"),
		"album_id":    req("album.id"),
		"duration_ms": req("duration_ms"),
		"explicit":    opt("explicit"),
		"popularity":  opt("popularity"),
		"artists":     req("artists"),
		"track_uri":   req("uri"),
	},
	domain.KindPlaylist: {
		"playlist_id":        req("id"),
		"playlist_name":      req("name"),
		"owner_id":           req("owner.id"),
		"total_tracks":       req("tracks.total"),
		"playlist_followers": opt("followers.total"),
		"public":             opt("public"),
		"playlist_uri":       req("uri"),
	},
}

// shapeRecord flattens doc into a record with exactly the columns of kind's
// table. Values of opaque columns are JSON-encoded and tagged opaque.
func shapeRecord(kind domain.Kind, doc map[string]any) (domain.Record, error) {
	table, err := domain.LookupTable(kind.Table())
	if err != nil {
		return domain.Record{}, err
	}
	cols, ok := sources[kind]
	if !ok {
		return domain.Record{}, fmt.Errorf("no field mapping for %s", kind)
	}

	fields := make([]domain.Field, 0, len(table.Columns))
	for _, col := range table.Columns {
		src, ok := cols[col.Name]
		if !ok {
			return domain.Record{}, fmt.Errorf("no source for column %s.%s", table.Name, col.Name)
		}

		raw, found := lookup(doc, src.path)
		if (!found || raw == nil) && !src.optional {
			return domain.Record{}, fmt.Errorf("missing field %q", src.path)
		}

		value, err := columnValue(col, raw)
		if err != nil {
			return domain.Record{}, fmt.Errorf("field %q: %w", src.path, err)
		}
		fields = append(fields, domain.Field{Name: col.Name, Value: value, Opaque: col.Opaque})
	}

	return domain.NewRecord(table.Name, fields...), nil
}

func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// columnValue converts a decoded JSON value for col. Opaque columns hold the
// JSON encoding of whatever the API returned; other columns take scalars only.
func columnValue(col domain.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if col.Opaque {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return flatten(v)
}

// flatten turns a decoded JSON scalar into a column value. Integral numbers
// become int64.
func flatten(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	default:
		return nil, fmt.Errorf("expected a scalar, got %T", v)
	}
}
