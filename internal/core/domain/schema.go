package domain

import "fmt"

// TablePlaylistTracks holds playlist membership rows. It has no Kind because
// its rows are paged out of a playlist rather than fetched by ID.
const TablePlaylistTracks = "playlist_tracks"

// Column is one flattened field of a table.
// Opaque columns hold a JSON-encoded list or object.
type Column struct {
	Name   string
	Opaque bool
}

// Table describes a persistent collection of flat records.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether name is a declared column of t.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func cols(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n}
	}
	return out
}

func opaque(name string) Column {
	return Column{Name: name, Opaque: true}
}

// schema lists tables in write order. Static DDL in the storage adapters
// must declare exactly these columns.
var schema = []Table{
	{
		Name: KindArtist.Table(),
		Columns: append(cols("artist_id", "artist_name", "followers", "popularity"),
			opaque("genres"), Column{Name: "artist_uri"}),
		PrimaryKey: []string{"artist_id"},
	},
	{
		Name:       KindUser.Table(),
		Columns:    cols("user_id", "display_name", "followers", "user_uri"),
		PrimaryKey: []string{"user_id"},
	},
	{
		Name: KindAlbum.Table(),
		Columns: append(cols("album_id", "album_name", "album_type", "artist_id", "artist_name",
			"release_date", "total_tracks", "label"), opaque("genres"), Column{Name: "album_uri"}),
		PrimaryKey: []string{"album_id"},
	},
	{
		Name: KindTrack.Table(),
		Columns: append(cols("track_id", "track_name", "artist_id", "album_id", "duration_ms",
			"explicit", "popularity"), opaque("artists"), Column{Name: "track_uri"}),
		PrimaryKey: []string{"track_id"},
	},
	{
		Name: KindPlaylist.Table(),
		Columns: cols("playlist_id", "playlist_name", "owner_id", "total_tracks",
			"playlist_followers", "public", "playlist_uri"),
		PrimaryKey: []string{"playlist_id"},
	},
	{
		Name:       TablePlaylistTracks,
		Columns:    cols("playlist_id", "track_id", "added_at"),
		PrimaryKey: []string{"playlist_id", "track_id", "added_at"},
	},
}

// Schema returns every table in write order.
func Schema() []Table {
	out := make([]Table, len(schema))
	copy(out, schema)
	return out
}

// LookupTable finds a table by name.
func LookupTable(name string) (Table, error) {
	for _, t := range schema {
		if t.Name == name {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// ValidateBatch checks that records all belong to the named table and share
// one column list drawn from its declared columns. It returns the table and
// that column list.
func ValidateBatch(name string, records []Record) (Table, []string, error) {
	table, err := LookupTable(name)
	if err != nil {
		return Table{}, nil, err
	}
	if len(records) == 0 {
		return table, nil, nil
	}

	first := records[0]
	columns := first.Columns()
	if len(columns) == 0 {
		return Table{}, nil, fmt.Errorf("domain: record for %s has no fields", name)
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !table.HasColumn(c) {
			return Table{}, nil, fmt.Errorf("domain: %s has no column %q", name, c)
		}
		if seen[c] {
			return Table{}, nil, fmt.Errorf("domain: duplicate column %q for %s", c, name)
		}
		seen[c] = true
	}

	for i, r := range records {
		if r.Table() != name {
			return Table{}, nil, fmt.Errorf("domain: record %d belongs to %q, not %q", i, r.Table(), name)
		}
		if !r.SameShape(first) {
			return Table{}, nil, fmt.Errorf("domain: record %d has columns %v, want %v", i, r.Columns(), columns)
		}
	}
	return table, columns, nil
}
