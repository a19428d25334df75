package domain

// Kind identifies a catalog entity that can be fetched by ID.
type Kind string

const (
	KindArtist   Kind = "artist"
	KindUser     Kind = "user"
	KindAlbum    Kind = "album"
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
)

// fetchOrder is the order in which kinds are harvested during a run.
var fetchOrder = []Kind{KindArtist, KindUser, KindAlbum, KindTrack, KindPlaylist}

// FetchOrder returns every fetchable kind in harvest order.
func FetchOrder() []Kind {
	out := make([]Kind, len(fetchOrder))
	copy(out, fetchOrder)
	return out
}

// Path is the collection segment of the resource URL, e.g. "albums".
func (k Kind) Path() string {
	return string(k) + "s"
}

// Table is the name of the table holding records of this kind.
func (k Kind) Table() string {
	return string(k) + "s"
}

// IDFile is the conventional name of the input file listing IDs of this kind.
func (k Kind) IDFile() string {
	return string(k) + "_ids.txt"
}
