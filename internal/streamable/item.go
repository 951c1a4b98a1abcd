package streamable

// ItemKind is the kind of a browsable media item.
type ItemKind int

const (
	ItemTrack ItemKind = iota
	ItemAlbum
	ItemArtist
	ItemPlaylist
	ItemUser
)

// String returns the item kind name.
func (k ItemKind) String() string {
	switch k {
	case ItemTrack:
		return "track"
	case ItemAlbum:
		return "album"
	case ItemArtist:
		return "artist"
	case ItemPlaylist:
		return "playlist"
	case ItemUser:
		return "user"
	default:
		return "unknown"
	}
}

// Item is a media item an extension can browse: the context a track was
// queued from, or the seed of a radio.
type Item struct {
	Kind   ItemKind          `json:"kind"`
	ID     string            `json:"id"`
	Title  string            `json:"title,omitempty"`
	Extras map[string]string `json:"extras,omitempty"`
	Track  *Track            `json:"track,omitempty"` // set when Kind is ItemTrack
}

// TrackItem wraps a track as an item.
func TrackItem(t Track) Item {
	u := t.Unloaded()
	return Item{Kind: ItemTrack, ID: t.ID, Title: t.Title, Track: &u}
}
