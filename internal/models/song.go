package models

// Artist is the artist block of a catalog track.
type Artist struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Album is the album block of a catalog track.
type Album struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Cover string `json:"cover,omitempty"`
}

// Song is a track descriptor as returned by the catalog and sent with startGame.
type Song struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Artist   Artist `json:"artist"`
	Album    Album  `json:"album"`
	Preview  string `json:"preview"`
	Duration int    `json:"duration,omitempty"`
}
