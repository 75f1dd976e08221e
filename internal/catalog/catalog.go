// internal/catalog/catalog.go
package catalog

// Category is a selectable music category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Difficulty picks which slice of a source tracklist is sampled.
type Difficulty struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Limit  int    `json:"-"`
	Offset int    `json:"-"`
}

const (
	DefaultCount = 10
	MaxCount     = 50
)

// genreIDs maps standard categories to Deezer genre ids.
var genreIDs = map[string]string{
	"pop":         "132",
	"rock":        "152",
	"hip-hop":     "116",
	"electronic":  "106",
	"r&b":         "165",
	"jazz":        "129",
	"classical":   "98",
	"country":     "85",
	"reggae":      "144",
	"alternative": "85",
}

// playlistIDs maps custom categories to curated, globally available playlists.
var playlistIDs = map[string]string{
	"afrobeat":       "1440614715",
	"french-rap":     "13154564983",
	"uk-rap":         "10601632322",
	"k-pop":          "4096400722",
	"brazilian-funk": "1111142361",
}

var categories = []Category{
	{ID: "pop", Name: "Pop"},
	{ID: "rock", Name: "Rock"},
	{ID: "hip-hop", Name: "Hip-Hop"},
	{ID: "electronic", Name: "Electronic"},
	{ID: "r&b", Name: "R&B"},
	{ID: "jazz", Name: "Jazz"},
	{ID: "classical", Name: "Classical"},
	{ID: "country", Name: "Country"},
	{ID: "reggae", Name: "Reggae"},
	{ID: "alternative", Name: "Alternative"},
	{ID: "afrobeat", Name: "Afrobeat"},
	{ID: "french-rap", Name: "French Rap"},
	{ID: "uk-rap", Name: "UK Rap"},
	{ID: "k-pop", Name: "K-Pop"},
	{ID: "brazilian-funk", Name: "Brazilian Funk"},
}

var difficulties = []Difficulty{
	{ID: "easy", Name: "Easy", Limit: 50, Offset: 0},
	{ID: "medium", Name: "Medium", Limit: 100, Offset: 50},
	{ID: "hard", Name: "Hard", Limit: 150, Offset: 150},
}

// Categories lists the selectable categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Difficulties lists the difficulty levels in display order.
func Difficulties() []Difficulty {
	out := make([]Difficulty, len(difficulties))
	copy(out, difficulties)
	return out
}

// LookupDifficulty returns the difficulty with the given id.
func LookupDifficulty(id string) (Difficulty, bool) {
	for _, d := range difficulties {
		if d.ID == id {
			return d, true
		}
	}
	return Difficulty{}, false
}

// IsKnownCategory reports whether id is one of the listed categories. Unknown
// categories are still served, from the global chart.
func IsKnownCategory(id string) bool {
	_, g := genreIDs[id]
	_, p := playlistIDs[id]
	return g || p
}
