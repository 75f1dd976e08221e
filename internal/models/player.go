package models

// Player is one participant of a room. ID is the connection id handed out by the
// gateway; it is only valid for the lifetime of that connection.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Score    int    `json:"score"`
}

// ClonePlayers returns a value copy of ps, safe to hand out of a room lock.
func ClonePlayers(ps []*Player) []Player {
	out := make([]Player, 0, len(ps))
	for _, p := range ps {
		out = append(out, *p)
	}
	return out
}
