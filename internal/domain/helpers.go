package domain

// LabelPayload produces the values needed for match label advertisement.
type LabelPayload struct {
	Open     bool   `json:"open"`
	Game     string `json:"game"`
	Mode     string `json:"mode"`
	Status   string `json:"status"`
	Code     string `json:"code"`
	RoomID   string `json:"room_id"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
	Private  bool   `json:"private"`
}

// ComputeLabel derives the advertised label from room state.
func ComputeLabel(r *Room) LabelPayload {
	open := r.Status == RoomWaiting && len(r.Players) < r.Capacity
	return LabelPayload{
		Open:     open,
		Game:     "ludo",
		Mode:     r.GameMode,
		Status:   string(r.Status),
		Code:     r.Code,
		RoomID:   r.ID,
		Players:  len(r.Players),
		Capacity: r.Capacity,
		Private:  r.IsPrivate,
	}
}

// CountConnected returns how many roster entries hold a live connection.
func CountConnected(r *Room) int {
	n := 0
	for _, p := range r.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// AllReady reports whether every non-host player has readied up.
func AllReady(r *Room) bool {
	for _, p := range r.Players {
		if !p.IsHost && !p.Ready {
			return false
		}
	}
	return true
}

// RemovePlayer drops id from the roster and returns the removed entry.
func RemovePlayer(r *Room, id string) *Player {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return p
		}
	}
	return nil
}
