package app

import (
	"time"

	"ludo/internal/domain"
)

// PlayerSnapshot is a roster entry without its connection handle.
type PlayerSnapshot struct {
	ID        string
	Name      string
	Color     domain.Color
	Ready     bool
	Connected bool
	IsHost    bool
}

// RoomSnapshot is a sanitised copy of a room, safe to share across goroutines.
type RoomSnapshot struct {
	ID         string
	Code       string
	Capacity   int
	GameMode   string
	IsPrivate  bool
	HasPass    bool
	Status     domain.RoomStatus
	Players    []PlayerSnapshot
	HostID     string
	TurnTime   time.Duration
	EnableChat bool
	Seed       string
	MatchID    string
	CreatedAt  time.Time
}

// TokenSnapshot is a value copy of a token.
type TokenSnapshot struct {
	ID        string
	Owner     string
	Color     domain.Color
	Status    domain.TokenStatus
	PathIndex int
	Pos       domain.Coord
}

// GameSnapshot is a value copy of a session's observable state.
type GameSnapshot struct {
	Phase         domain.Phase
	TurnOrder     []string
	Colors        map[string]domain.Color
	CurrentTurn   int
	CurrentPlayer string
	DiceRolled    bool
	DiceValue     int
	MoveSequence  uint64
	Winners       []string
	Tokens        []TokenSnapshot
	TurnDeadline  time.Time
	Paused        bool
	Connected     map[string]bool
}

func snapshotRoom(r *domain.Room) RoomSnapshot {
	s := RoomSnapshot{
		ID:         r.ID,
		Code:       r.Code,
		Capacity:   r.Capacity,
		GameMode:   r.GameMode,
		IsPrivate:  r.IsPrivate,
		HasPass:    r.PasswordHash != "",
		Status:     r.Status,
		Players:    make([]PlayerSnapshot, 0, len(r.Players)),
		TurnTime:   r.Settings.TurnTime,
		EnableChat: r.Settings.EnableChat,
		Seed:       r.Seed,
		MatchID:    r.MatchID,
		CreatedAt:  r.CreatedAt,
	}
	for _, p := range r.Players {
		s.Players = append(s.Players, snapshotPlayer(p))
		if p.IsHost {
			s.HostID = p.ID
		}
	}
	return s
}

func snapshotPlayer(p *domain.Player) PlayerSnapshot {
	return PlayerSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		Color:     p.Color,
		Ready:     p.Ready,
		Connected: p.Connected,
		IsHost:    p.IsHost,
	}
}

func snapshotGame(g *domain.GameState, connected map[string]bool) GameSnapshot {
	s := GameSnapshot{
		Phase:         g.Phase,
		TurnOrder:     append([]string(nil), g.TurnOrder...),
		Colors:        make(map[string]domain.Color, len(g.Colors)),
		CurrentTurn:   g.CurrentTurn,
		CurrentPlayer: g.CurrentPlayer(),
		DiceRolled:    g.DiceRolled,
		DiceValue:     g.DiceValue,
		MoveSequence:  g.MoveSequence,
		Winners:       append([]string(nil), g.Winners...),
		TurnDeadline:  g.TurnDeadline,
		Paused:        g.Paused,
		Connected:     make(map[string]bool, len(connected)),
	}
	for id, c := range g.Colors {
		s.Colors[id] = c
	}
	for id, c := range connected {
		s.Connected[id] = c
	}
	for _, id := range g.TurnOrder {
		for _, t := range g.Tokens[id] {
			s.Tokens = append(s.Tokens, TokenSnapshot{
				ID:        t.ID,
				Owner:     t.Owner,
				Color:     t.Color,
				Status:    t.Status,
				PathIndex: t.PathIndex,
				Pos:       t.Pos,
			})
		}
	}
	return s
}
