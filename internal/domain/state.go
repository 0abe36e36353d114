package domain

import "time"

// Phase represents the lifecycle stage of a game session.
type Phase string

const (
	// PhaseInitializing is the state before tokens are dealt and turn order is fixed.
	PhaseInitializing Phase = "initializing"
	// PhasePlaying is the active state where dice are rolled and tokens moved.
	PhasePlaying Phase = "playing"
	// PhaseFinished is terminal; the ranking is final.
	PhaseFinished Phase = "finished"
)

// RoomStatus represents the lifecycle stage of a room.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// Color identifies a player's side of the board.
type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorBlue   Color = "blue"
)

// Colors lists the colors in assignment order.
var Colors = [4]Color{ColorRed, ColorGreen, ColorYellow, ColorBlue}

// TokenStatus is where a token is in its journey.
type TokenStatus string

const (
	TokenHome     TokenStatus = "home"
	TokenPlaying  TokenStatus = "playing"
	TokenFinished TokenStatus = "finished"
)

// TokensPerPlayer is fixed by the board.
const TokensPerPlayer = 4

// Player holds room-scoped state for a participant.
type Player struct {
	ID        string
	Conn      string // transport connection handle
	Name      string
	Color     Color
	Ready     bool
	Connected bool
	IsHost    bool
	JoinedAt  time.Time
}

// RoomSettings are per-room options chosen at creation.
type RoomSettings struct {
	TurnTime   time.Duration
	EnableChat bool
}

// Room is a bounded group of players sharing one game.
type Room struct {
	ID           string
	Code         string
	Capacity     int
	GameMode     string
	IsPrivate    bool
	PasswordHash string
	Status       RoomStatus
	Players      []*Player
	Settings     RoomSettings
	Seed         string
	MatchID      string
	CreatedAt    time.Time
	// EmptySince is set while no player is connected; zero otherwise.
	EmptySince time.Time
}

// Player returns the roster entry for id, or nil.
func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Host returns the current host, or nil when the room is empty.
func (r *Room) Host() *Player {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// NextColor returns the first color not held by anyone in the room.
func (r *Room) NextColor() (Color, bool) {
	for _, c := range Colors {
		taken := false
		for _, p := range r.Players {
			if p.Color == c {
				taken = true
				break
			}
		}
		if !taken {
			return c, true
		}
	}
	return "", false
}

// Token is one of a player's four pieces.
type Token struct {
	ID        string
	Owner     string
	Color     Color
	Slot      int
	Status    TokenStatus
	PathIndex int
	Pos       Coord
}

// GameState is the authoritative state of one running game.
type GameState struct {
	Phase          Phase
	TurnOrder      []string
	Colors         map[string]Color
	CurrentTurn    int
	DiceRolled     bool
	DiceValue      int
	MovesAvailable []Move
	MoveSequence   uint64
	Winners        []string
	Tokens         map[string][]*Token
	TurnDeadline   time.Time
	Paused         bool
}

// CurrentPlayer returns the id of the player whose turn it is.
func (g *GameState) CurrentPlayer() string {
	if len(g.TurnOrder) == 0 {
		return ""
	}
	return g.TurnOrder[g.CurrentTurn]
}

// HasWon reports whether playerID already finished all tokens.
func (g *GameState) HasWon(playerID string) bool {
	for _, w := range g.Winners {
		if w == playerID {
			return true
		}
	}
	return false
}

// Rank returns the 1-based finishing position of playerID, or 0.
func (g *GameState) Rank(playerID string) int {
	for i, w := range g.Winners {
		if w == playerID {
			return i + 1
		}
	}
	return 0
}

// ResetTurn clears the per-turn dice fields.
func (g *GameState) ResetTurn() {
	g.DiceRolled = false
	g.DiceValue = 0
	g.MovesAvailable = nil
}
