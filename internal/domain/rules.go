package domain

import (
	"fmt"
	"sort"
)

// EnterRoll is the only dice value that brings a token out of the yard.
const EnterRoll = 6

// MoveKind describes what a move does to the moving token.
type MoveKind string

const (
	MoveEnter   MoveKind = "enter"
	MoveAdvance MoveKind = "advance"
	MoveFinish  MoveKind = "finish"
)

// Capture is an opposing token sent home by a move.
type Capture struct {
	TokenID string
	Owner   string
	Color   Color
}

// Move is one legal option for the current roll.
type Move struct {
	TokenID  string
	Kind     MoveKind
	From     int
	To       int
	Dest     Coord
	Captures []Capture
}

// TokenID builds the id of a color's n-th token.
func TokenID(c Color, n int) string {
	return fmt.Sprintf("%s-%d", c, n)
}

// NewTokens returns the four yard tokens of a player.
func NewTokens(owner string, c Color) []*Token {
	tokens := make([]*Token, TokensPerPlayer)
	for i := range tokens {
		tokens[i] = &Token{
			ID:        TokenID(c, i),
			Slot:      i,
			Owner:     owner,
			Color:     c,
			Status:    TokenHome,
			PathIndex: HomeIndex,
			Pos:       HomeCoord(c, i),
		}
	}
	return tokens
}

// SendHome returns a captured token to its yard slot.
func (t *Token) SendHome() {
	t.Status = TokenHome
	t.PathIndex = HomeIndex
	t.Pos = HomeCoord(t.Color, t.Slot)
}

// MoveTo places a token on its path; the final index finishes it.
func (t *Token) MoveTo(index int) {
	t.PathIndex = index
	t.Pos, _ = PathCoord(t.Color, index)
	if index == FinishIndex {
		t.Status = TokenFinished
	} else {
		t.Status = TokenPlaying
	}
}

// AllHome reports whether none of the tokens has left the yard.
func AllHome(tokens []*Token) bool {
	for _, t := range tokens {
		if t.Status != TokenHome {
			return false
		}
	}
	return true
}

// AllFinished reports whether every token reached the centre.
func AllFinished(tokens []*Token) bool {
	for _, t := range tokens {
		if t.Status != TokenFinished {
			return false
		}
	}
	return len(tokens) > 0
}

// FindToken looks a token up by id among a player's tokens.
func FindToken(tokens []*Token, id string) *Token {
	for _, t := range tokens {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AvailableMoves computes every legal move for playerID's tokens with the given roll.
// all holds every player's tokens and is used to resolve captures.
func AvailableMoves(all map[string][]*Token, playerID string, dice int) []Move {
	var moves []Move
	for _, t := range all[playerID] {
		var m Move
		switch t.Status {
		case TokenHome:
			if dice != EnterRoll {
				continue
			}
			m = Move{TokenID: t.ID, Kind: MoveEnter, From: HomeIndex, To: 0}
		case TokenPlaying:
			to := t.PathIndex + dice
			if to > FinishIndex {
				continue
			}
			m = Move{TokenID: t.ID, Kind: MoveAdvance, From: t.PathIndex, To: to}
			if to == FinishIndex {
				m.Kind = MoveFinish
			}
		default:
			continue
		}
		m.Dest, _ = PathCoord(t.Color, m.To)
		m.Captures = capturesAt(all, playerID, t.Color, m.Dest)
		moves = append(moves, m)
	}
	return moves
}

func capturesAt(all map[string][]*Token, playerID string, c Color, dest Coord) []Capture {
	if IsSafe(dest) || dest == FinishCoord {
		return nil
	}
	var out []Capture
	for owner, tokens := range all {
		if owner == playerID {
			continue
		}
		for _, t := range tokens {
			if t.Status == TokenPlaying && t.Color != c && t.Pos == dest {
				out = append(out, Capture{TokenID: t.ID, Owner: owner, Color: t.Color})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// ApplyMove moves the token and sends every captured token home.
// The move must come from AvailableMoves for the current state.
func ApplyMove(all map[string][]*Token, playerID string, m Move) (*Token, error) {
	t := FindToken(all[playerID], m.TokenID)
	if t == nil {
		return nil, fmt.Errorf("token %s not owned by %s", m.TokenID, playerID)
	}
	t.MoveTo(m.To)
	for _, c := range m.Captures {
		if victim := FindToken(all[c.Owner], c.TokenID); victim != nil {
			victim.SendHome()
		}
	}
	return t, nil
}
