package nakama

import (
	"encoding/json"
	"fmt"
	"time"

	"ludo/internal/app"
	"ludo/internal/domain"
)

// Wire messages are JSON with camelCase keys. Times are unix milliseconds.

type wireCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type wirePlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
}

type wireRoom struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Capacity    int          `json:"maxPlayers"`
	GameMode    string       `json:"gameMode"`
	IsPrivate   bool         `json:"isPrivate"`
	HasPassword bool         `json:"hasPassword"`
	Status      string       `json:"status"`
	Players     []wirePlayer `json:"players"`
	HostID      string       `json:"hostId"`
	TurnSeconds int          `json:"turnTime"`
	EnableChat  bool         `json:"enableChat"`
	Seed        string       `json:"seed"`
	MatchID     string       `json:"matchId"`
	CreatedAt   int64        `json:"createdAt"`
}

type wireToken struct {
	ID        string    `json:"id"`
	Owner     string    `json:"playerId"`
	Color     string    `json:"color"`
	Status    string    `json:"status"`
	PathIndex int       `json:"pathIndex"`
	Position  wireCoord `json:"position"`
}

type wireGame struct {
	Phase         string            `json:"phase"`
	TurnOrder     []string          `json:"turnOrder"`
	Colors        map[string]string `json:"colors"`
	CurrentTurn   int               `json:"currentTurn"`
	CurrentPlayer string            `json:"currentPlayer"`
	DiceRolled    bool              `json:"diceRolled"`
	DiceValue     int               `json:"diceValue"`
	MoveSequence  uint64            `json:"moveSequence"`
	Winners       []string          `json:"winners"`
	Tokens        []wireToken       `json:"tokens"`
	TurnDeadline  int64             `json:"turnDeadline"`
	Paused        bool              `json:"paused"`
	Connected     map[string]bool   `json:"connected"`
}

type wireCapture struct {
	TokenID string `json:"tokenId"`
	Owner   string `json:"playerId"`
	Color   string `json:"color"`
}

type wireMove struct {
	TokenID  string        `json:"tokenId"`
	Kind     string        `json:"type"`
	From     int           `json:"from"`
	To       int           `json:"to"`
	Dest     wireCoord     `json:"destination"`
	Captures []wireCapture `json:"captures,omitempty"`
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func toWireCoord(c domain.Coord) wireCoord {
	return wireCoord{X: c.X, Y: c.Y}
}

func toWirePlayer(p app.PlayerSnapshot) wirePlayer {
	return wirePlayer{
		ID:        p.ID,
		Name:      p.Name,
		Color:     string(p.Color),
		Ready:     p.Ready,
		Connected: p.Connected,
		IsHost:    p.IsHost,
	}
}

func toWireRoom(r app.RoomSnapshot) wireRoom {
	players := make([]wirePlayer, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, toWirePlayer(p))
	}
	return wireRoom{
		ID:          r.ID,
		Code:        r.Code,
		Capacity:    r.Capacity,
		GameMode:    r.GameMode,
		IsPrivate:   r.IsPrivate,
		HasPassword: r.HasPass,
		Status:      string(r.Status),
		Players:     players,
		HostID:      r.HostID,
		TurnSeconds: int(r.TurnTime / time.Second),
		EnableChat:  r.EnableChat,
		Seed:        r.Seed,
		MatchID:     r.MatchID,
		CreatedAt:   millis(r.CreatedAt),
	}
}

func toWireGame(g app.GameSnapshot) wireGame {
	out := wireGame{
		Phase:         string(g.Phase),
		TurnOrder:     g.TurnOrder,
		Colors:        make(map[string]string, len(g.Colors)),
		CurrentTurn:   g.CurrentTurn,
		CurrentPlayer: g.CurrentPlayer,
		DiceRolled:    g.DiceRolled,
		DiceValue:     g.DiceValue,
		MoveSequence:  g.MoveSequence,
		Winners:       g.Winners,
		Tokens:        make([]wireToken, 0, len(g.Tokens)),
		TurnDeadline:  millis(g.TurnDeadline),
		Paused:        g.Paused,
		Connected:     g.Connected,
	}
	if out.Winners == nil {
		out.Winners = []string{}
	}
	for id, c := range g.Colors {
		out.Colors[id] = string(c)
	}
	for _, t := range g.Tokens {
		out.Tokens = append(out.Tokens, wireToken{
			ID:        t.ID,
			Owner:     t.Owner,
			Color:     string(t.Color),
			Status:    string(t.Status),
			PathIndex: t.PathIndex,
			Position:  toWireCoord(t.Pos),
		})
	}
	return out
}

func toWireMoves(moves []domain.Move) []wireMove {
	out := make([]wireMove, 0, len(moves))
	for _, m := range moves {
		wm := wireMove{
			TokenID: m.TokenID,
			Kind:    string(m.Kind),
			From:    m.From,
			To:      m.To,
			Dest:    toWireCoord(m.Dest),
		}
		for _, c := range m.Captures {
			wm.Captures = append(wm.Captures, wireCapture{TokenID: c.TokenID, Owner: c.Owner, Color: string(c.Color)})
		}
		out = append(out, wm)
	}
	return out
}

// wirePayload converts an app payload into its JSON wire shape.
func wirePayload(ev app.Event) (any, error) {
	switch p := ev.Payload.(type) {
	case app.RoomCreatedPayload:
		return map[string]any{"room": toWireRoom(p.Room)}, nil
	case app.RoomJoinedPayload:
		out := map[string]any{
			"room":     toWireRoom(p.Room),
			"playerId": p.PlayerID,
			"color":    string(p.Color),
			"ticket":   p.Ticket,
		}
		if p.Game != nil {
			out["gameState"] = toWireGame(*p.Game)
		}
		return out, nil
	case app.PlayerJoinedPayload:
		return map[string]any{"player": toWirePlayer(p.Player)}, nil
	case app.PlayerLeftPayload:
		return map[string]any{"playerId": p.PlayerID, "newHostId": p.NewHostID}, nil
	case app.PlayerReadyPayload:
		return map[string]any{"playerId": p.PlayerID, "isReady": p.Ready}, nil
	case app.GameStartedPayload:
		return map[string]any{"room": toWireRoom(p.Room), "gameState": toWireGame(p.Game)}, nil
	case app.TurnStartedPayload:
		return map[string]any{
			"playerId":     p.PlayerID,
			"timeout":      p.Timeout.Milliseconds(),
			"deadline":     millis(p.Deadline),
			"moveSequence": p.Sequence,
		}, nil
	case app.DiceRolledPayload:
		return map[string]any{
			"playerId":       p.PlayerID,
			"value":          p.Value,
			"availableMoves": toWireMoves(p.Moves),
			"signature":      p.Signature,
			"moveSequence":   p.Sequence,
		}, nil
	case app.ExtraTurnPayload:
		return map[string]any{"playerId": p.PlayerID, "moveSequence": p.Sequence, "deadline": millis(p.Deadline)}, nil
	case app.TokenMovedPayload:
		return map[string]any{
			"playerId":     p.PlayerID,
			"tokenId":      p.TokenID,
			"type":         string(p.Kind),
			"from":         p.From,
			"to":           p.To,
			"position":     toWireCoord(p.Pos),
			"status":       string(p.Status),
			"dice":         p.Dice,
			"moveSequence": p.Sequence,
			"auto":         p.Auto,
		}, nil
	case app.TokenCapturedPayload:
		return map[string]any{"attacker": p.Attacker, "victim": p.Victim, "tokenId": p.TokenID}, nil
	case app.PlayerWonPayload:
		return map[string]any{"playerId": p.PlayerID, "rank": p.Rank}, nil
	case app.GameEndedPayload:
		return map[string]any{"winners": p.Winners, "finalState": toWireGame(p.Final)}, nil
	case app.TurnSkippedPayload:
		return map[string]any{"playerId": p.PlayerID, "reason": string(p.Reason)}, nil
	case app.TurnTimeoutPayload:
		return map[string]any{"playerId": p.PlayerID, "autoMove": p.AutoMove}, nil
	case app.PlayerDisconnectedPayload:
		return map[string]any{"playerId": p.PlayerID}, nil
	case app.PlayerReconnectedPayload:
		return map[string]any{"playerId": p.PlayerID, "gameState": toWireGame(p.Game)}, nil
	case app.ChatMessagePayload:
		return map[string]any{
			"playerId":  p.PlayerID,
			"name":      p.Name,
			"color":     string(p.Color),
			"message":   p.Message,
			"timestamp": millis(p.At),
		}, nil
	case app.ErrorPayload:
		return map[string]any{"code": p.Code, "message": p.Message}, nil
	case app.PongPayload:
		return map[string]any{"clientTime": p.ClientTime, "serverTime": millis(p.ServerTime)}, nil
	default:
		return nil, fmt.Errorf("no wire form for %s", ev.Kind)
	}
}

// encodeEvent returns the op code and JSON body of a client-facing event.
func encodeEvent(ev app.Event) (int64, []byte, error) {
	opCode, ok := eventOpCodes[ev.Kind]
	if !ok {
		return 0, nil, fmt.Errorf("event %s is not sent to clients", ev.Kind)
	}
	payload, err := wirePayload(ev)
	if err != nil {
		return 0, nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal %s: %w", ev.Kind, err)
	}
	return opCode, data, nil
}

type readyMessage struct {
	IsReady bool `json:"isReady"`
}

type moveMessage struct {
	Move struct {
		TokenID string `json:"tokenId"`
	} `json:"move"`
	Signature string `json:"signature"`
}

type chatMessage struct {
	Message string `json:"message"`
}

type pingMessage struct {
	ClientTime int64 `json:"clientTime"`
}

func unmarshalBody(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", app.ErrUnknownRequest, err)
	}
	return nil
}

// decodeRequest turns match data into a room request.
func decodeRequest(opCode int64, data []byte) (app.Request, error) {
	switch opCode {
	case OpLeaveRoom:
		return app.LeaveRoomRequest{}, nil
	case OpStartGame:
		return app.StartGameRequest{}, nil
	case OpReady:
		var msg readyMessage
		if err := unmarshalBody(data, &msg); err != nil {
			return nil, err
		}
		return app.PlayerReadyRequest{IsReady: msg.IsReady}, nil
	case OpRollDice:
		return app.DiceRollRequest{}, nil
	case OpMoveToken:
		var msg moveMessage
		if err := unmarshalBody(data, &msg); err != nil {
			return nil, err
		}
		return app.MoveTokenRequest{Move: app.MoveRequest{TokenID: msg.Move.TokenID}, Signature: msg.Signature}, nil
	case OpChat:
		var msg chatMessage
		if err := unmarshalBody(data, &msg); err != nil {
			return nil, err
		}
		return app.ChatMessageRequest{Message: msg.Message}, nil
	case OpPing:
		var msg pingMessage
		if err := unmarshalBody(data, &msg); err != nil {
			return nil, err
		}
		return app.PingRequest{ClientTime: msg.ClientTime}, nil
	default:
		return nil, fmt.Errorf("%w: op code %d", app.ErrUnknownRequest, opCode)
	}
}
