package app

import (
	"time"

	"ludo/internal/domain"
)

// EventKind identifies emitted domain events for Nakama dispatch.
type EventKind string

const (
	EventRoomCreated        EventKind = "room_created"
	EventRoomJoined         EventKind = "room_joined"
	EventPlayerJoined       EventKind = "player_joined"
	EventPlayerLeft         EventKind = "player_left"
	EventPlayerReady        EventKind = "player_ready"
	EventGameStarted        EventKind = "game_started"
	EventTurnStarted        EventKind = "turn_started"
	EventDiceRolled         EventKind = "dice_rolled"
	EventExtraTurn          EventKind = "extra_turn"
	EventTokenMoved         EventKind = "token_moved"
	EventTokenCaptured      EventKind = "token_captured"
	EventPlayerWon          EventKind = "player_won"
	EventGameEnded          EventKind = "game_ended"
	EventTurnSkipped        EventKind = "turn_skipped"
	EventTurnTimeout        EventKind = "turn_timeout"
	EventPlayerDisconnected EventKind = "player_disconnected"
	EventPlayerReconnected  EventKind = "player_reconnected"
	EventChatMessage        EventKind = "chat_message"
	EventError              EventKind = "error"
	EventPong               EventKind = "pong"
	// EventBanDecision is not broadcast; it is handed to the ban enforcer.
	EventBanDecision EventKind = "ban_decision"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Room       string
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type RoomCreatedPayload struct {
	Room RoomSnapshot
}

type RoomJoinedPayload struct {
	Room     RoomSnapshot
	PlayerID string
	Color    domain.Color
	// Ticket lets the player prove its seat when reconnecting.
	Ticket string
	Game   *GameSnapshot
}

type PlayerJoinedPayload struct {
	Player PlayerSnapshot
}

type PlayerLeftPayload struct {
	PlayerID  string
	NewHostID string
}

type PlayerReadyPayload struct {
	PlayerID string
	Ready    bool
}

type GameStartedPayload struct {
	Room RoomSnapshot
	Game GameSnapshot
}

type TurnStartedPayload struct {
	PlayerID string
	Timeout  time.Duration
	Deadline time.Time
	Sequence uint64
}

type DiceRolledPayload struct {
	PlayerID  string
	Value     int
	Moves     []domain.Move
	Signature string
	Sequence  uint64
}

type ExtraTurnPayload struct {
	PlayerID string
	Sequence uint64
	Deadline time.Time
}

type TokenMovedPayload struct {
	PlayerID string
	TokenID  string
	Kind     domain.MoveKind
	From     int
	To       int
	Pos      domain.Coord
	Status   domain.TokenStatus
	Dice     int
	Sequence uint64
	Auto     bool
}

type TokenCapturedPayload struct {
	Attacker string
	Victim   string
	TokenID  string
}

type PlayerWonPayload struct {
	PlayerID string
	Rank     int
}

type GameEndedPayload struct {
	Winners []string
	Final   GameSnapshot
}

// SkipReason explains why a turn passed without a move.
type SkipReason string

const (
	SkipNoMoves      SkipReason = "no_moves"
	SkipTimeout      SkipReason = "timeout"
	SkipDisconnected SkipReason = "disconnected"
)

type TurnSkippedPayload struct {
	PlayerID string
	Reason   SkipReason
}

type TurnTimeoutPayload struct {
	PlayerID string
	AutoMove bool
}

type PlayerDisconnectedPayload struct {
	PlayerID string
}

type PlayerReconnectedPayload struct {
	PlayerID string
	Game     GameSnapshot
}

type ChatMessagePayload struct {
	PlayerID string
	Name     string
	Color    domain.Color
	Message  string
	At       time.Time
}

type ErrorPayload struct {
	Code    string
	Message string
}

type PongPayload struct {
	ClientTime int64
	ServerTime time.Time
}

type BanDecisionPayload struct {
	PlayerID string
	Reason   string
	Flags    []Flag
}

// ErrorEvent builds the event reporting err to one player only.
func ErrorEvent(roomID, playerID string, err error) Event {
	return Event{
		Kind:       EventError,
		Room:       roomID,
		Payload:    ErrorPayload{Code: ErrorCode(err), Message: err.Error()},
		Recipients: []string{playerID},
	}
}
