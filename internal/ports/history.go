package ports

import (
	"context"
	"time"
)

// UserRecord is the persisted profile of a player.
type UserRecord struct {
	ID          string
	DisplayName string
	Guest       bool
	CreatedAt   time.Time
}

// RoomRecord is the persisted header of a room.
type RoomRecord struct {
	ID        string
	Code      string
	GameMode  string
	Capacity  int
	IsPrivate bool
	Status    string
	Seed      string
	HostID    string
	CreatedAt time.Time
}

// MembershipAction tells whether a membership record is a join or a leave.
type MembershipAction string

const (
	MembershipJoin  MembershipAction = "join"
	MembershipLeave MembershipAction = "leave"
)

// MembershipRecord logs a player entering or leaving a room.
type MembershipRecord struct {
	RoomID   string
	PlayerID string
	Color    string
	Action   MembershipAction
	At       time.Time
}

// MoveRecord logs one applied token move.
type MoveRecord struct {
	RoomID   string
	PlayerID string
	TokenID  string
	Dice     int
	From     int
	To       int
	Captures []string
	Sequence uint64
	Auto     bool
	At       time.Time
}

// ChatRecord logs one delivered chat line.
type ChatRecord struct {
	RoomID   string
	PlayerID string
	Message  string
	At       time.Time
}

// BanRecord logs a ban decision and the flags behind it.
type BanRecord struct {
	PlayerID string
	RoomID   string
	Reason   string
	Flags    []string
	At       time.Time
}

// HistoryStore persists game history. Writes are best-effort; callers never
// block gameplay on them.
type HistoryStore interface {
	SaveUser(ctx context.Context, rec UserRecord) error
	SaveRoom(ctx context.Context, rec RoomRecord) error
	SaveMembership(ctx context.Context, rec MembershipRecord) error
	// SaveRoomStatus updates the status of a stored room.
	SaveRoomStatus(ctx context.Context, roomID, status string, at time.Time) error
	SaveMove(ctx context.Context, rec MoveRecord) error
	SaveChat(ctx context.Context, rec ChatRecord) error
	SaveBan(ctx context.Context, rec BanRecord) error
}
