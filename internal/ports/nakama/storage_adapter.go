package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ludo/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	collectionUsers       = "ludo_users"
	collectionRooms       = "ludo_rooms"
	collectionMemberships = "ludo_memberships"
	collectionMoves       = "ludo_moves"
	collectionChat        = "ludo_chat"
	collectionBans        = "ludo_bans"

	userProfileKey = "profile"
)

var errRoomRecordMissing = errors.New("room record missing")

// NakamaHistoryAdapter implements ports.HistoryStore on Nakama storage.
// Room-scoped records belong to the system user; user and ban records to the player.
type NakamaHistoryAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaHistoryAdapter creates a new history adapter.
func NewNakamaHistoryAdapter(nk runtime.NakamaModule) *NakamaHistoryAdapter {
	return &NakamaHistoryAdapter{nk: nk}
}

type userObject struct {
	DisplayName string `json:"display_name"`
	Guest       bool   `json:"guest"`
	CreatedAt   string `json:"created_at"`
}

type roomObject struct {
	Code      string `json:"code"`
	GameMode  string `json:"game_mode"`
	Capacity  int    `json:"capacity"`
	IsPrivate bool   `json:"is_private"`
	Status    string `json:"status"`
	Seed      string `json:"seed"`
	HostID    string `json:"host_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type membershipObject struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Color    string `json:"color"`
	Action   string `json:"action"`
	At       string `json:"at"`
}

type moveObject struct {
	RoomID   string   `json:"room_id"`
	PlayerID string   `json:"player_id"`
	TokenID  string   `json:"token_id"`
	Dice     int      `json:"dice"`
	From     int      `json:"from"`
	To       int      `json:"to"`
	Captures []string `json:"captures,omitempty"`
	Sequence uint64   `json:"sequence"`
	Auto     bool     `json:"auto"`
	At       string   `json:"at"`
}

type chatObject struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
	At       string `json:"at"`
}

type banObject struct {
	RoomID string   `json:"room_id"`
	Reason string   `json:"reason"`
	Flags  []string `json:"flags"`
	At     string   `json:"at"`
}

func storedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// write stores one object. version "" overwrites, "*" only creates.
func (a *NakamaHistoryAdapter) write(ctx context.Context, collection, key, userID, version string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, key, err)
	}
	_, err = a.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      collection,
			Key:             key,
			UserID:          userID,
			Value:           string(value),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, key, err)
	}
	return nil
}

func (a *NakamaHistoryAdapter) SaveUser(ctx context.Context, rec ports.UserRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("user id is required")
	}
	return a.write(ctx, collectionUsers, userProfileKey, rec.ID, "", userObject{
		DisplayName: rec.DisplayName,
		Guest:       rec.Guest,
		CreatedAt:   storedAt(rec.CreatedAt),
	})
}

func (a *NakamaHistoryAdapter) SaveRoom(ctx context.Context, rec ports.RoomRecord) error {
	return a.write(ctx, collectionRooms, rec.ID, "", "", roomObject{
		Code:      rec.Code,
		GameMode:  rec.GameMode,
		Capacity:  rec.Capacity,
		IsPrivate: rec.IsPrivate,
		Status:    rec.Status,
		Seed:      rec.Seed,
		HostID:    rec.HostID,
		CreatedAt: storedAt(rec.CreatedAt),
		UpdatedAt: storedAt(rec.CreatedAt),
	})
}

// SaveRoomStatus rewrites the status of a stored room under its current version.
func (a *NakamaHistoryAdapter) SaveRoomStatus(ctx context.Context, roomID, status string, at time.Time) error {
	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: collectionRooms, Key: roomID},
	})
	if err != nil {
		return fmt.Errorf("failed to read room %s: %w", roomID, err)
	}
	if len(objects) == 0 {
		return fmt.Errorf("%w: %s", errRoomRecordMissing, roomID)
	}

	var room roomObject
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &room); err != nil {
		return fmt.Errorf("failed to unmarshal room %s: %w", roomID, err)
	}
	room.Status = status
	room.UpdatedAt = storedAt(at)
	return a.write(ctx, collectionRooms, roomID, "", objects[0].GetVersion(), room)
}

func (a *NakamaHistoryAdapter) SaveMembership(ctx context.Context, rec ports.MembershipRecord) error {
	key := fmt.Sprintf("%s:%s:%d", rec.RoomID, rec.PlayerID, rec.At.UnixNano())
	return a.write(ctx, collectionMemberships, key, "", "*", membershipObject{
		RoomID:   rec.RoomID,
		PlayerID: rec.PlayerID,
		Color:    rec.Color,
		Action:   string(rec.Action),
		At:       storedAt(rec.At),
	})
}

// SaveMove keys moves by room and sequence so a replayed write is rejected.
func (a *NakamaHistoryAdapter) SaveMove(ctx context.Context, rec ports.MoveRecord) error {
	key := fmt.Sprintf("%s:%010d", rec.RoomID, rec.Sequence)
	err := a.write(ctx, collectionMoves, key, "", "*", moveObject{
		RoomID:   rec.RoomID,
		PlayerID: rec.PlayerID,
		TokenID:  rec.TokenID,
		Dice:     rec.Dice,
		From:     rec.From,
		To:       rec.To,
		Captures: rec.Captures,
		Sequence: rec.Sequence,
		Auto:     rec.Auto,
		At:       storedAt(rec.At),
	})
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return nil
	}
	return err
}

func (a *NakamaHistoryAdapter) SaveChat(ctx context.Context, rec ports.ChatRecord) error {
	key := fmt.Sprintf("%s:%d:%s", rec.RoomID, rec.At.UnixNano(), rec.PlayerID)
	return a.write(ctx, collectionChat, key, "", "*", chatObject{
		RoomID:   rec.RoomID,
		PlayerID: rec.PlayerID,
		Message:  rec.Message,
		At:       storedAt(rec.At),
	})
}

func (a *NakamaHistoryAdapter) SaveBan(ctx context.Context, rec ports.BanRecord) error {
	if rec.PlayerID == "" {
		return fmt.Errorf("player id is required")
	}
	return a.write(ctx, collectionBans, rec.RoomID, rec.PlayerID, "", banObject{
		RoomID: rec.RoomID,
		Reason: rec.Reason,
		Flags:  rec.Flags,
		At:     storedAt(rec.At),
	})
}

var _ ports.HistoryStore = (*NakamaHistoryAdapter)(nil)
