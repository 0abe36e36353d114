package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"ludo/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RoomSummary is one entry of the public room list.
type RoomSummary struct {
	RoomID     string `json:"roomId"`
	MatchID    string `json:"matchId"`
	Code       string `json:"code"`
	GameMode   string `json:"gameMode"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	HostID     string `json:"hostId"`
	CreatedAt  int64  `json:"createdAt"`
}

// RoomTicket tells a client which match to join and proves its seat.
type RoomTicket struct {
	RoomID  string `json:"roomId"`
	MatchID string `json:"matchId"`
	Code    string `json:"code"`
	Ticket  string `json:"ticket,omitempty"`
	Status  string `json:"status,omitempty"`
}

type createRoomPayload struct {
	GameMode    string `json:"gameMode"`
	MaxPlayers  int    `json:"maxPlayers"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password"`
	EnableChat  *bool  `json:"enableChat"`
	TurnSeconds int    `json:"turnTime"`
}

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type reconnectPayload struct {
	Ticket string `json:"ticket"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func (s *Server) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcCreateRoom:       s.RpcCreateRoom,
		RpcJoinRoom:         s.RpcJoinRoom,
		RpcListRooms:        s.RpcListRooms,
		RpcReconnectAttempt: s.RpcReconnectAttempt,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func callerID(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("authentication required", codeUnauthenticated)
	}
	return userID, nil
}

func decodePayload(payload string, v any) error {
	if payload == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return runtime.NewError("invalid payload", codeInvalidArgument)
	}
	return nil
}

func encodeResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(b), nil
}

// RpcCreateRoom creates a room, reserves the caller's seat as host and starts
// the match serving it.
//
// Payload: createRoomPayload, all fields optional.
// Returns: RoomTicket.
func (s *Server) RpcCreateRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var in createRoomPayload
	if err := decodePayload(payload, &in); err != nil {
		return "", err
	}

	req := app.CreateRoomRequest{
		GameMode:    in.GameMode,
		MaxPlayers:  in.MaxPlayers,
		IsPrivate:   in.IsPrivate,
		Password:    in.Password,
		TurnSeconds: in.TurnSeconds,
	}
	if in.EnableChat != nil {
		req.DisableChat = !*in.EnableChat
	}
	ticket, err := s.openRoom(ctx, logger, nk, userID, req)
	if err != nil {
		return "", err
	}
	logger.Info("RpcCreateRoom [User:%s]: Created room %s (%s) in match %s", userID, ticket.RoomID, ticket.Code, ticket.MatchID)
	return encodeResponse(ticket)
}

// openRoom creates the room, seats the creator and binds a fresh match to it.
func (s *Server) openRoom(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, req app.CreateRoomRequest) (RoomTicket, error) {
	room, _, err := s.rooms.CreateRoom(req)
	if err != nil {
		return RoomTicket{}, rpcError(err)
	}

	username, _ := ctx.Value(runtime.RUNTIME_CTX_USERNAME).(string)
	events, err := s.rooms.JoinRoom(room.ID, userID, app.JoinRoomRequest{Password: req.Password, Name: username})
	if err != nil {
		return RoomTicket{}, rpcError(err)
	}

	out := RoomTicket{RoomID: room.ID, Code: room.Code}
	for _, ev := range events {
		if ev.Room != room.ID {
			// Leaving a previous room.
			s.relay(logger, nk, ev)
			continue
		}
		if p, ok := ev.Payload.(app.RoomJoinedPayload); ok {
			out.Ticket = p.Ticket
		}
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameLudo, map[string]interface{}{matchParamRoomID: room.ID})
	if err != nil {
		logger.Error("openRoom [User:%s]: Failed to create match for room %s: %v", userID, room.ID, err)
		if _, leaveErr := s.rooms.LeaveRoom(room.ID, userID); leaveErr != nil {
			logger.Warn("openRoom [User:%s]: Failed to release seat: %v", userID, leaveErr)
		}
		return RoomTicket{}, runtime.NewError("failed to create match", codeInternal)
	}
	// MatchInit binds as well; binding here makes the id visible before the first tick.
	if err := s.rooms.BindMatch(room.ID, matchID); err != nil {
		return RoomTicket{}, rpcError(err)
	}
	out.MatchID = matchID
	return out, nil
}

// RpcJoinRoom resolves a room by id or join code and checks the caller may
// take a seat. The seat itself is taken when the client joins the match.
//
// Payload: joinRoomPayload.
// Returns: RoomTicket without a ticket.
func (s *Server) RpcJoinRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var in joinRoomPayload
	if err := decodePayload(payload, &in); err != nil {
		return "", err
	}

	var room app.RoomSnapshot
	switch {
	case in.RoomID != "":
		room, err = s.rooms.Room(in.RoomID)
	case in.Code != "":
		room, err = s.rooms.FindByCode(in.Code)
	default:
		return "", runtime.NewError("roomId or code is required", codeInvalidArgument)
	}
	if err != nil {
		return "", rpcError(err)
	}
	if err := s.rooms.CanJoin(room.ID, userID, in.Password); err != nil {
		logger.Debug("RpcJoinRoom [User:%s]: Rejected from room %s: %v", userID, room.ID, err)
		return "", rpcError(err)
	}
	if room.MatchID == "" {
		return "", runtime.NewError("room has no match yet", codeFailedPrecondition)
	}
	return encodeResponse(RoomTicket{RoomID: room.ID, MatchID: room.MatchID, Code: room.Code, Status: string(room.Status)})
}

// RpcListRooms lists public rooms waiting for players, oldest first.
func (s *Server) RpcListRooms(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	rooms := s.rooms.PublicRooms()
	out := struct {
		Rooms []RoomSummary `json:"rooms"`
	}{Rooms: make([]RoomSummary, 0, len(rooms))}
	for _, r := range rooms {
		if r.MatchID == "" {
			continue
		}
		out.Rooms = append(out.Rooms, RoomSummary{
			RoomID:     r.ID,
			MatchID:    r.MatchID,
			Code:       r.Code,
			GameMode:   r.GameMode,
			Players:    len(r.Players),
			MaxPlayers: r.Capacity,
			HostID:     r.HostID,
			CreatedAt:  millis(r.CreatedAt),
		})
	}
	return encodeResponse(out)
}

// RpcReconnectAttempt checks a seat ticket and returns the match holding the seat.
//
// Payload: reconnectPayload.
// Returns: RoomTicket with the room status.
func (s *Server) RpcReconnectAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var in reconnectPayload
	if err := decodePayload(payload, &in); err != nil {
		return "", err
	}
	if in.Ticket == "" {
		return "", runtime.NewError("ticket is required", codeInvalidArgument)
	}

	room, err := s.rooms.VerifySeat(in.Ticket, userID)
	if err != nil {
		if !errors.Is(err, app.ErrInvalidTicket) {
			logger.Debug("RpcReconnectAttempt [User:%s]: Seat gone: %v", userID, err)
		}
		return "", rpcError(err)
	}
	return encodeResponse(RoomTicket{RoomID: room.ID, MatchID: room.MatchID, Code: room.Code, Status: string(room.Status)})
}
