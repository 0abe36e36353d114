package nakama

import (
	"context"
	"encoding/json"
	"errors"

	"ludo/internal/app"
	"ludo/internal/app/identity"
	"ludo/internal/config"
	"ludo/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Server holds what the match handlers and RPCs share for the module's lifetime.
type Server struct {
	cfg      config.GameConfig
	rooms    *app.RoomManager
	bans     ports.BanPort
	identity *identity.Service
}

// NewServer wires the shared room manager. bans and guests may be nil.
func NewServer(cfg config.GameConfig, rooms *app.RoomManager, bans ports.BanPort, guests *identity.Service) *Server {
	return &Server{cfg: cfg, rooms: rooms, bans: bans, identity: guests}
}

// relayedMessage carries an encoded event into another room's match.
type relayedMessage struct {
	OpCode     int64    `json:"op"`
	Data       []byte   `json:"data"`
	Recipients []string `json:"recipients,omitempty"`
}

// relay forwards an event that belongs to another room to that room's match.
func (s *Server) relay(logger runtime.Logger, nk runtime.NakamaModule, ev app.Event) {
	room, err := s.rooms.Room(ev.Room)
	if err != nil || room.MatchID == "" {
		return
	}
	opCode, data, err := encodeEvent(ev)
	if err != nil {
		logger.Warn("Relay: Failed to encode %s for room %s: %v", ev.Kind, ev.Room, err)
		return
	}
	signal, err := json.Marshal(relayedMessage{OpCode: opCode, Data: data, Recipients: ev.Recipients})
	if err != nil {
		logger.Error("Relay: Failed to marshal signal: %v", err)
		return
	}
	// Signalled asynchronously so two matches relaying to each other never wait on one another.
	go func() {
		if _, err := nk.MatchSignal(context.Background(), room.MatchID, string(signal)); err != nil {
			logger.Warn("Relay: Failed to signal match %s: %v", room.MatchID, err)
		}
	}()
}

// Nakama RPC error codes (gRPC status codes).
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

// rpcError converts an app error into a Nakama runtime error carrying the wire code.
func rpcError(err error) error {
	code := codeInternal
	switch {
	case errors.Is(err, app.ErrRoomNotFound), errors.Is(err, app.ErrNotInRoom):
		code = codeNotFound
	case errors.Is(err, app.ErrWrongPassword), errors.Is(err, app.ErrInvalidTicket):
		code = codePermissionDenied
	case errors.Is(err, app.ErrRoomFull), errors.Is(err, app.ErrGameAlreadyStarted):
		code = codeFailedPrecondition
	case errors.Is(err, app.ErrInvalidCapacity), errors.Is(err, app.ErrUnknownRequest):
		code = codeInvalidArgument
	}
	return runtime.NewError(app.ErrorCode(err), code)
}
