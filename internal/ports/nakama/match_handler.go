package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"ludo/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

// MatchState holds the connection-level state of one room's match. Game state
// lives in the room manager.
type MatchState struct {
	RoomID    string                      `json:"room_id"`
	Tick      int64                       `json:"tick"`
	Label     string                      `json:"label"`
	Presences map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	// admitted holds passwords accepted in MatchJoinAttempt until MatchJoin runs.
	admitted map[string]string
	// leaveAt maps a dropped player to the tick at which the seat is given up.
	leaveAt map[string]int64
}

type matchHandler struct {
	srv *Server
}

// NewMatch returns the factory registered with Nakama.
func (s *Server) NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{srv: s}, nil
}

// MatchInit binds the match to the room named in params, creating a default
// room when the match was started without one.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	roomID, _ := params[matchParamRoomID].(string)
	if roomID == "" {
		room, _, err := mh.srv.rooms.CreateRoom(app.CreateRoomRequest{})
		if err != nil {
			logger.Error("MatchInit: Failed to create room: %v", err)
			return nil, 0, ""
		}
		roomID = room.ID
	}
	if matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string); matchID != "" {
		if err := mh.srv.rooms.BindMatch(roomID, matchID); err != nil {
			logger.Error("MatchInit: Failed to bind match to room %s: %v", roomID, err)
			return nil, 0, ""
		}
	}

	state := &MatchState{
		RoomID:    roomID,
		Presences: make(map[string]runtime.Presence),
		admitted:  make(map[string]string),
		leaveAt:   make(map[string]int64),
	}
	l, err := mh.srv.rooms.Label(roomID)
	if err == nil {
		state.Label, err = encodeLabel(l)
	}
	if err != nil {
		logger.Error("MatchInit: Failed to build label: %v", err)
		return nil, 0, ""
	}
	logger.Debug("MatchInit: Room %s ready.", roomID)
	return state, MatchTickRate, state.Label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	password := metadata[joinMetaPassword]
	if err := mh.srv.rooms.CanJoin(matchState.RoomID, presence.GetUserId(), password); err != nil {
		logger.Debug("MatchJoinAttempt: User %s rejected from room %s: %v", presence.GetUserId(), matchState.RoomID, err)
		return matchState, false, app.ErrorCode(err)
	}
	matchState.admitted[presence.GetUserId()] = password
	return matchState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		password := matchState.admitted[userID]
		delete(matchState.admitted, userID)
		delete(matchState.leaveAt, userID)
		matchState.Presences[userID] = p

		events, err := mh.srv.rooms.JoinRoom(matchState.RoomID, userID, app.JoinRoomRequest{
			Password: password,
			Name:     p.GetUsername(),
			Conn:     p.GetSessionId(),
		})
		if err != nil {
			logger.Warn("MatchJoin: User %s could not take a seat in room %s: %v", userID, matchState.RoomID, err)
			delete(matchState.Presences, userID)
			if err := dispatcher.MatchKick([]runtime.Presence{p}); err != nil {
				logger.Error("MatchJoin: Failed to kick %s: %v", userID, err)
			}
			continue
		}
		mh.dispatch(ctx, logger, nk, dispatcher, matchState, events)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave keeps the seat of a dropped player for the roster grace period.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	grace := int64(mh.srv.cfg.RosterGraceSeconds * MatchTickRate)
	for _, p := range presences {
		userID := p.GetUserId()
		current, ok := matchState.Presences[userID]
		if !ok || current.GetSessionId() != p.GetSessionId() {
			// Already gone, or replaced by a newer session.
			continue
		}
		delete(matchState.Presences, userID)

		events, err := mh.srv.rooms.Disconnect(matchState.RoomID, userID)
		if err != nil {
			logger.Debug("MatchLeave: User %s not seated in room %s: %v", userID, matchState.RoomID, err)
			continue
		}
		matchState.leaveAt[userID] = tick + grace
		logger.Debug("MatchLeave: User %s dropped, seat held until tick %d.", userID, tick+grace)
		mh.dispatch(ctx, logger, nk, dispatcher, matchState, events)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) (result interface{}) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}
	result = matchState
	defer func() {
		if r := recover(); r != nil {
			logger.Error("MatchLoop: Recovered from panic in room %s: %v", matchState.RoomID, r)
			result = matchState
		}
	}()

	matchState.Tick = tick

	for _, msg := range messages {
		mh.handleMessage(ctx, logger, nk, dispatcher, matchState, msg)
	}

	mh.expireLeaves(ctx, logger, nk, dispatcher, matchState, tick)

	events, err := mh.srv.rooms.Tick(matchState.RoomID)
	if errors.Is(err, app.ErrRoomNotFound) {
		logger.Info("MatchLoop: Room %s no longer exists, closing match.", matchState.RoomID)
		return nil
	}
	mh.dispatch(ctx, logger, nk, dispatcher, matchState, events)
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) handleMessage(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, state *MatchState, msg runtime.MatchData) {
	userID := msg.GetUserId()
	req, err := decodeRequest(msg.GetOpCode(), msg.GetData())
	if err != nil {
		logger.Warn("MatchLoop: Bad message from %s (op %d): %v", userID, msg.GetOpCode(), err)
		mh.send(logger, dispatcher, state, app.ErrorEvent(state.RoomID, userID, err))
		return
	}

	events, err := mh.srv.rooms.Handle(state.RoomID, userID, req)
	mh.dispatch(ctx, logger, nk, dispatcher, state, events)
	if err != nil {
		logger.Debug("MatchLoop: %T from %s rejected: %v", req, userID, err)
		mh.send(logger, dispatcher, state, app.ErrorEvent(state.RoomID, userID, err))
		return
	}

	if _, leaving := req.(app.LeaveRoomRequest); leaving {
		delete(state.leaveAt, userID)
		if p, ok := state.Presences[userID]; ok {
			delete(state.Presences, userID)
			if err := dispatcher.MatchKick([]runtime.Presence{p}); err != nil {
				logger.Error("MatchLoop: Failed to remove %s after leaving: %v", userID, err)
			}
		}
	}
}

// expireLeaves gives up the seats of players whose roster grace has run out.
func (mh *matchHandler) expireLeaves(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, state *MatchState, tick int64) {
	for userID, at := range state.leaveAt {
		if tick < at {
			continue
		}
		delete(state.leaveAt, userID)
		if _, back := state.Presences[userID]; back {
			continue
		}
		events, err := mh.srv.rooms.LeaveRoom(state.RoomID, userID)
		if err != nil {
			logger.Debug("MatchLoop: Seat of %s already released: %v", userID, err)
			continue
		}
		logger.Info("MatchLoop: User %s did not return to room %s, seat released.", userID, state.RoomID)
		mh.dispatch(ctx, logger, nk, dispatcher, state, events)
	}
}

// dispatch routes app events: other rooms get them through a match signal,
// ban decisions are enforced, the rest go to this match's presences.
func (mh *matchHandler) dispatch(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, state *MatchState, events []app.Event) {
	for _, ev := range events {
		switch {
		case ev.Room != "" && ev.Room != state.RoomID:
			mh.srv.relay(logger, nk, ev)
		case ev.Kind == app.EventBanDecision:
			mh.enforceBan(ctx, logger, dispatcher, state, ev)
		default:
			mh.send(logger, dispatcher, state, ev)
		}
	}
}

func (mh *matchHandler) enforceBan(ctx context.Context, logger runtime.Logger, dispatcher runtime.MatchDispatcher, state *MatchState, ev app.Event) {
	p, ok := ev.Payload.(app.BanDecisionPayload)
	if !ok {
		return
	}
	logger.WithField("room", state.RoomID).Warn("Ban: User %s banned for %s after %d flags.", p.PlayerID, p.Reason, len(p.Flags))
	if mh.srv.bans != nil {
		if err := mh.srv.bans.BanUsers(ctx, []string{p.PlayerID}); err != nil {
			logger.Error("Ban: Failed to ban %s: %v", p.PlayerID, err)
		}
	}
	if presence, ok := state.Presences[p.PlayerID]; ok {
		if err := dispatcher.MatchKick([]runtime.Presence{presence}); err != nil {
			logger.Error("Ban: Failed to kick %s: %v", p.PlayerID, err)
		}
	}
}

// send encodes one event and delivers it to its recipients, or to everyone.
func (mh *matchHandler) send(logger runtime.Logger, dispatcher runtime.MatchDispatcher, state *MatchState, ev app.Event) {
	opCode, data, err := encodeEvent(ev)
	if err != nil {
		logger.Error("Failed to encode event %v: %v", ev.Kind, err)
		return
	}

	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		// Targeted events must never fall back to a broadcast.
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
		logger.Error("Failed to send event %v: %v", ev.Kind, err)
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	l, err := mh.srv.rooms.Label(state.RoomID)
	if err != nil {
		return
	}
	label, err := encodeLabel(l)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.Label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.Label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	if matchState, ok := state.(*MatchState); ok {
		logger.Info("MatchTerminate: Match for room %s terminating (grace %ds).", matchState.RoomID, graceSeconds)
	}
	return state
}

// MatchSignal delivers events relayed from other rooms' operations.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}
	var msg relayedMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		logger.Warn("MatchSignal: Ignoring malformed signal: %v", err)
		return matchState, "invalid signal"
	}

	var recipients []runtime.Presence
	for _, uid := range msg.Recipients {
		if p, ok := matchState.Presences[uid]; ok {
			recipients = append(recipients, p)
		}
	}
	if len(msg.Recipients) > 0 && len(recipients) == 0 {
		return matchState, ""
	}
	if err := dispatcher.BroadcastMessage(msg.OpCode, msg.Data, recipients, nil, true); err != nil {
		logger.Error("MatchSignal: Failed to deliver relayed event: %v", err)
	}
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState, ""
}
