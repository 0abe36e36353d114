package nakama

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"ludo/internal/app"
	"ludo/internal/config"
	"ludo/internal/domain"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []string
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent         []sentMessage
	kicked       []string
	labelUpdates int
	lastLabel    string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	msg := sentMessage{opCode: opCode, data: append([]byte(nil), data...)}
	for _, p := range presences {
		msg.recipients = append(msg.recipients, p.GetUserId())
	}
	md.sent = append(md.sent, msg)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	for _, p := range presences {
		md.kicked = append(md.kicked, p.GetUserId())
	}
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

func (md *mockDispatcher) withOp(opCode int64) []sentMessage {
	var out []sentMessage
	for _, m := range md.sent {
		if m.opCode == opCode {
			out = append(out, m)
		}
	}
	return out
}

type testPresence struct {
	userID    string
	sessionID string
	username  string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return p.username }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return p.sessionID }
func (p testPresence) GetNodeId() string                 { return "node-1" }

func presence(userID string) testPresence {
	return testPresence{userID: userID, sessionID: "session-" + userID, username: userID}
}

type testMatchData struct {
	testPresence
	opCode int64
	data   []byte
}

func (d testMatchData) GetOpCode() int64      { return d.opCode }
func (d testMatchData) GetData() []byte       { return d.data }
func (d testMatchData) GetReliable() bool     { return true }
func (d testMatchData) GetReceiveTime() int64 { return 0 }

func message(userID string, opCode int64, body string) runtime.MatchData {
	return testMatchData{testPresence: presence(userID), opCode: opCode, data: []byte(body)}
}

// fakeNakama implements the NakamaModule calls the adapters use.
type fakeNakama struct {
	runtime.NakamaModule

	mu        sync.Mutex
	created   []map[string]interface{}
	signals   chan string
	banned    []string
	profiles  map[string]string
	objects   map[string]*api.StorageObject
	writeErr  error
	createErr error
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{
		signals:  make(chan string, 16),
		profiles: make(map[string]string),
		objects:  make(map[string]*api.StorageObject),
	}
}

func (f *fakeNakama) MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, params)
	return "match-" + params[matchParamRoomID].(string), nil
}

func (f *fakeNakama) MatchSignal(ctx context.Context, id string, data string) (string, error) {
	f.signals <- id + "|" + data
	return "", nil
}

func (f *fakeNakama) UsersBanId(ctx context.Context, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, userIDs...)
	return nil
}

func (f *fakeNakama) AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[userID] = displayName
	return nil
}

func storageKey(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (f *fakeNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		k := storageKey(w.Collection, w.Key, w.UserID)
		existing, ok := f.objects[k]
		switch {
		case w.Version == "*" && ok:
			return nil, runtime.ErrStorageRejectedVersion
		case w.Version != "" && w.Version != "*" && (!ok || existing.Version != w.Version):
			return nil, runtime.ErrStorageRejectedVersion
		}
		version := "v1"
		if ok {
			version = existing.Version + "1"
		}
		f.objects[k] = &api.StorageObject{Collection: w.Collection, Key: w.Key, UserId: w.UserID, Value: w.Value, Version: version}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, UserId: w.UserID, Version: version})
	}
	return acks, nil
}

func (f *fakeNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*api.StorageObject
	for _, r := range reads {
		if obj, ok := f.objects[storageKey(r.Collection, r.Key, r.UserID)]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

type fakeBans struct {
	banned []string
}

func (f *fakeBans) BanUsers(ctx context.Context, userIDs []string) error {
	f.banned = append(f.banned, userIDs...)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeBans) {
	t.Helper()
	security, err := app.NewSecurity("test-secret", nil)
	if err != nil {
		t.Fatalf("NewSecurity() error = %v", err)
	}
	tickets, err := app.NewTicketService("ticket-secret", 0)
	if err != nil {
		t.Fatalf("NewTicketService() error = %v", err)
	}
	cfg := config.Defaults()
	rooms := app.NewRoomManager(managerConfig(cfg), security, tickets, nil)
	bans := &fakeBans{}
	return NewServer(cfg, rooms, bans, nil), bans
}

// startMatch creates a room and runs MatchInit for it.
func startMatch(t *testing.T, srv *Server, req app.CreateRoomRequest) (*matchHandler, *MatchState) {
	t.Helper()
	room, _, err := srv.rooms.CreateRoom(req)
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	mh := &matchHandler{srv: srv}
	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_MATCH_ID, "match-"+room.ID)
	state, tickRate, label := mh.MatchInit(ctx, noopLogger{}, nil, nil, map[string]interface{}{matchParamRoomID: room.ID})
	if state == nil {
		t.Fatal("MatchInit() returned nil state")
	}
	if tickRate != MatchTickRate {
		t.Fatalf("MatchInit() tickRate = %d, want %d", tickRate, MatchTickRate)
	}
	if label == "" {
		t.Fatal("MatchInit() returned empty label")
	}
	return mh, state.(*MatchState)
}

func joinAll(t *testing.T, mh *matchHandler, state *MatchState, d *mockDispatcher, userIDs ...string) {
	t.Helper()
	var joined []runtime.Presence
	for _, uid := range userIDs {
		p := presence(uid)
		_, ok, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, d, 1, state, p, nil)
		if !ok {
			t.Fatalf("MatchJoinAttempt(%s) rejected: %s", uid, reason)
		}
		joined = append(joined, p)
	}
	mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, d, 1, state, joined)
}

func TestMatchInitBindsRoom(t *testing.T) {
	srv, _ := newTestServer(t)
	_, state := startMatch(t, srv, app.CreateRoomRequest{})

	room, err := srv.rooms.Room(state.RoomID)
	if err != nil {
		t.Fatalf("Room() error = %v", err)
	}
	if room.MatchID != "match-"+state.RoomID {
		t.Fatalf("MatchID = %q, want %q", room.MatchID, "match-"+state.RoomID)
	}

	var label map[string]interface{}
	if err := json.Unmarshal([]byte(state.Label), &label); err != nil {
		t.Fatalf("label is not JSON: %v", err)
	}
	if label["room_id"] != state.RoomID || label["open"] != true {
		t.Fatalf("unexpected label %s", state.Label)
	}
}

func TestMatchInitCreatesRoomWithoutParams(t *testing.T) {
	srv, _ := newTestServer(t)
	mh := &matchHandler{srv: srv}

	state, _, _ := mh.MatchInit(context.Background(), noopLogger{}, nil, nil, map[string]interface{}{})
	ms, ok := state.(*MatchState)
	if !ok || ms.RoomID == "" {
		t.Fatalf("MatchInit() state = %#v, want a room", state)
	}
	if _, err := srv.rooms.Room(ms.RoomID); err != nil {
		t.Fatalf("Room() error = %v", err)
	}
}

func TestMatchJoinSeatsPlayers(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}

	joinAll(t, mh, state, d, "user-1", "user-2")

	joined := d.withOp(OpRoomJoined)
	if len(joined) != 2 {
		t.Fatalf("room_joined sent %d times, want 2", len(joined))
	}
	if len(joined[0].recipients) != 1 || joined[0].recipients[0] != "user-1" {
		t.Fatalf("room_joined recipients = %v, want [user-1]", joined[0].recipients)
	}
	var body struct {
		Color  string `json:"color"`
		Ticket string `json:"ticket"`
	}
	if err := json.Unmarshal(joined[0].data, &body); err != nil {
		t.Fatalf("room_joined body: %v", err)
	}
	if body.Color != string(domain.ColorRed) || body.Ticket == "" {
		t.Fatalf("room_joined body = %+v, want red with a ticket", body)
	}
	if d.labelUpdates == 0 {
		t.Fatal("expected a label update after joins")
	}

	room, _ := srv.rooms.Room(state.RoomID)
	if len(room.Players) != 2 || room.HostID != "user-1" {
		t.Fatalf("room players = %d host = %s, want 2 and user-1", len(room.Players), room.HostID)
	}
}

func TestMatchJoinAttemptChecksPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{Password: "secret"})
	d := &mockDispatcher{}

	_, ok, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, d, 1, state, presence("user-1"), map[string]string{joinMetaPassword: "nope"})
	if ok || reason != "WRONG_PASSWORD" {
		t.Fatalf("MatchJoinAttempt() = %t %q, want rejection WRONG_PASSWORD", ok, reason)
	}

	_, ok, _ = mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, d, 1, state, presence("user-1"), map[string]string{joinMetaPassword: "secret"})
	if !ok {
		t.Fatal("MatchJoinAttempt() rejected the right password")
	}
	mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, d, 1, state, []runtime.Presence{presence("user-1")})
	if len(d.kicked) != 0 {
		t.Fatalf("kicked %v, want nobody", d.kicked)
	}
}

func TestMatchLoopStartsGame(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{MaxPlayers: 2})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1", "user-2")

	msgs := []runtime.MatchData{
		message("user-1", OpReady, `{"isReady":true}`),
		message("user-2", OpReady, `{"isReady":true}`),
		message("user-1", OpStartGame, ""),
	}
	result := mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 2, state, msgs)
	if result == nil {
		t.Fatal("MatchLoop() ended the match")
	}

	if got := len(d.withOp(OpPlayerReady)); got != 2 {
		t.Fatalf("player_ready sent %d times, want 2", got)
	}
	started := d.withOp(OpGameStarted)
	if len(started) != 1 {
		t.Fatalf("game_started sent %d times, want 1", len(started))
	}
	var body struct {
		GameState struct {
			Phase     string   `json:"phase"`
			TurnOrder []string `json:"turnOrder"`
		} `json:"gameState"`
	}
	if err := json.Unmarshal(started[0].data, &body); err != nil {
		t.Fatalf("game_started body: %v", err)
	}
	if body.GameState.Phase != string(domain.PhasePlaying) || len(body.GameState.TurnOrder) != 2 {
		t.Fatalf("game_started body = %+v", body)
	}
	if len(d.withOp(OpTurnStarted)) != 1 {
		t.Fatal("expected the first turn to start")
	}

	var label map[string]interface{}
	if err := json.Unmarshal([]byte(d.lastLabel), &label); err != nil {
		t.Fatalf("label: %v", err)
	}
	if label["status"] != string(domain.RoomPlaying) || label["open"] != false {
		t.Fatalf("label after start = %s", d.lastLabel)
	}
}

func TestMatchLoopReportsErrorsToSender(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1", "user-2")

	tests := []struct {
		name string
		msg  runtime.MatchData
		code string
	}{
		{name: "UnknownOpCode", msg: message("user-2", 99, ""), code: "UNKNOWN_REQUEST"},
		{name: "MalformedBody", msg: message("user-2", OpReady, "{"), code: "UNKNOWN_REQUEST"},
		{name: "NotHost", msg: message("user-2", OpStartGame, ""), code: "NOT_HOST"},
		{name: "NotPlaying", msg: message("user-2", OpRollDice, ""), code: "GAME_NOT_PLAYING"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d.sent = nil
			mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 2, state, []runtime.MatchData{test.msg})

			errs := d.withOp(OpError)
			if len(errs) != 1 {
				t.Fatalf("error sent %d times, want 1", len(errs))
			}
			if len(errs[0].recipients) != 1 || errs[0].recipients[0] != "user-2" {
				t.Fatalf("error recipients = %v, want [user-2]", errs[0].recipients)
			}
			var body struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(errs[0].data, &body); err != nil {
				t.Fatalf("error body: %v", err)
			}
			if body.Code != test.code {
				t.Fatalf("error code = %s, want %s", body.Code, test.code)
			}
		})
	}
}

func TestPingAnswersSenderOnly(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1", "user-2")

	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 2, state, []runtime.MatchData{message("user-1", OpPing, `{"clientTime":1234}`)})

	pongs := d.withOp(OpPong)
	if len(pongs) != 1 || len(pongs[0].recipients) != 1 || pongs[0].recipients[0] != "user-1" {
		t.Fatalf("pongs = %+v, want one to user-1", pongs)
	}
	var body struct {
		ClientTime int64 `json:"clientTime"`
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(pongs[0].data, &body); err != nil {
		t.Fatalf("pong body: %v", err)
	}
	if body.ClientTime != 1234 || body.ServerTime == 0 {
		t.Fatalf("pong body = %+v", body)
	}
}

func TestLeaveRequestRemovesPresence(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1", "user-2")

	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 2, state, []runtime.MatchData{message("user-1", OpLeaveRoom, "")})

	if len(d.kicked) != 1 || d.kicked[0] != "user-1" {
		t.Fatalf("kicked = %v, want [user-1]", d.kicked)
	}
	if _, ok := state.Presences["user-1"]; ok {
		t.Fatal("presence of user-1 still tracked")
	}
	left := d.withOp(OpPlayerLeft)
	if len(left) != 1 {
		t.Fatalf("player_left sent %d times, want 1", len(left))
	}
	var body struct {
		NewHostID string `json:"newHostId"`
	}
	if err := json.Unmarshal(left[0].data, &body); err != nil {
		t.Fatalf("player_left body: %v", err)
	}
	if body.NewHostID != "user-2" {
		t.Fatalf("newHostId = %q, want user-2", body.NewHostID)
	}

	// The kick triggers MatchLeave; it must not schedule a second leave.
	mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, d, 3, state, []runtime.Presence{presence("user-1")})
	if len(state.leaveAt) != 0 {
		t.Fatalf("leaveAt = %v, want empty", state.leaveAt)
	}
}

func TestLastLeaveEndsMatch(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1")

	result := mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 2, state, []runtime.MatchData{message("user-1", OpLeaveRoom, "")})
	if result != nil {
		t.Fatal("match kept running after its room emptied")
	}
	if _, err := srv.rooms.Room(state.RoomID); err == nil {
		t.Fatal("emptied room still registered")
	}
	if rooms := srv.rooms.PublicRooms(); len(rooms) != 0 {
		t.Fatalf("public rooms = %d, want 0", len(rooms))
	}
}

func TestMatchLeaveHoldsSeatForGrace(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1", "user-2")

	mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, d, 10, state, []runtime.Presence{presence("user-2")})
	if len(d.withOp(OpPlayerDisconnected)) != 1 {
		t.Fatal("expected player_disconnected after a drop")
	}

	grace := int64(srv.cfg.RosterGraceSeconds * MatchTickRate)
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 10+grace-1, state, nil)
	room, _ := srv.rooms.Room(state.RoomID)
	if len(room.Players) != 2 {
		t.Fatalf("players = %d before grace ran out, want 2", len(room.Players))
	}

	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 10+grace, state, nil)
	room, _ = srv.rooms.Room(state.RoomID)
	if len(room.Players) != 1 {
		t.Fatalf("players = %d after grace, want 1", len(room.Players))
	}
	if len(d.withOp(OpPlayerLeft)) != 1 {
		t.Fatal("expected player_left once the grace ran out")
	}
}

func TestRejoinWithinGraceKeepsSeat(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1", "user-2")

	mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, d, 10, state, []runtime.Presence{presence("user-2")})
	back := testPresence{userID: "user-2", sessionID: "session-new", username: "user-2"}
	mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, d, 11, state, []runtime.Presence{back})

	// A late leave for the old session is ignored.
	mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, d, 12, state, []runtime.Presence{presence("user-2")})

	grace := int64(srv.cfg.RosterGraceSeconds * MatchTickRate)
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 10+grace+1, state, nil)

	room, _ := srv.rooms.Room(state.RoomID)
	if len(room.Players) != 2 {
		t.Fatalf("players = %d, want 2", len(room.Players))
	}
	for _, p := range room.Players {
		if !p.Connected {
			t.Fatalf("player %s not connected", p.ID)
		}
	}
}

func TestMatchLoopEndsWhenRoomIsGone(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	srv.rooms.Shutdown()

	if got := mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, &mockDispatcher{}, 5, state, nil); got != nil {
		t.Fatalf("MatchLoop() = %v, want nil", got)
	}
}

func TestDispatchEnforcesBan(t *testing.T) {
	srv, bans := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	d := &mockDispatcher{}
	joinAll(t, mh, state, d, "user-1", "user-2")
	d.sent = nil

	ban := app.Event{
		Kind:    app.EventBanDecision,
		Room:    state.RoomID,
		Payload: app.BanDecisionPayload{PlayerID: "user-2", Reason: "anti-cheat"},
	}
	mh.dispatch(context.Background(), noopLogger{}, nil, d, state, []app.Event{ban})

	if len(bans.banned) != 1 || bans.banned[0] != "user-2" {
		t.Fatalf("banned = %v, want [user-2]", bans.banned)
	}
	if len(d.kicked) != 1 || d.kicked[0] != "user-2" {
		t.Fatalf("kicked = %v, want [user-2]", d.kicked)
	}
	if len(d.sent) != 0 {
		t.Fatalf("ban decision was sent to clients: %+v", d.sent)
	}
}

func TestDispatchRelaysOtherRooms(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	_, other := startMatch(t, srv, app.CreateRoomRequest{})
	nk := newFakeNakama()
	d := &mockDispatcher{}

	ev := app.Event{
		Kind:    app.EventPlayerLeft,
		Room:    other.RoomID,
		Payload: app.PlayerLeftPayload{PlayerID: "user-9"},
	}
	mh.dispatch(context.Background(), noopLogger{}, nk, d, state, []app.Event{ev})

	if len(d.sent) != 0 {
		t.Fatalf("event for another room was broadcast locally: %+v", d.sent)
	}
	signal := <-nk.signals
	want := "match-" + other.RoomID + "|"
	if len(signal) <= len(want) || signal[:len(want)] != want {
		t.Fatalf("signal = %q, want prefix %q", signal, want)
	}

	// The receiving match broadcasts the relayed event.
	od := &mockDispatcher{}
	otherHandler := &matchHandler{srv: srv}
	otherHandler.MatchSignal(context.Background(), noopLogger{}, nil, nil, od, 1, other, signal[len(want):])
	if len(od.withOp(OpPlayerLeft)) != 1 {
		t.Fatalf("relayed event not delivered: %+v", od.sent)
	}
}

func TestMatchSignalRejectsGarbage(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})

	_, reply := mh.MatchSignal(context.Background(), noopLogger{}, nil, nil, &mockDispatcher{}, 1, state, "not json")
	if reply == "" {
		t.Fatal("MatchSignal() accepted a malformed signal")
	}
}

func TestMatchLoopRecoversFromPanics(t *testing.T) {
	srv, _ := newTestServer(t)
	mh, state := startMatch(t, srv, app.CreateRoomRequest{})
	joinAll(t, mh, state, &mockDispatcher{}, "user-1")

	// Sending the pong through a nil dispatcher panics.
	var d *mockDispatcher
	msgs := []runtime.MatchData{message("user-1", OpPing, `{"clientTime":1}`)}
	got := mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, d, 1, state, msgs)
	if got != state {
		t.Fatalf("MatchLoop() = %v, want the state back", got)
	}
}
