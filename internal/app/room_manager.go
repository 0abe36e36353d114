package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"ludo/internal/domain"
	"ludo/internal/ports"
)

// ManagerConfig holds the room-level tunables.
type ManagerConfig struct {
	Session          SessionConfig
	RoomIdle         time.Duration
	ReapInterval     time.Duration
	ChatMaxLength    int
	ActionsPerSecond int
	DefaultCapacity  int
}

// DefaultManagerConfig returns the standard room tunables.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Session:          DefaultSessionConfig(),
		RoomIdle:         5 * time.Minute,
		ReapInterval:     time.Minute,
		ChatMaxLength:    ChatMaxLength,
		ActionsPerSecond: 10,
		DefaultCapacity:  MaxCapacity,
	}
}

type roomEntry struct {
	mu       sync.Mutex
	room     *domain.Room
	session  *Session
	limiters map[string]*rate.Limiter
	deleted  bool
}

// RoomManager owns every room and the session running inside it.
// The registry lock only guards the maps; each room is serialised by its own
// lock. A room lock may be held while taking the registry lock, never the
// other way round.
type RoomManager struct {
	cfg      ManagerConfig
	security *Security
	tickets  *TicketService
	recorder *Recorder
	now      func() time.Time

	mu      sync.RWMutex
	rooms   map[string]*roomEntry
	codes   map[string]string
	members map[string]string
}

// NewRoomManager builds an empty registry. tickets and recorder may be nil.
func NewRoomManager(cfg ManagerConfig, security *Security, tickets *TicketService, recorder *Recorder) *RoomManager {
	if cfg.DefaultCapacity == 0 {
		cfg.DefaultCapacity = MaxCapacity
	}
	if cfg.ChatMaxLength == 0 {
		cfg.ChatMaxLength = ChatMaxLength
	}
	return &RoomManager{
		cfg:      cfg,
		security: security,
		tickets:  tickets,
		recorder: recorder,
		now:      time.Now,
		rooms:    make(map[string]*roomEntry),
		codes:    make(map[string]string),
		members:  make(map[string]string),
	}
}

// entry returns the locked entry for roomID. Callers must unlock it.
func (m *RoomManager) entry(roomID string) (*roomEntry, error) {
	m.mu.RLock()
	e, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return e, nil
}

func stamp(roomID string, events []Event) []Event {
	for i := range events {
		if events[i].Room == "" {
			events[i].Room = roomID
		}
	}
	return events
}

// CreateRoom registers a new empty room in the waiting state.
func (m *RoomManager) CreateRoom(req CreateRoomRequest) (RoomSnapshot, []Event, error) {
	capacity := req.MaxPlayers
	if capacity == 0 {
		capacity = m.cfg.DefaultCapacity
	}
	if capacity < MinCapacity || capacity > MaxCapacity {
		return RoomSnapshot{}, nil, ErrInvalidCapacity
	}
	mode := req.GameMode
	if mode == "" {
		mode = DefaultGameMode
	}
	turnTime := m.cfg.Session.TurnTime
	if req.TurnSeconds > 0 {
		turnTime = time.Duration(req.TurnSeconds) * time.Second
	}

	var hash string
	if req.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return RoomSnapshot{}, nil, fmt.Errorf("failed to hash room password: %w", err)
		}
		hash = string(h)
	}

	now := m.now()
	room := &domain.Room{
		ID:           uuid.NewString(),
		Capacity:     capacity,
		GameMode:     mode,
		IsPrivate:    req.IsPrivate,
		PasswordHash: hash,
		Status:       domain.RoomWaiting,
		Settings:     domain.RoomSettings{TurnTime: turnTime, EnableChat: !req.DisableChat},
		CreatedAt:    now,
		EmptySince:   now,
	}
	room.Seed = m.security.RoomSeed(room.ID, now)

	m.mu.Lock()
	code, err := m.uniqueCodeLocked()
	if err != nil {
		m.mu.Unlock()
		return RoomSnapshot{}, nil, err
	}
	room.Code = code
	m.rooms[room.ID] = &roomEntry{room: room, limiters: make(map[string]*rate.Limiter)}
	m.codes[code] = room.ID
	m.mu.Unlock()

	m.recorder.Room(ports.RoomRecord{
		ID:        room.ID,
		Code:      room.Code,
		GameMode:  room.GameMode,
		Capacity:  room.Capacity,
		IsPrivate: room.IsPrivate,
		Status:    string(room.Status),
		Seed:      room.Seed,
		CreatedAt: room.CreatedAt,
	})

	snap := snapshotRoom(room)
	return snap, []Event{{Kind: EventRoomCreated, Room: room.ID, Payload: RoomCreatedPayload{Room: snap}}}, nil
}

func (m *RoomManager) uniqueCodeLocked() (string, error) {
	alphabet := big.NewInt(int64(len(roomCodeAlphabet)))
	for attempt := 0; attempt < 16; attempt++ {
		var sb strings.Builder
		for i := 0; i < RoomCodeLength; i++ {
			n, err := rand.Int(rand.Reader, alphabet)
			if err != nil {
				return "", fmt.Errorf("failed to generate room code: %w", err)
			}
			sb.WriteByte(roomCodeAlphabet[n.Int64()])
		}
		if _, taken := m.codes[sb.String()]; !taken {
			return sb.String(), nil
		}
	}
	return "", errors.New("failed to generate a unique room code")
}

// CanJoin runs the admission checks of JoinRoom without changing anything.
func (m *RoomManager) CanJoin(roomID, playerID, password string) error {
	e, err := m.entry(roomID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	if e.room.Player(playerID) != nil {
		return nil
	}
	return admit(e.room, password)
}

func admit(r *domain.Room, password string) error {
	if r.Status != domain.RoomWaiting {
		return ErrGameAlreadyStarted
	}
	if len(r.Players) >= r.Capacity {
		return ErrRoomFull
	}
	if r.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)); err != nil {
			return ErrWrongPassword
		}
	}
	return nil
}

// JoinRoom seats playerID in the room. A player already seated there is
// reconnected instead. Membership of another room is given up afterwards.
func (m *RoomManager) JoinRoom(roomID, playerID string, req JoinRoomRequest) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}

	if p := e.room.Player(playerID); p != nil {
		events := m.reconnectLocked(e, p, req.Conn)
		e.mu.Unlock()
		return events, nil
	}

	if err := admit(e.room, req.Password); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	now := m.now()
	color, _ := e.room.NextColor()
	name := req.Name
	if name == "" {
		name = guestName(playerID)
	}
	p := &domain.Player{
		ID:        playerID,
		Conn:      req.Conn,
		Name:      name,
		Color:     color,
		Connected: req.Conn != "",
		IsHost:    e.room.Host() == nil,
		JoinedAt:  now,
	}
	e.room.Players = append(e.room.Players, p)
	if p.Connected {
		e.room.EmptySince = time.Time{}
	}

	m.mu.Lock()
	previous := m.members[playerID]
	m.members[playerID] = roomID
	m.mu.Unlock()

	m.recorder.Membership(ports.MembershipRecord{
		RoomID:   roomID,
		PlayerID: playerID,
		Color:    string(color),
		Action:   ports.MembershipJoin,
		At:       now,
	})

	events := []Event{
		m.joinedEvent(e, p, now),
		{Kind: EventPlayerJoined, Room: roomID, Payload: PlayerJoinedPayload{Player: snapshotPlayer(p)}},
	}
	e.mu.Unlock()

	if previous != "" && previous != roomID {
		left, err := m.LeaveRoom(previous, playerID)
		if err == nil {
			events = append(left, events...)
		}
	}
	return events, nil
}

func guestName(playerID string) string {
	if len(playerID) > 6 {
		playerID = playerID[:6]
	}
	return "Guest-" + playerID
}

func (m *RoomManager) joinedEvent(e *roomEntry, p *domain.Player, now time.Time) Event {
	payload := RoomJoinedPayload{
		Room:     snapshotRoom(e.room),
		PlayerID: p.ID,
		Color:    p.Color,
	}
	if m.tickets != nil {
		if ticket, err := m.tickets.Issue(p.ID, e.room.ID, p.Color, now); err == nil {
			payload.Ticket = ticket
		}
	}
	if e.session != nil {
		game := e.session.Snapshot()
		payload.Game = &game
	}
	return Event{Kind: EventRoomJoined, Room: e.room.ID, Payload: payload, Recipients: []string{p.ID}}
}

func (m *RoomManager) reconnectLocked(e *roomEntry, p *domain.Player, conn string) []Event {
	now := m.now()
	if conn != "" {
		p.Conn = conn
	}
	wasConnected := p.Connected
	p.Connected = p.Conn != ""
	if p.Connected {
		e.room.EmptySince = time.Time{}
	}

	events := []Event{m.joinedEvent(e, p, now)}
	if e.session != nil && p.Connected {
		events = append(events, m.afterSession(e, e.session.HandlePlayerReconnection(p.ID, now))...)
	} else if !wasConnected && p.Connected {
		events = append(events, Event{Kind: EventPlayerJoined, Room: e.room.ID, Payload: PlayerJoinedPayload{Player: snapshotPlayer(p)}})
	}
	return events
}

// LeaveRoom removes playerID from the roster. During a game the player's
// tokens stay on the board and the session treats the seat as disconnected.
// A room whose roster becomes empty is deleted.
func (m *RoomManager) LeaveRoom(roomID, playerID string) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	p := domain.RemovePlayer(e.room, playerID)
	if p == nil {
		return nil, ErrNotInRoom
	}
	now := m.now()
	delete(e.limiters, playerID)

	m.mu.Lock()
	if m.members[playerID] == roomID {
		delete(m.members, playerID)
	}
	m.mu.Unlock()

	left := PlayerLeftPayload{PlayerID: playerID}
	if p.IsHost && len(e.room.Players) > 0 {
		e.room.Players[0].IsHost = true
		left.NewHostID = e.room.Players[0].ID
	}
	if domain.CountConnected(e.room) == 0 && e.room.EmptySince.IsZero() {
		e.room.EmptySince = now
	}

	m.recorder.Membership(ports.MembershipRecord{
		RoomID:   roomID,
		PlayerID: playerID,
		Color:    string(p.Color),
		Action:   ports.MembershipLeave,
		At:       now,
	})

	events := []Event{{Kind: EventPlayerLeft, Room: roomID, Payload: left}}
	if e.session != nil && !e.session.Finished() {
		events = append(events, m.afterSession(e, e.session.HandlePlayerDisconnect(playerID, now))...)
		if len(e.room.Players) < MinPlayersToStartGame {
			remaining := make([]string, 0, len(e.room.Players))
			for _, rp := range e.room.Players {
				remaining = append(remaining, rp.ID)
			}
			events = append(events, m.afterSession(e, e.session.Forfeit(remaining, now))...)
		}
	}
	if len(e.room.Players) == 0 {
		m.deleteLocked(e)
	}
	return events, nil
}

// Disconnect marks a seated player's connection as lost without freeing the seat.
func (m *RoomManager) Disconnect(roomID, playerID string) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	p := e.room.Player(playerID)
	if p == nil {
		return nil, ErrNotInRoom
	}
	if !p.Connected {
		return nil, nil
	}
	now := m.now()
	p.Connected = false
	p.Conn = ""
	if domain.CountConnected(e.room) == 0 {
		e.room.EmptySince = now
	}

	if e.session != nil && !e.session.Finished() {
		return m.afterSession(e, e.session.HandlePlayerDisconnect(playerID, now)), nil
	}
	return []Event{{Kind: EventPlayerDisconnected, Room: roomID, Payload: PlayerDisconnectedPayload{PlayerID: playerID}}}, nil
}

// HandleReconnection rebinds a seated player to a new connection in whatever
// room holds the seat.
func (m *RoomManager) HandleReconnection(playerID, conn string) ([]Event, error) {
	roomID, ok := m.RoomOf(playerID)
	if !ok {
		return nil, ErrNotInRoom
	}
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	p := e.room.Player(playerID)
	if p == nil {
		return nil, ErrNotInRoom
	}
	return m.reconnectLocked(e, p, conn), nil
}

// SetReady toggles a player's ready flag while the room is waiting.
func (m *RoomManager) SetReady(roomID, playerID string, ready bool) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	p := e.room.Player(playerID)
	if p == nil {
		return nil, ErrNotInRoom
	}
	if e.room.Status != domain.RoomWaiting {
		return nil, ErrGameAlreadyStarted
	}
	p.Ready = ready
	return []Event{{Kind: EventPlayerReady, Room: roomID, Payload: PlayerReadyPayload{PlayerID: playerID, Ready: ready}}}, nil
}

// StartGame moves a waiting room into play. Only the host may start, with at
// least two players who are all ready.
func (m *RoomManager) StartGame(roomID, actorID string) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	r := e.room
	if r.Status != domain.RoomWaiting {
		return nil, ErrGameAlreadyStarted
	}
	actor := r.Player(actorID)
	if actor == nil {
		return nil, ErrNotInRoom
	}
	if !actor.IsHost {
		return nil, ErrNotHost
	}
	if len(r.Players) < MinPlayersToStartGame {
		return nil, ErrNotEnoughPlayers
	}
	if !domain.AllReady(r) {
		return nil, ErrPlayersNotReady
	}

	now := m.now()
	cfg := m.cfg.Session
	cfg.TurnTime = r.Settings.TurnTime
	r.Status = domain.RoomPlaying
	e.session = NewSession(r.ID, r.Players, m.security, cfg, nil)
	m.recorder.RoomStatus(r.ID, string(r.Status), now)

	started := e.session.Initialize(now)
	events := []Event{{
		Kind:    EventGameStarted,
		Room:    r.ID,
		Payload: GameStartedPayload{Room: snapshotRoom(r), Game: e.session.Snapshot()},
	}}
	return append(events, m.afterSession(e, started)...), nil
}

// Handle routes an in-room request from playerID.
func (m *RoomManager) Handle(roomID, playerID string, req Request) ([]Event, error) {
	switch r := req.(type) {
	case JoinRoomRequest:
		return m.JoinRoom(roomID, playerID, r)
	case LeaveRoomRequest:
		return m.LeaveRoom(roomID, playerID)
	case StartGameRequest:
		return m.StartGame(roomID, playerID)
	case PlayerReadyRequest:
		return m.SetReady(roomID, playerID, r.IsReady)
	case DiceRollRequest:
		return m.RollDice(roomID, playerID)
	case MoveTokenRequest:
		return m.MoveToken(roomID, playerID, r)
	case ChatMessageRequest:
		return m.Chat(roomID, playerID, r.Message)
	case PingRequest:
		return m.Ping(roomID, playerID, r.ClientTime)
	case ReconnectRequest:
		return m.HandleReconnection(playerID, r.Conn)
	case CreateRoomRequest:
		// Rooms are created through the lobby, never from inside one.
		return nil, ErrUnknownRequest
	default:
		return nil, ErrUnknownRequest
	}
}

func (m *RoomManager) allow(e *roomEntry, playerID string, now time.Time) bool {
	if m.cfg.ActionsPerSecond <= 0 {
		return true
	}
	l, ok := e.limiters[playerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(m.cfg.ActionsPerSecond), m.cfg.ActionsPerSecond)
		e.limiters[playerID] = l
	}
	return l.AllowN(now, 1)
}

func (m *RoomManager) sessionFor(e *roomEntry, playerID string) (*Session, error) {
	if e.room.Player(playerID) == nil {
		return nil, ErrNotInRoom
	}
	if e.session == nil || e.session.Finished() {
		return nil, ErrGameNotPlaying
	}
	return e.session, nil
}

// RollDice rolls for playerID if it is their turn.
func (m *RoomManager) RollDice(roomID, playerID string) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	s, err := m.sessionFor(e, playerID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if !m.allow(e, playerID, now) {
		return m.afterSession(e, s.ObserveThrottled(playerID, now)), ErrRateLimited
	}
	events, err := s.HandleDiceRoll(playerID, now)
	return m.afterSession(e, events), err
}

// MoveToken applies a signed move for playerID.
func (m *RoomManager) MoveToken(roomID, playerID string, req MoveTokenRequest) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	s, err := m.sessionFor(e, playerID)
	if err != nil {
		return nil, err
	}
	events, err := s.HandleMove(playerID, req, m.now())
	return m.afterSession(e, events), err
}

// Chat broadcasts a sanitised message to the room.
func (m *RoomManager) Chat(roomID, playerID, message string) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	p := e.room.Player(playerID)
	if p == nil {
		return nil, ErrNotInRoom
	}
	if !e.room.Settings.EnableChat {
		return nil, ErrChatDisabled
	}

	now := m.now()
	var observed []Event
	if e.session != nil && !e.session.Finished() {
		observed = m.afterSession(e, e.session.ObserveChat(playerID, now))
	}
	if !m.allow(e, playerID, now) {
		return observed, ErrRateLimited
	}
	text, err := SanitizeChat(message, m.cfg.ChatMaxLength)
	if err != nil {
		return observed, err
	}

	m.recorder.Chat(ports.ChatRecord{RoomID: roomID, PlayerID: playerID, Message: text, At: now})
	events := []Event{{
		Kind: EventChatMessage,
		Room: roomID,
		Payload: ChatMessagePayload{
			PlayerID: playerID,
			Name:     p.Name,
			Color:    p.Color,
			Message:  text,
			At:       now,
		},
	}}
	return append(events, observed...), nil
}

// Ping answers a latency probe to the sender only.
func (m *RoomManager) Ping(roomID, playerID string, clientTime int64) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if e.room.Player(playerID) == nil {
		return nil, ErrNotInRoom
	}
	return []Event{{
		Kind:       EventPong,
		Room:       roomID,
		Payload:    PongPayload{ClientTime: clientTime, ServerTime: m.now()},
		Recipients: []string{playerID},
	}}, nil
}

// Tick fires the room's due timer, if any.
func (m *RoomManager) Tick(roomID string) ([]Event, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, nil
	}
	return m.afterSession(e, e.session.Tick(m.now())), nil
}

// afterSession records what the session did and tracks the room's status.
// It must be called with the room lock held.
func (m *RoomManager) afterSession(e *roomEntry, events []Event) []Event {
	var captures []string
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case TokenCapturedPayload:
			captures = append(captures, p.TokenID)
		case TokenMovedPayload:
			m.recorder.Move(ports.MoveRecord{
				RoomID:   e.room.ID,
				PlayerID: p.PlayerID,
				TokenID:  p.TokenID,
				Dice:     p.Dice,
				From:     p.From,
				To:       p.To,
				Captures: captures,
				Sequence: p.Sequence,
				Auto:     p.Auto,
				At:       m.now(),
			})
			captures = nil
		case GameEndedPayload:
			e.room.Status = domain.RoomFinished
			m.recorder.RoomStatus(e.room.ID, string(e.room.Status), m.now())
		case BanDecisionPayload:
			flags := make([]string, 0, len(p.Flags))
			for _, f := range p.Flags {
				flags = append(flags, string(f.Reason))
			}
			m.recorder.Ban(ports.BanRecord{
				PlayerID: p.PlayerID,
				RoomID:   e.room.ID,
				Reason:   p.Reason,
				Flags:    flags,
				At:       m.now(),
			})
		}
	}
	return stamp(e.room.ID, events)
}

// ReapIdle deletes rooms that have had nobody connected for the idle period
// and returns their ids.
func (m *RoomManager) ReapIdle(now time.Time) []string {
	m.mu.RLock()
	entries := make([]*roomEntry, 0, len(m.rooms))
	for _, e := range m.rooms {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var reaped []string
	for _, e := range entries {
		e.mu.Lock()
		r := e.room
		if !e.deleted && domain.CountConnected(r) == 0 && !r.EmptySince.IsZero() && now.Sub(r.EmptySince) >= m.cfg.RoomIdle {
			m.deleteLocked(e)
			reaped = append(reaped, r.ID)
		}
		e.mu.Unlock()
	}
	sort.Strings(reaped)
	return reaped
}

func (m *RoomManager) deleteLocked(e *roomEntry) {
	e.deleted = true
	if e.session != nil {
		e.session.Stop()
	}
	m.mu.Lock()
	delete(m.rooms, e.room.ID)
	delete(m.codes, e.room.Code)
	for _, p := range e.room.Players {
		if m.members[p.ID] == e.room.ID {
			delete(m.members, p.ID)
		}
	}
	m.mu.Unlock()
}

// Run reaps idle rooms every ReapInterval until ctx is done.
func (m *RoomManager) Run(ctx context.Context, onReap func(roomIDs []string)) {
	interval := m.cfg.ReapInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reaped := m.ReapIdle(m.now()); len(reaped) > 0 && onReap != nil {
				onReap(reaped)
			}
		}
	}
}

// Shutdown drops every room and cancels their timers.
func (m *RoomManager) Shutdown() {
	m.mu.RLock()
	entries := make([]*roomEntry, 0, len(m.rooms))
	for _, e := range m.rooms {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			m.deleteLocked(e)
		}
		e.mu.Unlock()
	}
}

// Room returns a snapshot of the room.
func (m *RoomManager) Room(roomID string) (RoomSnapshot, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return RoomSnapshot{}, err
	}
	defer e.mu.Unlock()
	return snapshotRoom(e.room), nil
}

// Game returns a snapshot of the running or finished game in the room.
func (m *RoomManager) Game(roomID string) (GameSnapshot, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return GameSnapshot{}, err
	}
	defer e.mu.Unlock()
	if e.session == nil {
		return GameSnapshot{}, ErrGameNotPlaying
	}
	return e.session.Snapshot(), nil
}

// Label returns the advertised match label of the room.
func (m *RoomManager) Label(roomID string) (domain.LabelPayload, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return domain.LabelPayload{}, err
	}
	defer e.mu.Unlock()
	return domain.ComputeLabel(e.room), nil
}

// FindByCode looks a room up by its join code, ignoring case.
func (m *RoomManager) FindByCode(code string) (RoomSnapshot, error) {
	m.mu.RLock()
	roomID, ok := m.codes[strings.ToUpper(strings.TrimSpace(code))]
	m.mu.RUnlock()
	if !ok {
		return RoomSnapshot{}, ErrRoomNotFound
	}
	return m.Room(roomID)
}

// PublicRooms lists waiting, non-private rooms with a free seat, oldest first.
func (m *RoomManager) PublicRooms() []RoomSnapshot {
	m.mu.RLock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]RoomSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := m.Room(id)
		if err != nil {
			continue
		}
		if snap.IsPrivate || snap.Status != domain.RoomWaiting || len(snap.Players) >= snap.Capacity {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RoomOf returns the room playerID is seated in.
func (m *RoomManager) RoomOf(playerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roomID, ok := m.members[playerID]
	return roomID, ok
}

// BindMatch records the transport match serving the room.
func (m *RoomManager) BindMatch(roomID, matchID string) error {
	e, err := m.entry(roomID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.room.MatchID = matchID
	return nil
}

// VerifySeat checks a seat ticket against the caller and the live roster.
func (m *RoomManager) VerifySeat(ticket, playerID string) (RoomSnapshot, error) {
	if m.tickets == nil {
		return RoomSnapshot{}, ErrInvalidTicket
	}
	seat, err := m.tickets.Verify(ticket, m.now())
	if err != nil {
		return RoomSnapshot{}, err
	}
	if seat.PlayerID != playerID {
		return RoomSnapshot{}, ErrInvalidTicket
	}
	e, err := m.entry(seat.RoomID)
	if err != nil {
		return RoomSnapshot{}, err
	}
	defer e.mu.Unlock()
	if e.room.Player(playerID) == nil {
		return RoomSnapshot{}, ErrNotInRoom
	}
	return snapshotRoom(e.room), nil
}

// TrustScore reports the anti-cheat score of a player in a running game.
func (m *RoomManager) TrustScore(roomID, playerID string) (float64, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	if e.session == nil {
		return 100, nil
	}
	return e.session.TrustScore(playerID), nil
}
