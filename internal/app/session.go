package app

import (
	"math/rand"
	"time"

	"ludo/internal/domain"
)

// SessionConfig holds the timing rules of a game.
type SessionConfig struct {
	TurnTime         time.Duration
	AutoAdvanceDelay time.Duration
	DisconnectGrace  time.Duration
}

// DefaultSessionConfig returns the standard timings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TurnTime:         30 * time.Second,
		AutoAdvanceDelay: 1500 * time.Millisecond,
		DisconnectGrace:  10 * time.Second,
	}
}

type timerKind int

const (
	timerTurn timerKind = iota + 1
	timerAutoAdvance
	timerDisconnect
)

// deadline is the single pending timer of a session. Arming replaces it.
type deadline struct {
	kind     timerKind
	at       time.Time
	playerID string
	sequence uint64
}

// Session is the turn state machine of one game.
// It is not safe for concurrent use; the owning room's lock serialises it.
type Session struct {
	roomID    string
	cfg       SessionConfig
	security  *Security
	anti      *AntiCheat
	rng       *rand.Rand
	state     *domain.GameState
	connected map[string]bool
	timer     *deadline
}

// NewSession prepares a session for the roster in join order.
// rng picks server-side moves on timeout; nil uses a time-seeded default.
func NewSession(roomID string, roster []*domain.Player, security *Security, cfg SessionConfig, rng *rand.Rand) *Session {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Session{
		roomID:   roomID,
		cfg:      cfg,
		security: security,
		anti:     NewAntiCheat(),
		rng:      rng,
		state: &domain.GameState{
			Phase:  domain.PhaseInitializing,
			Colors: make(map[string]domain.Color, len(roster)),
			Tokens: make(map[string][]*domain.Token, len(roster)),
		},
		connected: make(map[string]bool, len(roster)),
	}
	for _, p := range roster {
		s.state.TurnOrder = append(s.state.TurnOrder, p.ID)
		s.state.Colors[p.ID] = p.Color
		s.connected[p.ID] = p.Connected
	}
	return s
}

// Initialize deals home tokens, fixes the turn order and starts the first turn.
func (s *Session) Initialize(now time.Time) []Event {
	g := s.state
	for _, id := range g.TurnOrder {
		g.Tokens[id] = domain.NewTokens(id, g.Colors[id])
	}
	g.Phase = domain.PhasePlaying
	g.CurrentTurn = 0
	return s.startTurn(now)
}

func (s *Session) event(kind EventKind, payload any, recipients ...string) Event {
	return Event{Kind: kind, Room: s.roomID, Payload: payload, Recipients: recipients}
}

func (s *Session) arm(kind timerKind, at time.Time, playerID string) {
	s.timer = &deadline{kind: kind, at: at, playerID: playerID, sequence: s.state.MoveSequence}
}

func (s *Session) startTurn(now time.Time) []Event {
	g := s.state
	if len(g.Winners) >= len(g.TurnOrder)-1 {
		return s.endGame(now)
	}

	var events []Event
	n := len(g.TurnOrder)
	for i := 0; i < n; i++ {
		idx := (g.CurrentTurn + i) % n
		id := g.TurnOrder[idx]
		if g.HasWon(id) {
			continue
		}
		if !s.connected[id] {
			events = append(events, s.event(EventTurnSkipped, TurnSkippedPayload{PlayerID: id, Reason: SkipDisconnected}))
			continue
		}

		g.CurrentTurn = idx
		g.ResetTurn()
		g.Paused = false
		g.MoveSequence++
		g.TurnDeadline = now.Add(s.cfg.TurnTime)
		s.arm(timerTurn, g.TurnDeadline, id)
		return append(events, s.event(EventTurnStarted, TurnStartedPayload{
			PlayerID: id,
			Timeout:  s.cfg.TurnTime,
			Deadline: g.TurnDeadline,
			Sequence: g.MoveSequence,
		}))
	}

	// Nobody who can play is connected. Wait for a reconnection.
	g.ResetTurn()
	g.Paused = true
	g.TurnDeadline = time.Time{}
	s.timer = nil
	return events
}

func (s *Session) advanceTurn(now time.Time) []Event {
	g := s.state
	g.CurrentTurn = (g.CurrentTurn + 1) % len(g.TurnOrder)
	return s.startTurn(now)
}

func (s *Session) playable() bool {
	return s.state.Phase == domain.PhasePlaying && !s.state.Paused
}

// HandleDiceRoll rolls for the active player and offers the resulting moves.
// Turn ownership is checked before the already-rolled state, so a player
// acting out of turn always gets ErrNotYourTurn.
func (s *Session) HandleDiceRoll(playerID string, now time.Time) ([]Event, error) {
	g := s.state
	if !s.playable() {
		return nil, ErrGameNotPlaying
	}
	if g.CurrentPlayer() != playerID {
		return nil, ErrNotYourTurn
	}
	if g.DiceRolled {
		return nil, ErrAlreadyRolled
	}

	value, err := s.security.RollDice()
	if err != nil {
		return nil, err
	}
	g.DiceRolled = true
	g.DiceValue = value
	g.MovesAvailable = domain.AvailableMoves(g.Tokens, playerID, value)

	events := []Event{s.event(EventDiceRolled, s.rollPayload(playerID))}
	events = append(events, s.observe(playerID, s.anti.LogAction(playerID, ActionDiceRoll, value, now))...)

	if len(g.MovesAvailable) == 0 {
		s.arm(timerAutoAdvance, now.Add(s.cfg.AutoAdvanceDelay), playerID)
	}
	return events, nil
}

func (s *Session) rollPayload(playerID string) DiceRolledPayload {
	g := s.state
	return DiceRolledPayload{
		PlayerID:  playerID,
		Value:     g.DiceValue,
		Moves:     append([]domain.Move(nil), g.MovesAvailable...),
		Signature: s.security.SignRoll(playerID, g.DiceValue, g.MoveSequence),
		Sequence:  g.MoveSequence,
	}
}

// HandleMove applies a signed move for the active player.
// On integrity violations the returned events carry any resulting ban decision.
func (s *Session) HandleMove(playerID string, req MoveTokenRequest, now time.Time) ([]Event, error) {
	return s.move(playerID, req, false, now)
}

func (s *Session) move(playerID string, req MoveTokenRequest, auto bool, now time.Time) ([]Event, error) {
	g := s.state
	if !s.playable() {
		return nil, ErrGameNotPlaying
	}
	if !g.DiceRolled {
		return nil, ErrDiceNotRolled
	}
	if g.CurrentPlayer() != playerID {
		return nil, ErrNotYourTurn
	}
	if !s.security.VerifyRoll(playerID, g.DiceValue, g.MoveSequence, req.Signature) {
		v := s.anti.Flag(playerID, FlagInvalidSignature, map[string]any{"token": req.Move.TokenID, "sequence": g.MoveSequence}, now)
		return s.observe(playerID, v), ErrInvalidSignature
	}

	var chosen *domain.Move
	for i := range g.MovesAvailable {
		if g.MovesAvailable[i].TokenID == req.Move.TokenID {
			chosen = &g.MovesAvailable[i]
			break
		}
	}
	if chosen == nil {
		v := s.anti.Flag(playerID, FlagInvalidMove, map[string]any{"token": req.Move.TokenID, "dice": g.DiceValue}, now)
		return s.observe(playerID, v), ErrInvalidMove
	}

	var observed []Event
	if !auto {
		observed = s.observe(playerID, s.anti.LogAction(playerID, ActionMove, 0, now))
	}
	events := s.applyMove(playerID, *chosen, auto, now)
	return append(events, observed...), nil
}

func (s *Session) applyMove(playerID string, m domain.Move, auto bool, now time.Time) []Event {
	g := s.state
	token, err := domain.ApplyMove(g.Tokens, playerID, m)
	if err != nil {
		// Moves are computed from the same token set, so this is unreachable.
		return nil
	}

	events := make([]Event, 0, len(m.Captures)+2)
	for _, c := range m.Captures {
		events = append(events, s.event(EventTokenCaptured, TokenCapturedPayload{
			Attacker: playerID,
			Victim:   c.Owner,
			TokenID:  c.TokenID,
		}))
	}
	events = append(events, s.event(EventTokenMoved, TokenMovedPayload{
		PlayerID: playerID,
		TokenID:  token.ID,
		Kind:     m.Kind,
		From:     m.From,
		To:       m.To,
		Pos:      token.Pos,
		Status:   token.Status,
		Dice:     g.DiceValue,
		Sequence: g.MoveSequence,
		Auto:     auto,
	}))

	justWon := false
	if domain.AllFinished(g.Tokens[playerID]) && !g.HasWon(playerID) {
		g.Winners = append(g.Winners, playerID)
		justWon = true
		events = append(events, s.event(EventPlayerWon, PlayerWonPayload{PlayerID: playerID, Rank: len(g.Winners)}))
	}
	if len(g.Winners) >= len(g.TurnOrder)-1 {
		return append(events, s.endGame(now)...)
	}

	if g.DiceValue == domain.EnterRoll && !justWon && !domain.AllHome(g.Tokens[playerID]) {
		g.ResetTurn()
		g.MoveSequence++
		g.TurnDeadline = now.Add(s.cfg.TurnTime)
		s.arm(timerTurn, g.TurnDeadline, playerID)
		return append(events, s.event(EventExtraTurn, ExtraTurnPayload{
			PlayerID: playerID,
			Sequence: g.MoveSequence,
			Deadline: g.TurnDeadline,
		}))
	}
	return append(events, s.advanceTurn(now)...)
}

// HandleTurnTimeout runs when the active player's deadline passes. With moves
// on offer the server plays a random one; otherwise the turn is skipped.
func (s *Session) HandleTurnTimeout(playerID string, now time.Time) []Event {
	g := s.state
	if !s.playable() || g.CurrentPlayer() != playerID {
		return nil
	}

	if g.DiceRolled && len(g.MovesAvailable) > 0 {
		pick := g.MovesAvailable[s.rng.Intn(len(g.MovesAvailable))]
		req := MoveTokenRequest{
			Move:      MoveRequest{TokenID: pick.TokenID},
			Signature: s.security.SignRoll(playerID, g.DiceValue, g.MoveSequence),
		}
		events := []Event{s.event(EventTurnTimeout, TurnTimeoutPayload{PlayerID: playerID, AutoMove: true})}
		moved, err := s.move(playerID, req, true, now)
		if err == nil {
			return append(events, moved...)
		}
	}

	events := []Event{
		s.event(EventTurnTimeout, TurnTimeoutPayload{PlayerID: playerID}),
		s.event(EventTurnSkipped, TurnSkippedPayload{PlayerID: playerID, Reason: SkipTimeout}),
	}
	return append(events, s.advanceTurn(now)...)
}

// HandlePlayerDisconnect marks the player offline. Tokens and turn position
// are kept; an active turn gets a short grace period before it is skipped.
func (s *Session) HandlePlayerDisconnect(playerID string, now time.Time) []Event {
	if connected, ok := s.connected[playerID]; !ok || !connected {
		return nil
	}
	s.connected[playerID] = false
	events := []Event{s.event(EventPlayerDisconnected, PlayerDisconnectedPayload{PlayerID: playerID})}
	if s.playable() && s.state.CurrentPlayer() == playerID {
		s.arm(timerDisconnect, now.Add(s.cfg.DisconnectGrace), playerID)
	}
	return events
}

// HandlePlayerReconnection marks the player online, resumes a paused game and
// pushes the full state. A pending roll is re-sent to the player alone.
func (s *Session) HandlePlayerReconnection(playerID string, now time.Time) []Event {
	if _, ok := s.connected[playerID]; !ok {
		return nil
	}
	s.connected[playerID] = true
	g := s.state

	var events []Event
	if g.Phase == domain.PhasePlaying {
		if g.Paused {
			events = s.startTurn(now)
		} else if g.CurrentPlayer() == playerID && s.timer != nil && s.timer.kind == timerDisconnect {
			if g.DiceRolled && len(g.MovesAvailable) == 0 {
				s.arm(timerAutoAdvance, now.Add(s.cfg.AutoAdvanceDelay), playerID)
			} else {
				if !g.TurnDeadline.After(now) {
					g.TurnDeadline = now.Add(s.cfg.TurnTime)
				}
				s.arm(timerTurn, g.TurnDeadline, playerID)
			}
		}
	}

	out := []Event{s.event(EventPlayerReconnected, PlayerReconnectedPayload{
		PlayerID: playerID,
		Game:     s.Snapshot(),
	})}
	out = append(out, events...)
	if s.playable() && g.CurrentPlayer() == playerID && g.DiceRolled && len(g.MovesAvailable) > 0 {
		out = append(out, s.event(EventDiceRolled, s.rollPayload(playerID), playerID))
	}
	return out
}

// ObserveChat feeds a chat action to the heuristics.
func (s *Session) ObserveChat(playerID string, now time.Time) []Event {
	if _, ok := s.connected[playerID]; !ok {
		return nil
	}
	return s.observe(playerID, s.anti.LogAction(playerID, ActionChat, 0, now))
}

// ObserveThrottled records an action the room refused for exceeding its rate.
func (s *Session) ObserveThrottled(playerID string, now time.Time) []Event {
	if _, ok := s.connected[playerID]; !ok {
		return nil
	}
	return s.observe(playerID, s.anti.LogAction(playerID, ActionThrottled, 0, now))
}

func (s *Session) observe(playerID string, v Verdict) []Event {
	if !v.Banned {
		return nil
	}
	return []Event{s.event(EventBanDecision, BanDecisionPayload{
		PlayerID: playerID,
		Reason:   BanReasonMultipleViolations,
		Flags:    s.anti.Flags(playerID),
	})}
}

// Tick fires the pending timer if it is due.
func (s *Session) Tick(now time.Time) []Event {
	t := s.timer
	if t == nil || now.Before(t.at) || s.state.Phase != domain.PhasePlaying {
		return nil
	}
	s.timer = nil
	if t.sequence != s.state.MoveSequence || s.state.CurrentPlayer() != t.playerID {
		return nil
	}

	switch t.kind {
	case timerTurn:
		return s.HandleTurnTimeout(t.playerID, now)
	case timerAutoAdvance:
		events := []Event{s.event(EventTurnSkipped, TurnSkippedPayload{PlayerID: t.playerID, Reason: SkipNoMoves})}
		return append(events, s.advanceTurn(now)...)
	case timerDisconnect:
		if s.connected[t.playerID] {
			return nil
		}
		events := []Event{s.event(EventTurnSkipped, TurnSkippedPayload{PlayerID: t.playerID, Reason: SkipDisconnected})}
		return append(events, s.advanceTurn(now)...)
	}
	return nil
}

func (s *Session) endGame(now time.Time) []Event {
	g := s.state
	s.timer = nil
	for _, id := range g.TurnOrder {
		if !g.HasWon(id) {
			g.Winners = append(g.Winners, id)
		}
	}
	g.Phase = domain.PhaseFinished
	g.ResetTurn()
	g.TurnDeadline = time.Time{}
	return []Event{s.event(EventGameEnded, GameEndedPayload{
		Winners: append([]string(nil), g.Winners...),
		Final:   s.Snapshot(),
	})}
}

// Forfeit ends the game early. Unfinished players in remaining are ranked
// ahead of everyone else.
func (s *Session) Forfeit(remaining []string, now time.Time) []Event {
	g := s.state
	if g.Phase != domain.PhasePlaying {
		return nil
	}
	keep := make(map[string]bool, len(remaining))
	for _, id := range remaining {
		keep[id] = true
	}
	for _, id := range g.TurnOrder {
		if keep[id] && !g.HasWon(id) {
			g.Winners = append(g.Winners, id)
		}
	}
	return s.endGame(now)
}

// Stop cancels the pending timer without emitting anything.
func (s *Session) Stop() {
	s.timer = nil
}

// Finished reports whether the game reached its terminal phase.
func (s *Session) Finished() bool {
	return s.state.Phase == domain.PhaseFinished
}

// NextDeadline returns when the pending timer fires, or the zero time.
func (s *Session) NextDeadline() time.Time {
	if s.timer == nil {
		return time.Time{}
	}
	return s.timer.at
}

// Snapshot returns a value copy of the observable state.
func (s *Session) Snapshot() GameSnapshot {
	return snapshotGame(s.state, s.connected)
}

// TrustScore exposes the anti-cheat score of a player.
func (s *Session) TrustScore(playerID string) float64 {
	return s.anti.TrustScore(playerID)
}
