package app

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ludo/internal/domain"
)

// diceSource yields bytes that RollDice maps to the given faces, cycling.
type diceSource struct {
	faces []int
	i     int
}

func (d *diceSource) Read(p []byte) (int, error) {
	for k := range p {
		p[k] = byte(d.faces[d.i%len(d.faces)] - 1)
		d.i++
	}
	return len(p), nil
}

func roster(ids ...string) []*domain.Player {
	out := make([]*domain.Player, len(ids))
	for i, id := range ids {
		out[i] = &domain.Player{ID: id, Color: domain.Colors[i], Connected: true, IsHost: i == 0}
	}
	return out
}

func newTestSession(t *testing.T, faces []int, ids ...string) (*Session, *diceSource) {
	t.Helper()
	dice := &diceSource{faces: faces}
	sec, err := NewSecurity("session-secret", dice)
	require.NoError(t, err)
	s := NewSession("room-1", roster(ids...), sec, DefaultSessionConfig(), rand.New(rand.NewSource(1)))
	events := s.Initialize(t0)
	require.NotEmpty(t, events)
	return s, dice
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func findEvent(events []Event, kind EventKind) (Event, bool) {
	for _, e := range events {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

func countEvents(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func rollFor(t *testing.T, s *Session, playerID string, now time.Time) DiceRolledPayload {
	t.Helper()
	events, err := s.HandleDiceRoll(playerID, now)
	require.NoError(t, err)
	ev, ok := findEvent(events, EventDiceRolled)
	require.True(t, ok)
	return ev.Payload.(DiceRolledPayload)
}

func TestInitializeStartsFirstTurn(t *testing.T) {
	dice := &diceSource{faces: []int{1}}
	sec, err := NewSecurity("k", dice)
	require.NoError(t, err)
	s := NewSession("room-1", roster("a", "b", "c", "d"), sec, DefaultSessionConfig(), nil)

	events := s.Initialize(t0)
	require.Equal(t, []EventKind{EventTurnStarted}, kinds(events))
	p := events[0].Payload.(TurnStartedPayload)
	assert.Equal(t, "a", p.PlayerID)
	assert.Equal(t, uint64(1), p.Sequence)
	assert.Equal(t, t0.Add(30*time.Second), p.Deadline)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhasePlaying, snap.Phase)
	assert.Equal(t, []string{"a", "b", "c", "d"}, snap.TurnOrder)
	assert.Equal(t, 0, snap.CurrentTurn)
	require.Len(t, snap.Tokens, 16)
	for _, tok := range snap.Tokens {
		assert.Equal(t, domain.TokenHome, tok.Status)
		assert.Equal(t, domain.HomeIndex, tok.PathIndex)
	}
}

func TestRollValidation(t *testing.T) {
	s, _ := newTestSession(t, []int{3}, "a", "b")

	_, err := s.HandleDiceRoll("b", t0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}}, t0)
	assert.ErrorIs(t, err, ErrDiceNotRolled)

	rollFor(t, s, "a", t0)
	_, err = s.HandleDiceRoll("a", t0)
	assert.ErrorIs(t, err, ErrAlreadyRolled)
	_, err = s.HandleDiceRoll("b", t0)
	assert.ErrorIs(t, err, ErrNotYourTurn, "turn is checked before the rolled state")
}

func TestEnterOnSixGrantsExtraTurn(t *testing.T) {
	s, _ := newTestSession(t, []int{6}, "a", "b", "c", "d")

	roll := rollFor(t, s, "a", t0)
	require.Equal(t, 6, roll.Value)
	require.Len(t, roll.Moves, 4)
	for _, m := range roll.Moves {
		assert.Equal(t, domain.MoveEnter, m.Kind)
	}

	events, err := s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}, Signature: roll.Signature}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTokenMoved, EventExtraTurn}, kinds(events))

	tok := domain.FindToken(s.state.Tokens["a"], "red-0")
	assert.Equal(t, domain.TokenPlaying, tok.Status)
	assert.Equal(t, 0, tok.PathIndex)
	assert.Equal(t, domain.StartCoord(domain.ColorRed), tok.Pos)
	assert.Equal(t, "a", s.state.CurrentPlayer())
	assert.False(t, s.state.DiceRolled)
	assert.Equal(t, uint64(2), s.state.MoveSequence)
	assert.Equal(t, t0.Add(time.Second+30*time.Second), s.NextDeadline())
}

func TestCaptureOnLanding(t *testing.T) {
	s, _ := newTestSession(t, []int{4}, "a", "b")
	domain.FindToken(s.state.Tokens["a"], "red-0").MoveTo(10)
	victim := domain.FindToken(s.state.Tokens["b"], "green-1")
	victim.MoveTo(1)

	roll := rollFor(t, s, "a", t0)
	require.Len(t, roll.Moves, 1)

	events, err := s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}, Signature: roll.Signature}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTokenCaptured, EventTokenMoved, EventTurnStarted}, kinds(events))

	capture := events[0].Payload.(TokenCapturedPayload)
	assert.Equal(t, TokenCapturedPayload{Attacker: "a", Victim: "b", TokenID: "green-1"}, capture)
	assert.Equal(t, domain.TokenHome, victim.Status)
	assert.Equal(t, domain.HomeIndex, victim.PathIndex)
	assert.Equal(t, "b", s.state.CurrentPlayer())
}

func TestStaleSignatureIsRejected(t *testing.T) {
	s, _ := newTestSession(t, []int{6, 3}, "a", "b")

	first := rollFor(t, s, "a", t0)
	_, err := s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}, Signature: first.Signature}, t0.Add(time.Second))
	require.NoError(t, err)

	second := rollFor(t, s, "a", t0.Add(2*time.Second))
	require.Equal(t, 3, second.Value)
	require.Len(t, second.Moves, 1)
	require.NotEqual(t, first.Sequence, second.Sequence)

	_, err = s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}, Signature: first.Signature}, t0.Add(3*time.Second))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Len(t, s.anti.Flags("a"), 1)

	_, err = s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}, Signature: second.Signature + "00"}, t0.Add(3*time.Second))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// State is untouched by rejected moves.
	assert.Equal(t, 0, domain.FindToken(s.state.Tokens["a"], "red-0").PathIndex)

	_, err = s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}, Signature: second.Signature}, t0.Add(4*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3, domain.FindToken(s.state.Tokens["a"], "red-0").PathIndex)
}

func TestMoveNotOfferedIsFlagged(t *testing.T) {
	s, _ := newTestSession(t, []int{6}, "a", "b")
	roll := rollFor(t, s, "a", t0)

	_, err := s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "green-0"}, Signature: roll.Signature}, t0.Add(time.Second))
	assert.ErrorIs(t, err, ErrInvalidMove)
	flags := s.anti.Flags("a")
	require.Len(t, flags, 1)
	assert.Equal(t, FlagInvalidMove, flags[0].Reason)
	assert.True(t, s.state.DiceRolled, "turn must stay open after a rejected move")
}

func TestBanDecisionReportedOnce(t *testing.T) {
	s, _ := newTestSession(t, []int{6}, "a", "b")
	rollFor(t, s, "a", t0)

	var all []Event
	for i := 0; i < 2; i++ {
		events, err := s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: "red-0"}, Signature: "bad"}, t0)
		require.ErrorIs(t, err, ErrInvalidSignature)
		all = append(all, events...)
	}
	assert.Zero(t, countEvents(all, EventBanDecision))

	for i := 0; i < 15; i++ {
		all = append(all, s.ObserveChat("a", t0.Add(time.Duration(i)*10*time.Millisecond))...)
	}
	require.Equal(t, 1, countEvents(all, EventBanDecision))
	ban, _ := findEvent(all, EventBanDecision)
	p := ban.Payload.(BanDecisionPayload)
	assert.Equal(t, "a", p.PlayerID)
	assert.Equal(t, BanReasonMultipleViolations, p.Reason)
	assert.Len(t, p.Flags, 3)
	assert.Greater(t, len(s.anti.Flags("a")), 3)
}

func TestNoMovesAutoAdvances(t *testing.T) {
	s, _ := newTestSession(t, []int{2}, "a", "b")
	roll := rollFor(t, s, "a", t0)
	require.Empty(t, roll.Moves)
	assert.Equal(t, t0.Add(1500*time.Millisecond), s.NextDeadline())

	assert.Empty(t, s.Tick(t0.Add(time.Second)))
	events := s.Tick(t0.Add(1500 * time.Millisecond))
	assert.Equal(t, []EventKind{EventTurnSkipped, EventTurnStarted}, kinds(events))
	assert.Equal(t, SkipNoMoves, events[0].Payload.(TurnSkippedPayload).Reason)
	assert.Equal(t, "b", s.state.CurrentPlayer())
}

func TestTimeoutWithoutRollSkips(t *testing.T) {
	s, _ := newTestSession(t, []int{2}, "a", "b")

	assert.Empty(t, s.Tick(t0.Add(29*time.Second)))
	events := s.Tick(t0.Add(30 * time.Second))
	assert.Equal(t, []EventKind{EventTurnTimeout, EventTurnSkipped, EventTurnStarted}, kinds(events))
	assert.False(t, events[0].Payload.(TurnTimeoutPayload).AutoMove)
	assert.Equal(t, "b", s.state.CurrentPlayer())
}

func TestTimeoutPlaysRandomLegalMove(t *testing.T) {
	s, _ := newTestSession(t, []int{6}, "a", "b")
	rollFor(t, s, "a", t0)

	events := s.Tick(t0.Add(30 * time.Second))
	assert.Equal(t, []EventKind{EventTurnTimeout, EventTokenMoved, EventExtraTurn}, kinds(events))
	assert.True(t, events[0].Payload.(TurnTimeoutPayload).AutoMove)
	moved := events[1].Payload.(TokenMovedPayload)
	assert.True(t, moved.Auto)
	assert.Equal(t, domain.MoveEnter, moved.Kind)
	assert.Empty(t, s.anti.Flags("a"), "server moves are not held against the player")
}

func TestDisconnectedPlayerSkippedEachRound(t *testing.T) {
	s, _ := newTestSession(t, []int{2}, "a", "b", "c")

	events := s.HandlePlayerDisconnect("a", t0.Add(time.Second))
	require.Equal(t, []EventKind{EventPlayerDisconnected}, kinds(events))
	assert.Empty(t, s.Tick(t0.Add(10*time.Second)))

	events = s.Tick(t0.Add(11 * time.Second))
	require.Equal(t, []EventKind{EventTurnSkipped, EventTurnStarted}, kinds(events))
	assert.Equal(t, TurnSkippedPayload{PlayerID: "a", Reason: SkipDisconnected}, events[0].Payload)
	assert.Equal(t, "b", s.state.CurrentPlayer())

	now := t0.Add(12 * time.Second)
	for _, id := range []string{"b", "c"} {
		require.Equal(t, id, s.state.CurrentPlayer())
		rollFor(t, s, id, now)
		now = now.Add(2 * time.Second)
		events = s.Tick(now)
	}
	// c's skip passes over a without waiting.
	assert.Equal(t, []EventKind{EventTurnSkipped, EventTurnSkipped, EventTurnStarted}, kinds(events))
	assert.Equal(t, "a", events[1].Payload.(TurnSkippedPayload).PlayerID)
	assert.Equal(t, "b", s.state.CurrentPlayer())
}

func TestReconnectWithinGraceKeepsTurn(t *testing.T) {
	s, _ := newTestSession(t, []int{2}, "a", "b")
	s.HandlePlayerDisconnect("a", t0.Add(time.Second))

	events := s.HandlePlayerReconnection("a", t0.Add(5*time.Second))
	require.Equal(t, []EventKind{EventPlayerReconnected}, kinds(events))
	snap := events[0].Payload.(PlayerReconnectedPayload).Game
	assert.True(t, snap.Connected["a"])
	assert.Equal(t, "a", snap.CurrentPlayer)

	assert.Empty(t, s.Tick(t0.Add(11*time.Second)), "grace timer must be cancelled")
	assert.Equal(t, t0.Add(30*time.Second), s.NextDeadline())
}

func TestReconnectResendsPendingRoll(t *testing.T) {
	s, _ := newTestSession(t, []int{6}, "a", "b")
	roll := rollFor(t, s, "a", t0)
	s.HandlePlayerDisconnect("a", t0.Add(time.Second))

	events := s.HandlePlayerReconnection("a", t0.Add(2*time.Second))
	require.Equal(t, []EventKind{EventPlayerReconnected, EventDiceRolled}, kinds(events))
	assert.Equal(t, []string{"a"}, events[1].Recipients)
	assert.Equal(t, roll.Signature, events[1].Payload.(DiceRolledPayload).Signature)
}

func TestAllDisconnectedPausesAndResumes(t *testing.T) {
	s, _ := newTestSession(t, []int{2}, "a", "b")
	s.HandlePlayerDisconnect("b", t0)
	s.HandlePlayerDisconnect("a", t0)

	events := s.Tick(t0.Add(10 * time.Second))
	assert.Equal(t, []EventKind{EventTurnSkipped, EventTurnSkipped, EventTurnSkipped}, kinds(events))
	assert.True(t, s.state.Paused)
	assert.True(t, s.NextDeadline().IsZero())

	_, err := s.HandleDiceRoll("a", t0.Add(11*time.Second))
	assert.ErrorIs(t, err, ErrGameNotPlaying)

	events = s.HandlePlayerReconnection("b", t0.Add(20*time.Second))
	assert.Equal(t, []EventKind{EventPlayerReconnected, EventTurnStarted}, kinds(events))
	assert.False(t, s.state.Paused)
	assert.Equal(t, "b", s.state.CurrentPlayer())
}

func TestWinnerGetsNoExtraTurn(t *testing.T) {
	s, _ := newTestSession(t, []int{6}, "a", "b", "c")
	tokens := s.state.Tokens["a"]
	for _, tok := range tokens[:3] {
		tok.MoveTo(domain.FinishIndex)
	}
	tokens[3].MoveTo(domain.FinishIndex - 6)

	roll := rollFor(t, s, "a", t0)
	require.Len(t, roll.Moves, 1)
	require.Equal(t, domain.MoveFinish, roll.Moves[0].Kind)

	events, err := s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: roll.Moves[0].TokenID}, Signature: roll.Signature}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTokenMoved, EventPlayerWon, EventTurnStarted}, kinds(events))
	assert.Equal(t, PlayerWonPayload{PlayerID: "a", Rank: 1}, events[1].Payload)
	assert.Equal(t, "b", s.state.CurrentPlayer())

	// Winners are passed over in turn order.
	s.state.CurrentTurn = 2
	events = s.advanceTurn(t0.Add(2 * time.Second))
	assert.Equal(t, "b", events[len(events)-1].Payload.(TurnStartedPayload).PlayerID)
}

func TestLastPlayerRankedAutomatically(t *testing.T) {
	s, _ := newTestSession(t, []int{3}, "a", "b")
	tokens := s.state.Tokens["a"]
	for _, tok := range tokens[:3] {
		tok.MoveTo(domain.FinishIndex)
	}
	tokens[3].MoveTo(domain.FinishIndex - 3)

	roll := rollFor(t, s, "a", t0)
	events, err := s.HandleMove("a", MoveTokenRequest{Move: MoveRequest{TokenID: tokens[3].ID}, Signature: roll.Signature}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTokenMoved, EventPlayerWon, EventGameEnded}, kinds(events))

	ended := events[2].Payload.(GameEndedPayload)
	assert.Equal(t, []string{"a", "b"}, ended.Winners)
	assert.Equal(t, domain.PhaseFinished, ended.Final.Phase)
	assert.True(t, s.Finished())
	assert.True(t, s.NextDeadline().IsZero())
	assert.Empty(t, s.Tick(t0.Add(time.Hour)))
}

func TestRandomPlayKeepsInvariants(t *testing.T) {
	sec, err := NewSecurity("sim", nil)
	require.NoError(t, err)
	s := NewSession("room-sim", roster("a", "b", "c", "d"), sec, DefaultSessionConfig(), rand.New(rand.NewSource(7)))
	now := t0
	s.Initialize(now)

	var lastSeq uint64
	for step := 0; step < 20000 && !s.Finished(); step++ {
		before := map[string]domain.Token{}
		for _, tokens := range s.state.Tokens {
			for _, tok := range tokens {
				before[tok.ID] = *tok
			}
		}

		player := s.state.CurrentPlayer()
		now = now.Add(time.Second)
		events, err := s.HandleDiceRoll(player, now)
		require.NoError(t, err)
		roll := events[0].Payload.(DiceRolledPayload)
		if len(roll.Moves) == 0 {
			now = now.Add(2 * time.Second)
			events = s.Tick(now)
		} else {
			now = now.Add(time.Second)
			events, err = s.HandleMove(player, MoveTokenRequest{Move: MoveRequest{TokenID: roll.Moves[0].TokenID}, Signature: roll.Signature}, now)
			require.NoError(t, err)
		}

		captured := map[string]bool{}
		for _, e := range events {
			if e.Kind == EventTokenCaptured {
				captured[e.Payload.(TokenCapturedPayload).TokenID] = true
			}
		}
		for _, tokens := range s.state.Tokens {
			for _, tok := range tokens {
				prev := before[tok.ID]
				if prev.Status == domain.TokenFinished {
					require.Equal(t, domain.TokenFinished, tok.Status, "finished token %s regressed", tok.ID)
				}
				if prev.Status == domain.TokenPlaying && tok.Status == domain.TokenHome {
					require.True(t, captured[tok.ID], "token %s went home without a capture", tok.ID)
				}
				if tok.Status == domain.TokenPlaying {
					want, _ := domain.PathCoord(tok.Color, tok.PathIndex)
					require.Equal(t, want, tok.Pos)
				}
			}
		}
		require.GreaterOrEqual(t, s.state.MoveSequence, lastSeq)
		lastSeq = s.state.MoveSequence
	}
	require.True(t, s.Finished(), "simulated game should finish")
	assert.Len(t, s.state.Winners, 4)
}
