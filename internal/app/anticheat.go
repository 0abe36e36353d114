package app

import (
	"strconv"
	"strings"
	"time"
)

// ActionKind classifies entries in a player's action history.
type ActionKind string

const (
	ActionDiceRoll ActionKind = "dice_roll"
	ActionMove     ActionKind = "move"
	ActionChat     ActionKind = "chat"
	// ActionThrottled is an action refused by the room's rate limiter. It
	// counts towards rate checks only.
	ActionThrottled ActionKind = "throttled"
)

// FlagReason names a suspicious behaviour.
type FlagReason string

const (
	FlagRateLimitExceeded FlagReason = "RATE_LIMIT_EXCEEDED"
	FlagSuspiciousAPM     FlagReason = "SUSPICIOUS_APM"
	FlagSuspiciousLuck    FlagReason = "SUSPICIOUS_LUCK"
	FlagPatternDetected   FlagReason = "PATTERN_DETECTED"
	FlagInstantMove       FlagReason = "INSTANT_MOVE"
	FlagInvalidSignature  FlagReason = "INVALID_SIGNATURE"
	FlagInvalidMove       FlagReason = "INVALID_MOVE"
)

const (
	historySize      = 100
	rateWindow       = time.Second
	maxActionsPerWin = 10
	apmWindow        = time.Minute
	maxAPM           = 300
	luckWindow       = 20
	maxSixes         = 10
	minPatternRolls  = 6
	instantMoveLimit = 100 * time.Millisecond
	// BanThreshold is the flag count that triggers a ban decision.
	BanThreshold = 3
)

var suspiciousPatterns = []string{"123456", "111111", "666666", "121212", "123123"}

// Flag is one recorded suspicion against a player.
type Flag struct {
	Reason FlagReason
	Data   map[string]any
	At     time.Time
}

// Verdict reports what a single observation caused.
type Verdict struct {
	Flags []FlagReason
	// Banned is true only on the observation that crossed BanThreshold.
	Banned bool
}

func (v *Verdict) merge(o Verdict) {
	v.Flags = append(v.Flags, o.Flags...)
	v.Banned = v.Banned || o.Banned
}

type actionRecord struct {
	at    time.Time
	kind  ActionKind
	value int
}

type playerRecord struct {
	history []actionRecord
	// recent holds timestamps inside the APM window, independent of history's bound.
	recent []time.Time
	flags  []Flag
	banned bool
}

// AntiCheat observes per-player action streams.
// It is owned by one session and is not safe for concurrent use.
type AntiCheat struct {
	players map[string]*playerRecord
}

// NewAntiCheat returns an empty observer.
func NewAntiCheat() *AntiCheat {
	return &AntiCheat{players: make(map[string]*playerRecord)}
}

func (a *AntiCheat) record(playerID string) *playerRecord {
	rec, ok := a.players[playerID]
	if !ok {
		rec = &playerRecord{}
		a.players[playerID] = rec
	}
	return rec
}

// LogAction appends an action and runs the heuristics. value carries the
// dice face for rolls and is ignored otherwise. Heuristics never block.
func (a *AntiCheat) LogAction(playerID string, kind ActionKind, value int, now time.Time) Verdict {
	rec := a.record(playerID)
	rec.history = append(rec.history, actionRecord{at: now, kind: kind, value: value})
	if len(rec.history) > historySize {
		rec.history = rec.history[len(rec.history)-historySize:]
	}
	rec.recent = append(rec.recent, now)
	for len(rec.recent) > 0 && now.Sub(rec.recent[0]) >= apmWindow {
		rec.recent = rec.recent[1:]
	}
	if len(rec.recent) > 2*maxAPM {
		rec.recent = rec.recent[len(rec.recent)-2*maxAPM:]
	}

	var v Verdict
	v.merge(a.checkRate(playerID, rec, now))
	switch kind {
	case ActionDiceRoll:
		v.merge(a.checkRolls(playerID, rec, now))
	case ActionMove:
		v.merge(a.checkMoveTiming(playerID, rec, now))
	}
	return v
}

func (a *AntiCheat) checkRate(playerID string, rec *playerRecord, now time.Time) Verdict {
	var v Verdict
	inWindow := 0
	for _, at := range rec.recent {
		if now.Sub(at) < rateWindow {
			inWindow++
		}
	}
	inMinute := len(rec.recent)
	if inWindow > maxActionsPerWin {
		v.merge(a.Flag(playerID, FlagRateLimitExceeded, map[string]any{"actions": inWindow, "window_ms": rateWindow.Milliseconds()}, now))
	}
	if inMinute > maxAPM {
		v.merge(a.Flag(playerID, FlagSuspiciousAPM, map[string]any{"apm": inMinute}, now))
	}
	return v
}

func (a *AntiCheat) checkRolls(playerID string, rec *playerRecord, now time.Time) Verdict {
	var rolls []int
	for _, h := range rec.history {
		if h.kind == ActionDiceRoll {
			rolls = append(rolls, h.value)
		}
	}
	if len(rolls) > luckWindow {
		rolls = rolls[len(rolls)-luckWindow:]
	}

	var v Verdict
	sixes := 0
	for _, r := range rolls {
		if r == 6 {
			sixes++
		}
	}
	if len(rolls) == luckWindow && sixes > maxSixes {
		v.merge(a.Flag(playerID, FlagSuspiciousLuck, map[string]any{"sixes": sixes}, now))
	}
	if detectPattern(rolls) {
		v.merge(a.Flag(playerID, FlagPatternDetected, nil, now))
	}
	return v
}

func (a *AntiCheat) checkMoveTiming(playerID string, rec *playerRecord, now time.Time) Verdict {
	if len(rec.history) < 2 {
		return Verdict{}
	}
	prev := rec.history[len(rec.history)-2]
	if prev.kind != ActionDiceRoll {
		return Verdict{}
	}
	if gap := now.Sub(prev.at); gap < instantMoveLimit {
		return a.Flag(playerID, FlagInstantMove, map[string]any{"gap_ms": gap.Milliseconds()}, now)
	}
	return Verdict{}
}

func detectPattern(rolls []int) bool {
	if len(rolls) < minPatternRolls {
		return false
	}
	var sb strings.Builder
	for _, r := range rolls {
		sb.WriteString(strconv.Itoa(r))
	}
	s := sb.String()
	for _, p := range suspiciousPatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Flag records a suspicion. The ban decision is reported once per player.
func (a *AntiCheat) Flag(playerID string, reason FlagReason, data map[string]any, now time.Time) Verdict {
	rec := a.record(playerID)
	rec.flags = append(rec.flags, Flag{Reason: reason, Data: data, At: now})

	v := Verdict{Flags: []FlagReason{reason}}
	if !rec.banned && len(rec.flags) >= BanThreshold {
		rec.banned = true
		v.Banned = true
	}
	return v
}

// Flags returns a copy of the player's flag log.
func (a *AntiCheat) Flags(playerID string) []Flag {
	rec, ok := a.players[playerID]
	if !ok {
		return nil
	}
	return append([]Flag(nil), rec.flags...)
}

// IsBanned reports whether a ban decision was already made for the player.
func (a *AntiCheat) IsBanned(playerID string) bool {
	rec, ok := a.players[playerID]
	return ok && rec.banned
}

// TrustScore is an observability metric and never gates actions.
func (a *AntiCheat) TrustScore(playerID string) float64 {
	rec, ok := a.players[playerID]
	if !ok || len(rec.history) == 0 {
		return 100
	}
	bonus := float64(len(rec.history)) / 10
	if bonus > 10 {
		bonus = 10
	}
	score := 100 - 20*float64(len(rec.flags)) + bonus
	if score < 0 {
		return 0
	}
	return score
}

// Reset forgets everything about a player.
func (a *AntiCheat) Reset(playerID string) {
	delete(a.players, playerID)
}
