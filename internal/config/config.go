package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// GameConfig holds the tunables of the Ludo server.
type GameConfig struct {
	TurnDurationSeconds    int `json:"turn_duration_seconds"`
	AutoAdvanceDelayMillis int `json:"auto_advance_delay_ms"`
	DisconnectGraceSeconds int `json:"disconnect_grace_seconds"`
	RosterGraceSeconds     int `json:"roster_grace_seconds"`
	RoomIdleSeconds        int `json:"room_idle_seconds"`
	ReapIntervalSeconds    int `json:"reap_interval_seconds"`
	DefaultMaxPlayers      int `json:"default_max_players"`
	ChatMaxLength          int `json:"chat_max_length"`
	ActionsPerSecond       int `json:"actions_per_second"`
	TicketTTLHours         int `json:"ticket_ttl_hours"`
	// GameSecret keys move signatures and room seeds. Generated at startup when empty.
	GameSecret string `json:"game_secret"`
	// TicketSecret signs seat tickets. Falls back to GameSecret.
	TicketSecret string `json:"ticket_secret"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() GameConfig {
	return GameConfig{
		TurnDurationSeconds:    30,
		AutoAdvanceDelayMillis: 1500,
		DisconnectGraceSeconds: 10,
		RosterGraceSeconds:     30,
		RoomIdleSeconds:        300,
		ReapIntervalSeconds:    60,
		DefaultMaxPlayers:      4,
		ChatMaxLength:          200,
		ActionsPerSecond:       10,
		TicketTTLHours:         24,
	}
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
// Missing keys keep their default values.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		c := Defaults()
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			cfg = &c
			return
		}

		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			d := Defaults()
			cfg = &d
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or defaults if none was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		d := Defaults()
		return &d
	}
	return cfg
}

// Environment keys read from the Nakama runtime env.
const (
	EnvTurnSeconds        = "ludo_turn_seconds"
	EnvGameSecret         = "ludo_game_secret"
	EnvTicketSecret       = "ludo_ticket_secret"
	EnvRosterGraceSeconds = "ludo_roster_grace_seconds"
	EnvRoomIdleSeconds    = "ludo_room_idle_seconds"
)

// WithEnv returns a copy of c with runtime environment overrides applied.
// Unparseable numbers are ignored.
func (c GameConfig) WithEnv(env map[string]string) GameConfig {
	setInt := func(key string, dst *int) {
		if val, ok := env[key]; ok {
			if i, err := strconv.Atoi(val); err == nil && i > 0 {
				*dst = i
			}
		}
	}
	setInt(EnvTurnSeconds, &c.TurnDurationSeconds)
	setInt(EnvRosterGraceSeconds, &c.RosterGraceSeconds)
	setInt(EnvRoomIdleSeconds, &c.RoomIdleSeconds)
	if val := env[EnvGameSecret]; val != "" {
		c.GameSecret = val
	}
	if val := env[EnvTicketSecret]; val != "" {
		c.TicketSecret = val
	}
	if c.TicketSecret == "" {
		c.TicketSecret = c.GameSecret
	}
	return c
}

func (c GameConfig) TurnDuration() time.Duration {
	return time.Duration(c.TurnDurationSeconds) * time.Second
}

func (c GameConfig) AutoAdvanceDelay() time.Duration {
	return time.Duration(c.AutoAdvanceDelayMillis) * time.Millisecond
}

func (c GameConfig) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceSeconds) * time.Second
}

func (c GameConfig) RosterGrace() time.Duration {
	return time.Duration(c.RosterGraceSeconds) * time.Second
}

func (c GameConfig) RoomIdle() time.Duration {
	return time.Duration(c.RoomIdleSeconds) * time.Second
}

func (c GameConfig) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSeconds) * time.Second
}

func (c GameConfig) TicketTTL() time.Duration {
	return time.Duration(c.TicketTTLHours) * time.Hour
}
