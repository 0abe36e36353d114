package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"ludo/internal/app"
	"ludo/internal/app/identity"
	"ludo/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// GameConfigPath is read relative to the Nakama data directory.
const GameConfigPath = "data/game_config.json"

// managerConfig maps the loaded configuration onto room tunables.
func managerConfig(cfg config.GameConfig) app.ManagerConfig {
	mc := app.DefaultManagerConfig()
	mc.Session = app.SessionConfig{
		TurnTime:         cfg.TurnDuration(),
		AutoAdvanceDelay: cfg.AutoAdvanceDelay(),
		DisconnectGrace:  cfg.DisconnectGrace(),
	}
	mc.RoomIdle = cfg.RoomIdle()
	mc.ReapInterval = cfg.ReapInterval()
	mc.ChatMaxLength = cfg.ChatMaxLength
	mc.ActionsPerSecond = cfg.ActionsPerSecond
	mc.DefaultCapacity = cfg.DefaultMaxPlayers
	return mc
}

// InitModule wires RPCs, hooks and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig(GameConfigPath); err != nil {
		logger.Warn("InitModule: Using default game config: %v", err)
	}
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg := config.GetGameConfig().WithEnv(env)

	security, err := app.NewSecurity(cfg.GameSecret, nil)
	if err != nil {
		return fmt.Errorf("failed to init security: %w", err)
	}
	tickets, err := app.NewTicketService(cfg.TicketSecret, cfg.TicketTTL())
	if err != nil {
		return fmt.Errorf("failed to init tickets: %w", err)
	}

	history := NewNakamaHistoryAdapter(nk)
	recorder := app.NewRecorder(history, 0, func(err error) {
		logger.Warn("Recorder: %v", err)
	})
	rooms := app.NewRoomManager(managerConfig(cfg), security, tickets, recorder)
	guests := identity.NewService(NewNakamaAccountAdapter(nk), history, nil)
	srv := NewServer(cfg, rooms, NewNakamaBanAdapter(nk), guests)

	// Runs for the life of the process; Nakama has no module shutdown hook.
	background := context.Background()
	go recorder.Run(background)
	go rooms.Run(background, func(roomIDs []string) {
		logger.Info("Reaper: Removed %d idle rooms: %v", len(roomIDs), roomIDs)
	})

	if err := srv.RegisterRPCs(initializer); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(srv.AfterAuthenticateDevice); err != nil {
		return err
	}
	if err := initializer.RegisterMatch(MatchNameLudo, srv.NewMatch); err != nil {
		return err
	}

	logger.Info("Ludo Go module loaded (turn %s, %d actions/s).", cfg.TurnDuration(), cfg.ActionsPerSecond)
	return nil
}
