package nakama

import (
	"context"
	"fmt"

	"ludo/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaBanAdapter implements ports.BanPort with Nakama's user bans.
type NakamaBanAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaBanAdapter creates a new ban adapter.
func NewNakamaBanAdapter(nk runtime.NakamaModule) *NakamaBanAdapter {
	return &NakamaBanAdapter{nk: nk}
}

// BanUsers bans the accounts, which also ends their sessions.
func (a *NakamaBanAdapter) BanUsers(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := a.nk.UsersBanId(ctx, userIDs); err != nil {
		return fmt.Errorf("failed to ban %v: %w", userIDs, err)
	}
	return nil
}

var _ ports.BanPort = (*NakamaBanAdapter)(nil)
