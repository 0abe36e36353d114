package ports

import "context"

// BanPort enforces ban decisions against user accounts.
type BanPort interface {
	// BanUsers blocks the given accounts from authenticating again.
	BanUsers(ctx context.Context, userIDs []string) error
}
