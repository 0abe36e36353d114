package ports

import "context"

// AccountPort defines the interface for updating account profiles.
type AccountPort interface {
	// UpdateProfile sets the display name of the given user.
	// Returns an error if the profile update fails.
	UpdateProfile(ctx context.Context, userID, displayName string) error
}
