package identity

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"ludo/internal/ports"
)

// Result captures non-fatal onboarding outcomes.
type Result struct {
	DisplayName string
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
}

// Service gives newly authenticated guests a name and a user record.
type Service struct {
	accounts ports.AccountPort
	history  ports.HistoryStore
	rng      *rand.Rand
	now      func() time.Time
}

// NewService constructs an identity service.
// accounts/history must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, history ports.HistoryStore, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		history:  history,
		rng:      rng,
		now:      time.Now,
	}
}

// OnboardGuest names a new guest account and stores its user record.
// Returns a Result with any non-fatal issues and an error if the record cannot be saved.
// Side effects: updates the account display name and writes a user record.
func (s *Service) OnboardGuest(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil || s.history == nil {
		return Result{}, fmt.Errorf("identity service not configured")
	}
	if userID == "" {
		return Result{}, fmt.Errorf("user id is required")
	}

	result := Result{DisplayName: s.generateGuestName()}
	if err := s.accounts.UpdateProfile(ctx, userID, result.DisplayName); err != nil {
		// The user record still carries the name.
		result.ProfileUpdateErr = err
	}

	rec := ports.UserRecord{
		ID:          userID,
		DisplayName: result.DisplayName,
		Guest:       true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.history.SaveUser(ctx, rec); err != nil {
		return result, fmt.Errorf("failed to save user %s: %w", userID, err)
	}
	return result, nil
}

func (s *Service) generateGuestName() string {
	adjectives := []string{"Lucky", "Swift", "Brave", "Clever", "Bold", "Calm", "Mighty", "Witty", "Sly", "Wild"}
	nouns := []string{"Pawn", "Tiger", "Eagle", "Dice", "Wolf", "Otter", "Falcon", "Bear", "Fox", "Lion"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
