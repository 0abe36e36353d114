package app

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/form3tech-oss/jwt-go"

	"ludo/internal/domain"
)

// Seat is what a ticket proves: a player's seat in a room.
type Seat struct {
	PlayerID string
	RoomID   string
	Color    domain.Color
	Expires  time.Time
}

// TicketService issues and checks HS256 seat tickets handed out on join.
// A ticket lets a player prove its seat on reconnect_attempt.
type TicketService struct {
	secret []byte
	ttl    time.Duration
}

// NewTicketService builds a ticket service. An empty secret is replaced by a
// random one, so tickets do not survive a restart.
func NewTicketService(secret string, ttl time.Duration) (*TicketService, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate ticket secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TicketService{secret: key, ttl: ttl}, nil
}

// Issue signs a ticket for the seat, valid for the configured TTL from now.
func (s *TicketService) Issue(playerID, roomID string, color domain.Color, now time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("ticket service is nil")
	}
	if playerID == "" || roomID == "" {
		return "", fmt.Errorf("player and room are required")
	}

	claims := jwt.MapClaims{
		"sub":   playerID,
		"room":  roomID,
		"color": string(color),
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry of a ticket and returns its seat.
// Every failure is reported as ErrInvalidTicket.
func (s *TicketService) Verify(ticket string, now time.Time) (Seat, error) {
	// Expiry is checked below against now rather than the wall clock.
	parser := &jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return Seat{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Seat{}, ErrInvalidTicket
	}
	if !claims.VerifyExpiresAt(now.Unix(), true) {
		return Seat{}, fmt.Errorf("%w: expired", ErrInvalidTicket)
	}

	seat := Seat{}
	seat.PlayerID, _ = claims["sub"].(string)
	seat.RoomID, _ = claims["room"].(string)
	color, _ := claims["color"].(string)
	seat.Color = domain.Color(color)
	if exp, ok := claims["exp"].(float64); ok {
		seat.Expires = time.Unix(int64(exp), 0)
	}
	if seat.PlayerID == "" || seat.RoomID == "" {
		return Seat{}, fmt.Errorf("%w: missing claims", ErrInvalidTicket)
	}
	return seat, nil
}
