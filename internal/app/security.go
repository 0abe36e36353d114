package app

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Security signs and verifies move authorisations and rolls dice.
// The secret is read-only after construction, so one instance serves every room.
type Security struct {
	secret  []byte
	entropy io.Reader
}

// NewSecurity constructs a Security keyed with secret.
// An empty secret is replaced by 32 random bytes; entropy may be nil for crypto/rand.
func NewSecurity(secret string, entropy io.Reader) (*Security, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate game secret: %w", err)
		}
	}
	return &Security{secret: key, entropy: entropy}, nil
}

// RoomSeed is an auditable per-room identifier. It is never a dice source.
func (s *Security) RoomSeed(roomID string, createdAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(roomID))
	h.Write([]byte(":"))
	h.Write([]byte(strconv.FormatInt(createdAt.UnixMilli(), 10)))
	h.Write([]byte(":"))
	h.Write(s.secret)
	return hex.EncodeToString(h.Sum(nil))
}

// RollDice returns a uniform value in 1..6.
// Bytes at or above 252 are rejected so every face has 42 of the 252 accepted values.
func (s *Security) RollDice() (int, error) {
	var b [1]byte
	for {
		if _, err := io.ReadFull(s.entropy, b[:]); err != nil {
			return 0, fmt.Errorf("failed to read dice entropy: %w", err)
		}
		if b[0] < 252 {
			return int(b[0]%6) + 1, nil
		}
	}
}

// Sign returns the hex HMAC-SHA256 of playerID:payload:sequence.
func (s *Security) Sign(playerID string, payload []byte, sequence uint64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(playerID))
	mac.Write([]byte(":"))
	mac.Write(payload)
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatUint(sequence, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time.
func (s *Security) Verify(playerID string, payload []byte, sequence uint64, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(playerID, payload, sequence))
	return hmac.Equal(got, want)
}

type rollPayload struct {
	Dice int `json:"dice"`
}

// SignRoll signs the authorisation to move with the given dice value.
func (s *Security) SignRoll(playerID string, dice int, sequence uint64) string {
	return s.Sign(playerID, encodeRoll(dice), sequence)
}

// VerifyRoll checks a signature produced by SignRoll.
func (s *Security) VerifyRoll(playerID string, dice int, sequence uint64, signature string) bool {
	return s.Verify(playerID, encodeRoll(dice), sequence, signature)
}

func encodeRoll(dice int) []byte {
	b, _ := json.Marshal(rollPayload{Dice: dice})
	return b
}
