package app

// MinPlayersToStartGame defines the minimum roster size required to start a game.
const MinPlayersToStartGame = 2

const (
	// MinCapacity and MaxCapacity bound a room's player count.
	MinCapacity = 2
	MaxCapacity = 4

	DefaultGameMode = "classic"

	// RoomCodeLength is the length of the human-readable join code.
	RoomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// ChatMaxLength is the default maximum chat message length in runes.
	ChatMaxLength = 200

	// BanReasonMultipleViolations is reported with every ban decision.
	BanReasonMultipleViolations = "MULTIPLE_VIOLATIONS"
)
