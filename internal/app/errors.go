package app

import "errors"

// Protocol errors are recoverable client mistakes. Integrity errors
// (ErrInvalidSignature, ErrInvalidMove) also flag the player.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrRoomFull           = errors.New("room is full")
	ErrWrongPassword      = errors.New("wrong room password")
	ErrNotInRoom          = errors.New("player is not in this room")
	ErrNotHost            = errors.New("only the host can start the game")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrPlayersNotReady    = errors.New("not every player is ready")
	ErrInvalidCapacity    = errors.New("capacity must be between 2 and 4")
	ErrGameNotPlaying     = errors.New("game is not in progress")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrAlreadyRolled      = errors.New("dice already rolled this turn")
	ErrDiceNotRolled      = errors.New("dice not rolled yet")
	ErrInvalidSignature   = errors.New("move signature does not verify")
	ErrInvalidMove        = errors.New("move is not available")
	ErrChatDisabled       = errors.New("chat is disabled in this room")
	ErrEmptyMessage       = errors.New("chat message is empty")
	ErrRateLimited        = errors.New("too many actions")
	ErrUnknownRequest     = errors.New("unknown request")
	ErrInvalidTicket      = errors.New("invalid seat ticket")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "ROOM_NOT_FOUND"},
	{ErrGameAlreadyStarted, "GAME_ALREADY_STARTED"},
	{ErrRoomFull, "ROOM_FULL"},
	{ErrWrongPassword, "WRONG_PASSWORD"},
	{ErrNotInRoom, "NOT_IN_ROOM"},
	{ErrNotHost, "NOT_HOST"},
	{ErrNotEnoughPlayers, "NOT_ENOUGH_PLAYERS"},
	{ErrPlayersNotReady, "PLAYERS_NOT_READY"},
	{ErrInvalidCapacity, "INVALID_CAPACITY"},
	{ErrGameNotPlaying, "GAME_NOT_PLAYING"},
	{ErrNotYourTurn, "NOT_YOUR_TURN"},
	{ErrAlreadyRolled, "ALREADY_ROLLED"},
	{ErrDiceNotRolled, "DICE_NOT_ROLLED"},
	{ErrInvalidSignature, "INVALID_SIGNATURE"},
	{ErrInvalidMove, "INVALID_MOVE"},
	{ErrChatDisabled, "CHAT_DISABLED"},
	{ErrEmptyMessage, "EMPTY_MESSAGE"},
	{ErrRateLimited, "RATE_LIMITED"},
	{ErrUnknownRequest, "UNKNOWN_REQUEST"},
	{ErrInvalidTicket, "INVALID_TICKET"},
}

// ErrorCode maps an error to the code reported to clients.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL"
}
