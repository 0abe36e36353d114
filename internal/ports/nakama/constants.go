package nakama

import "ludo/internal/app"

const (
	// RPC ids exposed to clients.
	RpcCreateRoom       = "create_room"
	RpcJoinRoom         = "join_room"
	RpcListRooms        = "list_rooms"
	RpcReconnectAttempt = "reconnect_attempt"

	// MatchNameLudo is the authoritative match handler name registered with Nakama.
	MatchNameLudo = "ludo_room"

	// MatchTickRate is the number of match loop ticks per second.
	MatchTickRate = 5

	// matchParamRoomID carries the room id from MatchCreate into MatchInit.
	matchParamRoomID = "room_id"
	// joinMetaPassword carries the room password on a match join.
	joinMetaPassword = "password"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpLeaveRoom int64 = 1
	OpStartGame int64 = 2
	OpReady     int64 = 3
	OpRollDice  int64 = 4
	OpMoveToken int64 = 5
	OpChat      int64 = 6
	OpPing      int64 = 7

	// Server -> Client events
	OpRoomJoined         int64 = 101
	OpPlayerJoined       int64 = 102
	OpPlayerLeft         int64 = 103
	OpPlayerReady        int64 = 104
	OpGameStarted        int64 = 105
	OpTurnStarted        int64 = 106
	OpDiceRolled         int64 = 107
	OpExtraTurn          int64 = 108
	OpTokenMoved         int64 = 109
	OpTokenCaptured      int64 = 110
	OpPlayerWon          int64 = 111
	OpGameEnded          int64 = 112
	OpTurnSkipped        int64 = 113
	OpTurnTimeout        int64 = 114
	OpPlayerDisconnected int64 = 115
	OpPlayerReconnected  int64 = 116
	OpChatMessage        int64 = 117
	OpError              int64 = 118
	OpPong               int64 = 119
	OpRoomCreated        int64 = 120
)

var eventOpCodes = map[app.EventKind]int64{
	app.EventRoomCreated:        OpRoomCreated,
	app.EventRoomJoined:         OpRoomJoined,
	app.EventPlayerJoined:       OpPlayerJoined,
	app.EventPlayerLeft:         OpPlayerLeft,
	app.EventPlayerReady:        OpPlayerReady,
	app.EventGameStarted:        OpGameStarted,
	app.EventTurnStarted:        OpTurnStarted,
	app.EventDiceRolled:         OpDiceRolled,
	app.EventExtraTurn:          OpExtraTurn,
	app.EventTokenMoved:         OpTokenMoved,
	app.EventTokenCaptured:      OpTokenCaptured,
	app.EventPlayerWon:          OpPlayerWon,
	app.EventGameEnded:          OpGameEnded,
	app.EventTurnSkipped:        OpTurnSkipped,
	app.EventTurnTimeout:        OpTurnTimeout,
	app.EventPlayerDisconnected: OpPlayerDisconnected,
	app.EventPlayerReconnected:  OpPlayerReconnected,
	app.EventChatMessage:        OpChatMessage,
	app.EventError:              OpError,
	app.EventPong:               OpPong,
}
