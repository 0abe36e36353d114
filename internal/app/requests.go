package app

// Request is the closed set of inbound actions a room accepts.
// Only types in this file implement it.
type Request interface {
	isRequest()
}

// CreateRoomRequest configures a new room. Zero values take defaults.
type CreateRoomRequest struct {
	GameMode    string
	MaxPlayers  int
	IsPrivate   bool
	Password    string
	DisableChat bool
	TurnSeconds int
}

type JoinRoomRequest struct {
	RoomID   string
	Password string
	Name     string
	Conn     string
}

type LeaveRoomRequest struct{}

type StartGameRequest struct{}

type PlayerReadyRequest struct {
	IsReady bool
}

type DiceRollRequest struct{}

// MoveRequest names the token to move; the rest is taken from server state.
type MoveRequest struct {
	TokenID string
}

type MoveTokenRequest struct {
	Move      MoveRequest
	Signature string
}

type ChatMessageRequest struct {
	Message string
}

type ReconnectRequest struct {
	PlayerID string
	RoomID   string
	Conn     string
}

type PingRequest struct {
	ClientTime int64
}

func (CreateRoomRequest) isRequest()  {}
func (JoinRoomRequest) isRequest()    {}
func (LeaveRoomRequest) isRequest()   {}
func (StartGameRequest) isRequest()   {}
func (PlayerReadyRequest) isRequest() {}
func (DiceRollRequest) isRequest()    {}
func (MoveTokenRequest) isRequest()   {}
func (ChatMessageRequest) isRequest() {}
func (ReconnectRequest) isRequest()   {}
func (PingRequest) isRequest()        {}
