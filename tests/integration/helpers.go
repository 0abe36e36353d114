package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/rtapi"
	"github.com/heroiclabs/nakama-go/v2"
)

const (
	ServerKey = "defaultkey"
	HttpKey   = "defaulthttpkey"
	Host      = "127.0.0.1"
	Port      = 7350
	RPCPort   = 7350
)

// Op codes mirrored from the server module.
const (
	OpStartGame   int64 = 2
	OpReady       int64 = 3
	OpRollDice    int64 = 4
	OpRoomJoined  int64 = 101
	OpPlayerReady int64 = 104
	OpGameStarted int64 = 105
	OpTurnStarted int64 = 106
	OpDiceRolled  int64 = 107
)

type TestClient struct {
	Client  *nakama.Client
	Session *nakama.Session
	Socket  *nakama.Socket
	UserID  string

	frames chan *rtapi.MatchData
}

// RoomTicket is the response of the room RPCs.
type RoomTicket struct {
	RoomID  string `json:"roomId"`
	MatchID string `json:"matchId"`
	Code    string `json:"code"`
	Ticket  string `json:"ticket"`
}

func NewTestClient(t *testing.T) *TestClient {
	client := nakama.NewClient(ServerKey, Host, Port, false)

	// Create unique ID
	deviceID := fmt.Sprintf("test_device_%d", time.Now().UnixNano())

	session, err := client.AuthenticateDevice(context.Background(), deviceID, true, "")
	if err != nil {
		t.Fatalf("Failed to authenticate: %v", err)
	}

	socket := client.NewSocket()
	if err := socket.Connect(context.Background(), session, true); err != nil {
		t.Fatalf("Failed to connect socket: %v", err)
	}

	tc := &TestClient{
		Client:  client,
		Session: session,
		Socket:  socket,
		UserID:  session.UserId,
		frames:  make(chan *rtapi.MatchData, 64),
	}
	socket.OnMatchData = func(data *rtapi.MatchData) {
		tc.frames <- data
	}
	return tc
}

func (tc *TestClient) Close() {
	if tc.Socket != nil {
		tc.Socket.Close()
	}
}

// Rpc calls a server RPC and decodes its JSON response into out.
func (tc *TestClient) Rpc(t *testing.T, id string, in interface{}, out interface{}) {
	payload, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Failed to encode %s payload: %v", id, err)
	}
	rpc, err := tc.Client.RpcFunc(context.Background(), tc.Session, id, string(payload))
	if err != nil {
		t.Fatalf("RPC %s failed: %v", id, err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(rpc.Payload), out); err != nil {
			t.Fatalf("RPC %s returned %q: %v", id, rpc.Payload, err)
		}
	}
}

// JoinMatch joins the match serving a room, passing the room password.
func (tc *TestClient) JoinMatch(t *testing.T, matchID, password string) {
	meta := map[string]string{"password": password}
	if _, err := tc.Socket.JoinMatch(context.Background(), nil, matchID, meta); err != nil {
		t.Fatalf("Failed to join match %s: %v", matchID, err)
	}
}

// Send sends a JSON body with the given op code.
func (tc *TestClient) Send(t *testing.T, matchID string, opCode int64, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to encode op %d: %v", opCode, err)
	}
	if _, err := tc.Socket.SendMatchState(context.Background(), matchID, opCode, data, nil); err != nil {
		t.Fatalf("Failed to send op %d: %v", opCode, err)
	}
}

// WaitFor waits for a frame with opCode and decodes it into out, skipping others.
func (tc *TestClient) WaitFor(t *testing.T, opCode int64, timeout time.Duration, out interface{}) {
	deadline := time.After(timeout)
	for {
		select {
		case data := <-tc.frames:
			if data.OpCode != opCode {
				continue
			}
			if out != nil {
				if err := json.Unmarshal(data.Data, out); err != nil {
					t.Fatalf("Op %d body %s: %v", opCode, data.Data, err)
				}
			}
			return
		case <-deadline:
			t.Fatalf("Timeout waiting for OpCode %d", opCode)
		}
	}
}
