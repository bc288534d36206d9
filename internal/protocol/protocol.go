// internal/protocol/protocol.go
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType discriminates every frame exchanged over the /ws endpoint.
// Wire values are SCREAMING_SNAKE to match the browser client.
type MessageType string

const (
	// Client -> server.
	TypeConnect        MessageType = "CONNECT"
	TypeJoinLobby      MessageType = "JOIN_LOBBY" // alias of CONNECT kept for older clients
	TypeHeartbeat      MessageType = "HEARTBEAT"
	TypeInvite         MessageType = "INVITE"
	TypeInviteResponse MessageType = "INVITE_RESPONSE"
	TypeInput          MessageType = "INPUT"
	TypeServe          MessageType = "SERVE"
	TypeDisconnect     MessageType = "DISCONNECT"

	// Server -> client.
	TypeConnectAck   MessageType = "CONNECT_ACK"
	TypeParticipants MessageType = "PARTICIPANTS"
	TypeRoomCreated  MessageType = "ROOM_CREATED"
	TypeStartGame    MessageType = "START_GAME"
	TypeGameState    MessageType = "GAME_STATE"
	TypeRoomEnded    MessageType = "ROOM_ENDED"
)

// ActionPaddleMove is the only INPUT action the simulation consumes.
const ActionPaddleMove = "PADDLE_MOVE"

// Envelope is the frame shape shared by both directions: a type tag, a
// server-side timestamp, and a type-specific payload.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope stamps the current time and marshals the payload. Marshal
// errors are swallowed into an empty payload; every payload below is a
// plain struct that cannot fail to encode.
func NewEnvelope(t MessageType, payload interface{}) Envelope {
	env := Envelope{Type: t, Timestamp: time.Now().UTC()}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			env.Payload = data
		}
	}
	return env
}

// ParticipantInfo is one entry of a presence snapshot.
type ParticipantInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastSeen int64  `json:"lastSeen"` // unix millis
}

// JoinPayload carries the display name on CONNECT / JOIN_LOBBY.
type JoinPayload struct {
	Name string `json:"name"`
}

// InvitePayload targets another lobby participant. FromID is filled by the
// server on relay so the recipient knows who is asking.
type InvitePayload struct {
	TargetID string `json:"targetId"`
	FromID   string `json:"fromId,omitempty"`
}

// InviteResponsePayload answers an invitation. TargetID names the original
// inviter; FromID is filled on relay.
type InviteResponsePayload struct {
	TargetID string `json:"targetId"`
	FromID   string `json:"fromId,omitempty"`
	Accepted bool   `json:"accepted"`
}

// InputPayload reports a paddle position. Ts is the client's clock in unix
// millis and is only used to estimate paddle velocity.
type InputPayload struct {
	RoomID string  `json:"roomId"`
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Ts     int64   `json:"ts,omitempty"`
	FromID string  `json:"fromId,omitempty"`
}

// ServePayload launches the ball in a waiting room.
type ServePayload struct {
	RoomID string `json:"roomId"`
}

// ConnectAckPayload acknowledges a new connection with its assigned id and
// the current lobby roster.
type ConnectAckPayload struct {
	ID           string            `json:"id"`
	Participants []ParticipantInfo `json:"participants"`
}

// ParticipantsPayload is a full-state presence snapshot; clients replace
// their roster wholesale on every broadcast.
type ParticipantsPayload struct {
	Participants []ParticipantInfo `json:"participants"`
}

// RoomCreatedPayload announces a new match to its two players. Players[0]
// serves first.
type RoomCreatedPayload struct {
	RoomID  string   `json:"roomId"`
	Players []string `json:"players"`
}

// StartGamePayload signals that the room's simulation loop is live.
type StartGamePayload struct {
	RoomID string `json:"roomId"`
}

// BallState mirrors the simulation's ball for GAME_STATE frames.
type BallState struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	R  float64 `json:"r"`
}

// PaddleState mirrors one paddle for GAME_STATE frames.
type PaddleState struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// GameStatePayload is the authoritative per-tick snapshot sent to both
// room participants.
type GameStatePayload struct {
	RoomID  string                 `json:"roomId"`
	Ball    BallState              `json:"ball"`
	Paddles map[string]PaddleState `json:"paddles"`
	Scores  map[string]int         `json:"scores"`
	Running bool                   `json:"running"`
	ServeID string                 `json:"serveId"`
	Width   float64                `json:"width,omitempty"`
	Height  float64                `json:"height,omitempty"`
}

// RoomEndedPayload closes a match, either with a winner or a reason code
// such as "player_disconnect".
type RoomEndedPayload struct {
	RoomID string `json:"roomId"`
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}
