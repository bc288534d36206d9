// internal/game/room_test.go
package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrally/rally/internal/protocol"
)

// frameSink captures outbound frames per player instead of hitting a
// websocket, in the spirit of a mock broadcaster.
type frameSink struct {
	mu     sync.Mutex
	frames map[uuid.UUID][]protocol.Envelope
}

func newFrameSink() *frameSink {
	return &frameSink{frames: make(map[uuid.UUID][]protocol.Envelope)}
}

func (fs *frameSink) send(pid uuid.UUID, env protocol.Envelope) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frames[pid] = append(fs.frames[pid], env)
}

func (fs *frameSink) byType(pid uuid.UUID, t protocol.MessageType) []protocol.Envelope {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range fs.frames[pid] {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (fs *frameSink) clear() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frames = make(map[uuid.UUID][]protocol.Envelope)
}

func decodeState(t *testing.T, env protocol.Envelope) protocol.GameStatePayload {
	t.Helper()
	var p protocol.GameStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func setupRoom(t *testing.T) (*Room, [2]uuid.UUID, *frameSink) {
	t.Helper()
	players := [2]uuid.UUID{uuid.New(), uuid.New()}
	sink := newFrameSink()
	room := NewRoom(players, sink.send)
	t.Cleanup(func() { room.Teardown(uuid.Nil, "test_cleanup") })
	return room, players, sink
}

func TestAnnounceCreated(t *testing.T) {
	room, players, sink := setupRoom(t)
	room.AnnounceCreated()

	for _, pid := range players {
		created := sink.byType(pid, protocol.TypeRoomCreated)
		require.Len(t, created, 1)
		var payload protocol.RoomCreatedPayload
		require.NoError(t, json.Unmarshal(created[0].Payload, &payload))
		assert.Equal(t, room.ID.String(), payload.RoomID)
		assert.Equal(t, []string{players[0].String(), players[1].String()}, payload.Players)

		states := sink.byType(pid, protocol.TypeGameState)
		require.Len(t, states, 1)
		state := decodeState(t, states[0])
		assert.False(t, state.Running)
		assert.Equal(t, players[0].String(), state.ServeID)
		assert.Zero(t, state.Ball.VX)
		assert.Zero(t, state.Ball.VY)
	}
}

func TestServeRestrictedToServer(t *testing.T) {
	room, players, sink := setupRoom(t)

	// The receiver cannot serve.
	room.Serve(players[1])
	assert.Empty(t, sink.byType(players[1], protocol.TypeStartGame))
	assert.Empty(t, sink.byType(players[0], protocol.TypeGameState))

	// A stranger cannot serve.
	room.Serve(uuid.New())
	assert.Empty(t, sink.byType(players[0], protocol.TypeStartGame))

	room.Serve(players[0])
	for _, pid := range players {
		require.Len(t, sink.byType(pid, protocol.TypeStartGame), 1)
		states := sink.byType(pid, protocol.TypeGameState)
		require.NotEmpty(t, states)
		state := decodeState(t, states[0])
		assert.True(t, state.Running)
		assert.Negative(t, state.Ball.VY, "bottom server launches toward the top edge")
	}
}

func TestSecondServeDoesNotRestartLoop(t *testing.T) {
	room, players, sink := setupRoom(t)
	room.Serve(players[0])

	// Score a point so the serve returns to waiting, then serve again.
	room.Mu.Lock()
	room.State.Running = false
	room.State.ServeID = players[0]
	room.State.PinBallTo(players[0])
	room.Mu.Unlock()
	sink.clear()

	room.Serve(players[0])
	assert.Empty(t, sink.byType(players[0], protocol.TypeStartGame), "START_GAME only fires on the first serve")
	states := sink.byType(players[0], protocol.TypeGameState)
	require.NotEmpty(t, states)
	assert.True(t, decodeState(t, states[0]).Running)
}

func TestTickScoringRotatesServe(t *testing.T) {
	room, players, sink := setupRoom(t)

	room.Mu.Lock()
	room.State.Running = true
	room.State.Ball.X = CourtWidth / 2
	room.State.Ball.Y = room.State.Ball.R + 1
	room.State.Ball.VY = -5
	room.Mu.Unlock()

	room.tick()

	room.Mu.Lock()
	assert.Equal(t, 1, room.State.Scores[players[0]])
	assert.Equal(t, players[0], room.State.ServeID, "scorer serves next")
	assert.False(t, room.State.Running)
	assert.Zero(t, room.State.Ball.VY)
	room.Mu.Unlock()

	// The repositioned ball is broadcast immediately, not on the next tick.
	for _, pid := range players {
		states := sink.byType(pid, protocol.TypeGameState)
		require.NotEmpty(t, states)
		last := decodeState(t, states[len(states)-1])
		assert.False(t, last.Running)
		assert.Equal(t, 1, last.Scores[players[0].String()])
	}
}

func TestTickWinEndsRoom(t *testing.T) {
	room, players, sink := setupRoom(t)
	ended := make(chan uuid.UUID, 1)
	room.OnEnd = func(id uuid.UUID) { ended <- id }

	room.Mu.Lock()
	room.State.Scores[players[0]] = HardCap - 1
	room.State.Running = true
	room.State.Ball.X = CourtWidth / 2
	room.State.Ball.Y = room.State.Ball.R + 1
	room.State.Ball.VY = -5
	room.Mu.Unlock()

	room.tick()

	select {
	case id := <-ended:
		assert.Equal(t, room.ID, id)
	case <-time.After(time.Second):
		t.Fatal("OnEnd was not invoked")
	}

	for _, pid := range players {
		endedFrames := sink.byType(pid, protocol.TypeRoomEnded)
		require.Len(t, endedFrames, 1)
		var payload protocol.RoomEndedPayload
		require.NoError(t, json.Unmarshal(endedFrames[0].Payload, &payload))
		assert.Equal(t, players[0].String(), payload.Winner)
		assert.Empty(t, payload.Reason)
	}

	room.Mu.Lock()
	assert.Equal(t, StatusEnded, room.Status)
	room.Mu.Unlock()
}

func TestTeardownIdempotent(t *testing.T) {
	room, players, sink := setupRoom(t)

	room.Teardown(uuid.Nil, ReasonPlayerDisconnect)
	room.Teardown(uuid.Nil, ReasonPlayerDisconnect)

	for _, pid := range players {
		frames := sink.byType(pid, protocol.TypeRoomEnded)
		require.Len(t, frames, 1, "second teardown is a no-op")
		var payload protocol.RoomEndedPayload
		require.NoError(t, json.Unmarshal(frames[0].Payload, &payload))
		assert.Equal(t, ReasonPlayerDisconnect, payload.Reason)
		assert.Empty(t, payload.Winner)
	}

	// A torn-down room rejects all further input and serves.
	sink.clear()
	assert.False(t, room.ApplyInput(players[0], 100, time.Now().UnixMilli()))
	room.Serve(players[0])
	assert.Empty(t, sink.byType(players[0], protocol.TypeGameState))
}

func TestApplyInputPreServePinsBall(t *testing.T) {
	room, players, sink := setupRoom(t)

	ok := room.ApplyInput(players[0], 40, time.Now().UnixMilli())
	require.True(t, ok)

	states := sink.byType(players[1], protocol.TypeGameState)
	require.NotEmpty(t, states, "pre-serve input broadcasts state out-of-band")
	state := decodeState(t, states[len(states)-1])
	assert.Equal(t, 40.0, state.Paddles[players[0].String()].X)
	assert.Equal(t, 40.0+PaddleWidth/2, state.Ball.X, "ball follows the server's paddle before serve")

	// The receiver moving does not drag the ball.
	sink.clear()
	require.True(t, room.ApplyInput(players[1], 300, time.Now().UnixMilli()))
	states = sink.byType(players[0], protocol.TypeGameState)
	require.NotEmpty(t, states)
	state = decodeState(t, states[len(states)-1])
	assert.Equal(t, 40.0+PaddleWidth/2, state.Ball.X)
}

func TestApplyInputClampsPaddle(t *testing.T) {
	room, players, sink := setupRoom(t)

	require.True(t, room.ApplyInput(players[0], -9999, time.Now().UnixMilli()))
	require.True(t, room.ApplyInput(players[0], 9999, time.Now().UnixMilli()))

	states := sink.byType(players[1], protocol.TypeGameState)
	require.NotEmpty(t, states)
	last := decodeState(t, states[len(states)-1])
	assert.Equal(t, CourtWidth-PaddleWidth, last.Paddles[players[0].String()].X)
}

func TestApplyInputRejectsNonMember(t *testing.T) {
	room, _, _ := setupRoom(t)
	assert.False(t, room.ApplyInput(uuid.New(), 100, time.Now().UnixMilli()))
}

func TestPeer(t *testing.T) {
	room, players, _ := setupRoom(t)
	assert.Equal(t, players[1], room.Peer(players[0]))
	assert.Equal(t, players[0], room.Peer(players[1]))
	assert.True(t, room.HasPlayer(players[0]))
	assert.False(t, room.HasPlayer(uuid.New()))
}
