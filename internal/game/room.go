// internal/game/room.go
package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openrally/rally/internal/protocol"
)

// RoomStatus tracks the room lifecycle: waiting (pre-serve), running (tick
// loop live), ended (torn down, rejects all further input).
type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusRunning RoomStatus = "running"
	StatusEnded   RoomStatus = "ended"
)

// Room end reasons surfaced in ROOM_ENDED payloads.
const ReasonPlayerDisconnect = "player_disconnect"

// SendFunc delivers an envelope to one participant. The room layer never
// touches connections directly; the orchestrator wires this to the registry.
type SendFunc func(playerID uuid.UUID, env protocol.Envelope)

// Room is one isolated two-player match. Players is an ordered pair fixed
// for the room's lifetime; Players[0] serves first. The mutex serializes
// the tick goroutine against both players' message handlers; rooms share
// nothing, so concurrent matches never contend.
type Room struct {
	ID      uuid.UUID
	Players [2]uuid.UUID

	Mu     sync.Mutex
	Status RoomStatus
	State  *SimState

	// Send delivers outbound frames; OnEnd is invoked once after teardown
	// so the store can drop the room.
	Send  SendFunc
	OnEnd func(roomID uuid.UUID)

	rng        *rand.Rand
	loopCancel context.CancelFunc
}

// NewRoom builds a waiting room with a fresh pre-serve simulation state.
func NewRoom(players [2]uuid.UUID, send SendFunc) *Room {
	return &Room{
		ID:      uuid.New(),
		Players: players,
		Status:  StatusWaiting,
		State:   NewSimState(players),
		Send:    send,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// HasPlayer reports membership.
func (r *Room) HasPlayer(id uuid.UUID) bool {
	return r.Players[0] == id || r.Players[1] == id
}

// Peer returns the other player of the pair.
func (r *Room) Peer(id uuid.UUID) uuid.UUID {
	if r.Players[0] == id {
		return r.Players[1]
	}
	return r.Players[0]
}

// AnnounceCreated sends ROOM_CREATED followed by the initial pre-serve
// GAME_STATE to both players. Lobby-wide presence is unaffected; only the
// two participants learn about the room.
func (r *Room) AnnounceCreated() {
	created := protocol.NewEnvelope(protocol.TypeRoomCreated, protocol.RoomCreatedPayload{
		RoomID:  r.ID.String(),
		Players: []string{r.Players[0].String(), r.Players[1].String()},
	})
	r.Mu.Lock()
	state := r.statePayloadLocked()
	r.Mu.Unlock()
	stateEnv := protocol.NewEnvelope(protocol.TypeGameState, state)
	for _, pid := range r.Players {
		r.Send(pid, created)
		r.Send(pid, stateEnv)
	}
}

// Serve launches the ball. Only the participant currently holding the serve
// may trigger it, and only while the room is not ended. The first serve
// starts the room's tick goroutine; the goroutine persists across score
// cycles and stops only at teardown.
func (r *Room) Serve(playerID uuid.UUID) {
	r.Mu.Lock()
	if r.Status == StatusEnded || !r.HasPlayer(playerID) || r.State.ServeID != playerID {
		r.Mu.Unlock()
		return
	}
	started := r.ensureLoopLocked()
	if !r.State.Running {
		r.State.PinBallTo(playerID)
	}
	r.State.LaunchServe(playerID, r.rng)
	state := r.statePayloadLocked()
	r.Mu.Unlock()

	if started {
		startEnv := protocol.NewEnvelope(protocol.TypeStartGame, protocol.StartGamePayload{RoomID: r.ID.String()})
		for _, pid := range r.Players {
			r.Send(pid, startEnv)
		}
	}
	// Immediate broadcast so clients see the launch before the next tick.
	r.broadcastState(state)
}

// ApplyInput ingests a paddle position report. Invalid references (ended
// room, non-member) are dropped. While the room is waiting the server's
// paddle drags the ball with it and every update broadcasts authoritative
// state out-of-band so the opponent sees pre-serve positioning promptly.
// Returns true when the input was accepted and should be relayed to the
// peer for immediate local feedback.
func (r *Room) ApplyInput(playerID uuid.UUID, x float64, ts int64) bool {
	r.Mu.Lock()
	if r.Status == StatusEnded {
		r.Mu.Unlock()
		return false
	}
	p, ok := r.State.Paddles[playerID]
	if !ok {
		r.Mu.Unlock()
		return false
	}
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	p.Move(x, ts)
	var state *protocol.GameStatePayload
	if !r.State.Running {
		if r.State.ServeID == playerID {
			r.State.PinBallTo(playerID)
		}
		s := r.statePayloadLocked()
		state = &s
	}
	r.Mu.Unlock()

	if state != nil {
		r.broadcastState(*state)
	}
	return true
}

// Teardown ends the room: stops the tick goroutine, marks the room ended
// and broadcasts ROOM_ENDED with either a winner or a reason. Idempotent;
// the second call is a no-op.
func (r *Room) Teardown(winner uuid.UUID, reason string) {
	r.Mu.Lock()
	if r.Status == StatusEnded {
		r.Mu.Unlock()
		return
	}
	r.Status = StatusEnded
	r.State.Running = false
	if r.loopCancel != nil {
		r.loopCancel()
		r.loopCancel = nil
	}
	r.Mu.Unlock()

	payload := protocol.RoomEndedPayload{RoomID: r.ID.String(), Reason: reason}
	if winner != uuid.Nil {
		payload.Winner = winner.String()
		payload.Reason = ""
	}
	env := protocol.NewEnvelope(protocol.TypeRoomEnded, payload)
	for _, pid := range r.Players {
		r.Send(pid, env)
	}
	if r.OnEnd != nil {
		r.OnEnd(r.ID)
	}
}

// ensureLoopLocked starts the tick goroutine if it is not already running.
// Caller holds the room mutex. Returns true on the first start.
func (r *Room) ensureLoopLocked() bool {
	if r.loopCancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.loopCancel = cancel
	r.Status = StatusRunning
	go r.runLoop(ctx)
	return true
}

func (r *Room) runLoop(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick advances the simulation one step and broadcasts the result. A tick
// against a torn-down room is a no-op: teardown cancels the loop context
// and flips Status under the same mutex this holds.
func (r *Room) tick() {
	r.Mu.Lock()
	if r.Status == StatusEnded || !r.State.Running {
		r.Mu.Unlock()
		return
	}

	scorer, scored := r.State.Step(r.Players)
	winner, won := Winner(r.Players, r.State.Scores)
	state := r.statePayloadLocked()
	r.Mu.Unlock()

	if won {
		log.Printf("room %s decided, winner %s", r.ID, winner)
		r.Teardown(winner, "")
		return
	}
	if scored {
		log.Printf("room %s point for %s", r.ID, scorer)
	}
	// Scoring resets to the pre-serve layout inside Step; broadcasting the
	// snapshot immediately (rather than next tick) keeps clients in sync.
	r.broadcastState(state)
}

func (r *Room) statePayloadLocked() protocol.GameStatePayload {
	s := r.State
	paddles := make(map[string]protocol.PaddleState, len(s.Paddles))
	for id, p := range s.Paddles {
		paddles[id.String()] = protocol.PaddleState{X: p.X, Y: p.Y, W: p.W, H: p.H}
	}
	scores := make(map[string]int, len(s.Scores))
	for id, n := range s.Scores {
		scores[id.String()] = n
	}
	return protocol.GameStatePayload{
		RoomID:  r.ID.String(),
		Ball:    protocol.BallState{X: s.Ball.X, Y: s.Ball.Y, VX: s.Ball.VX, VY: s.Ball.VY, R: s.Ball.R},
		Paddles: paddles,
		Scores:  scores,
		Running: s.Running,
		ServeID: s.ServeID.String(),
		Width:   s.Width,
		Height:  s.Height,
	}
}

func (r *Room) broadcastState(state protocol.GameStatePayload) {
	env := protocol.NewEnvelope(protocol.TypeGameState, state)
	for _, pid := range r.Players {
		r.Send(pid, env)
	}
}
