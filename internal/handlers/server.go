// internal/handlers/server.go
package handlers

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openrally/rally/internal/game"
	"github.com/openrally/rally/internal/lobby"
	"github.com/openrally/rally/internal/protocol"
)

// Server is the top-level orchestrator: it owns the participant registry
// and the room store and wires their callbacks together (presence fanout,
// disconnect cascade, room self-removal).
type Server struct {
	Registry *lobby.Registry
	Rooms    *game.RoomStore
	Logger   *logrus.Logger
}

// NewServer builds a server with an empty registry and room store.
func NewServer(logger *logrus.Logger) *Server {
	s := &Server{
		Registry: lobby.NewRegistry(),
		Rooms:    game.NewRoomStore(),
		Logger:   logger,
	}

	// Any registry change pushes the full roster to everyone connected.
	s.Registry.OnPresence = func(snapshot []protocol.ParticipantInfo) {
		env := protocol.NewEnvelope(protocol.TypeParticipants, protocol.ParticipantsPayload{Participants: snapshot})
		s.Registry.Broadcast(env)
	}

	// A removed participant takes every room it belonged to down with it.
	// Teardown is idempotent, so racing with a win broadcast is harmless.
	s.Registry.OnRemove = func(id uuid.UUID) {
		for _, room := range s.Rooms.RoomsWith(id) {
			s.Logger.WithFields(logrus.Fields{
				"room":        room.ID,
				"participant": id,
			}).Info("Tearing down room after disconnect")
			room.Teardown(uuid.Nil, game.ReasonPlayerDisconnect)
		}
	}
	return s
}

// Connect registers a fresh session, acks it with its assigned id and the
// roster as of now, then announces the grown roster to everyone. The ack is
// enqueued before the presence broadcast so the client knows its own id by
// the time the first PARTICIPANTS frame arrives.
func (s *Server) Connect(sess *lobby.Session) uuid.UUID {
	id := s.Registry.Register(sess)
	sess.Send(protocol.NewEnvelope(protocol.TypeConnectAck, protocol.ConnectAckPayload{
		ID:           id.String(),
		Participants: s.Registry.Snapshot(),
	}))
	s.Registry.AnnouncePresence()
	return id
}

// CreateRoom pairs an accepted invitation into a new match. The original
// inviter is players[0] and therefore serves first. Both players receive
// ROOM_CREATED and the initial pre-serve state; the lobby is not notified.
func (s *Server) CreateRoom(inviter, responder uuid.UUID) *game.Room {
	room := game.NewRoom([2]uuid.UUID{inviter, responder}, func(playerID uuid.UUID, env protocol.Envelope) {
		s.Registry.Send(playerID, env)
	})
	room.OnEnd = func(roomID uuid.UUID) {
		s.Rooms.DeleteRoom(roomID)
	}
	s.Rooms.AddRoom(room)
	s.Logger.WithFields(logrus.Fields{
		"room":      room.ID,
		"inviter":   inviter,
		"responder": responder,
	}).Info("Room created")
	room.AnnounceCreated()
	return room
}
