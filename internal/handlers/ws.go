// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openrally/rally/internal/lobby"
	"github.com/openrally/rally/internal/middleware"
	"github.com/openrally/rally/internal/protocol"
)

// WSHandler upgrades /ws connections, registers a participant and runs the
// read loop until the client goes away. Every connection gets a write pump
// goroutine draining the session's out channel; the read loop owns the
// connection and all inbound dispatch.
func WSHandler(logger *logrus.Logger, srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // LAN party tool; adjust when exposed
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := lobby.NewSession(uuid.Nil, cancel)
		id := srv.Connect(sess)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		go writePump(ctx, c, sess, logger)
		readPump(ctx, c, srv, id, logger)

		// Remove is idempotent with the sweeper racing us; whoever wins
		// runs the room cascade and the presence broadcast.
		srv.Registry.Remove(id)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// readPump consumes frames until the connection closes. Malformed frames
// are dropped without closing the connection.
func readPump(ctx context.Context, c *websocket.Conn, srv *Server, id uuid.UUID, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for %v", id)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("read error for %v: %v", id, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Debugf("dropping unparsable frame from %v: %v", id, err)
			continue
		}
		if !dispatch(srv, id, env, logger) {
			return
		}
	}
}

// dispatch routes one inbound envelope. Returns false when the client asked
// to disconnect and the read loop should exit.
func dispatch(srv *Server, senderID uuid.UUID, env protocol.Envelope, logger *logrus.Logger) bool {
	switch env.Type {
	case protocol.TypeConnect, protocol.TypeJoinLobby:
		var p protocol.JoinPayload
		unmarshalPayload(env.Payload, &p)
		srv.Registry.Join(senderID, strings.TrimSpace(p.Name))

	case protocol.TypeHeartbeat:
		srv.Registry.Heartbeat(senderID)

	case protocol.TypeInvite:
		var p protocol.InvitePayload
		unmarshalPayload(env.Payload, &p)
		targetID, err := uuid.Parse(p.TargetID)
		if err != nil || !srv.Registry.Has(targetID) {
			return true // fail open: sender learns nothing
		}
		relay := protocol.NewEnvelope(protocol.TypeInvite, protocol.InvitePayload{
			TargetID: p.TargetID,
			FromID:   senderID.String(),
		})
		srv.Registry.Send(targetID, relay)
		logger.Infof("invite %v -> %v", senderID, targetID)

	case protocol.TypeInviteResponse:
		var p protocol.InviteResponsePayload
		unmarshalPayload(env.Payload, &p)
		targetID, err := uuid.Parse(p.TargetID)
		if err != nil || !srv.Registry.Has(targetID) {
			return true
		}
		relay := protocol.NewEnvelope(protocol.TypeInviteResponse, protocol.InviteResponsePayload{
			TargetID: p.TargetID,
			FromID:   senderID.String(),
			Accepted: p.Accepted,
		})
		srv.Registry.Send(targetID, relay)
		if p.Accepted {
			// The inviter becomes players[0] and holds the first serve.
			srv.CreateRoom(targetID, senderID)
		}

	case protocol.TypeInput:
		var p protocol.InputPayload
		unmarshalPayload(env.Payload, &p)
		if p.Action != protocol.ActionPaddleMove {
			return true
		}
		roomID, err := uuid.Parse(p.RoomID)
		if err != nil {
			return true
		}
		room, ok := srv.Rooms.GetRoom(roomID)
		if !ok || !room.HasPlayer(senderID) {
			return true
		}
		if room.ApplyInput(senderID, p.X, p.Ts) {
			// Relay to the peer for immediate local feedback, independent
			// of the authoritative snapshots.
			p.FromID = senderID.String()
			srv.Registry.Send(room.Peer(senderID), protocol.NewEnvelope(protocol.TypeInput, p))
		}

	case protocol.TypeServe:
		var p protocol.ServePayload
		unmarshalPayload(env.Payload, &p)
		roomID, err := uuid.Parse(p.RoomID)
		if err != nil {
			return true
		}
		if room, ok := srv.Rooms.GetRoom(roomID); ok {
			room.Serve(senderID)
		}

	case protocol.TypeDisconnect:
		return false

	default:
		logger.Debugf("unknown message type %q from %v", env.Type, senderID)
	}
	return true
}

// writePump drains the session's out channel onto the wire and pings the
// client periodically. Exits on context cancellation or the first failed
// write; the read pump then observes the closure and runs cleanup.
func writePump(ctx context.Context, c *websocket.Conn, sess *lobby.Session, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-sess.Out:
			data, err := json.Marshal(env)
			if err != nil {
				logger.Warnf("failed to marshal outgoing frame for %v: %v", sess.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("write failed for %v: %v", sess.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for %v, assuming disconnect", sess.ID)
				return
			}
		}
	}
}

func unmarshalPayload(data json.RawMessage, v interface{}) {
	if len(data) == 0 {
		return
	}
	// Malformed payloads leave v zero-valued; every dispatch arm treats a
	// zero payload as a referential miss and drops it.
	_ = json.Unmarshal(data, v)
}
