// internal/lobby/session.go
package lobby

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/openrally/rally/internal/protocol"
)

// outBufferSize bounds the per-session send queue. A client that cannot
// drain 32 frames (~1.5s of GAME_STATE at 20Hz) starts losing frames; every
// broadcast is full-state so a dropped frame is recovered by the next one.
const outBufferSize = 32

// Session is one live WebSocket connection's server-side handle. The read
// pump owns the connection; everything else talks to it through Out, which
// the write pump drains.
type Session struct {
	ID     uuid.UUID
	Out    chan protocol.Envelope
	Cancel func()

	closed atomic.Bool
}

// NewSession allocates a session around a cancel func that stops both pumps.
func NewSession(id uuid.UUID, cancel func()) *Session {
	return &Session{
		ID:     id,
		Out:    make(chan protocol.Envelope, outBufferSize),
		Cancel: cancel,
	}
}

// Send enqueues an envelope without blocking. Frames for closed sessions or
// full buffers are dropped; the caller never learns, by the fail-open policy
// of the wire protocol.
func (s *Session) Send(env protocol.Envelope) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.Out <- env:
		return true
	default:
		return false
	}
}

// Close marks the session dead and cancels its pumps. Safe to call more
// than once. The Out channel is left open for late senders and is reclaimed
// with the session.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		if s.Cancel != nil {
			s.Cancel()
		}
	}
}
