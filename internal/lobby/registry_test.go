// internal/lobby/registry_test.go
package lobby

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrally/rally/internal/protocol"
)

func newTestSession() *Session {
	return NewSession(uuid.Nil, func() {})
}

func TestRegisterAssignsIDWithoutBroadcast(t *testing.T) {
	r := NewRegistry()
	var snapshots [][]protocol.ParticipantInfo
	r.OnPresence = func(snap []protocol.ParticipantInfo) {
		snapshots = append(snapshots, snap)
	}

	// Registration is silent; the connect handler acks the session before
	// announcing the roster.
	id1 := r.Register(newTestSession())
	id2 := r.Register(newTestSession())
	require.NotEqual(t, id1, id2)
	require.Empty(t, snapshots)

	r.AnnouncePresence()
	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 2)
	// Names are empty until Join.
	assert.Empty(t, snapshots[0][0].Name)
}

func TestJoinSetsNameAndPlaceholder(t *testing.T) {
	r := NewRegistry()
	id := r.Register(newTestSession())

	r.Join(id, "Alice")
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Alice", snap[0].Name)

	// Blank names get a generated placeholder.
	id2 := r.Register(newTestSession())
	r.Join(id2, "")
	snap = r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "user-"+id2.String()[:8], snap[1].Name)

	// Unknown ids are silently ignored (disconnect raced the join).
	r.Join(uuid.New(), "Ghost")
	assert.Len(t, r.Snapshot(), 2)
}

func TestSnapshotInsertionOrder(t *testing.T) {
	r := NewRegistry()
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = r.Register(newTestSession())
	}
	r.Remove(ids[2])

	snap := r.Snapshot()
	require.Len(t, snap, 4)
	want := []uuid.UUID{ids[0], ids[1], ids[3], ids[4]}
	for i, info := range snap {
		assert.Equal(t, want[i].String(), info.ID)
	}
}

func TestRemoveCascadesAndBroadcasts(t *testing.T) {
	r := NewRegistry()
	var removed []uuid.UUID
	presenceCount := 0
	r.OnRemove = func(id uuid.UUID) { removed = append(removed, id) }
	r.OnPresence = func([]protocol.ParticipantInfo) { presenceCount++ }

	sess := newTestSession()
	id := r.Register(sess)
	require.Equal(t, 0, presenceCount)

	require.True(t, r.Remove(id))
	assert.Equal(t, []uuid.UUID{id}, removed)
	assert.Equal(t, 1, presenceCount)
	assert.False(t, r.Has(id))

	// Removing again is a no-op: no cascade, no broadcast.
	require.False(t, r.Remove(id))
	assert.Len(t, removed, 1)
	assert.Equal(t, 1, presenceCount)
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	r := NewRegistry()
	id := r.Register(newTestSession())

	before := r.Snapshot()[0].LastSeen
	time.Sleep(5 * time.Millisecond)
	r.Heartbeat(id)
	after := r.Snapshot()[0].LastSeen
	assert.GreaterOrEqual(t, after, before)

	// Unknown ids are a no-op.
	r.Heartbeat(uuid.New())
}

func TestRemoveStale(t *testing.T) {
	r := NewRegistry()
	var removed []uuid.UUID
	r.OnRemove = func(id uuid.UUID) { removed = append(removed, id) }

	stale := r.Register(newTestSession())
	time.Sleep(10 * time.Millisecond)
	fresh := r.Register(newTestSession())

	evicted := r.RemoveStale(time.Now().Add(-5 * time.Millisecond))
	assert.Equal(t, []uuid.UUID{stale}, evicted)
	assert.Equal(t, []uuid.UUID{stale}, removed)
	assert.False(t, r.Has(stale))
	assert.True(t, r.Has(fresh))
}

func TestSendAndBroadcast(t *testing.T) {
	r := NewRegistry()
	s1 := newTestSession()
	s2 := newTestSession()
	id1 := r.Register(s1)
	r.Register(s2)

	env := protocol.NewEnvelope(protocol.TypeHeartbeat, nil)
	assert.True(t, r.Send(id1, env))
	assert.False(t, r.Send(uuid.New(), env), "unknown target drops silently")

	r.Broadcast(env)
	assert.Len(t, s1.Out, 2)
	assert.Len(t, s2.Out, 1)
}

func TestSessionSendDropsWhenClosedOrFull(t *testing.T) {
	s := newTestSession()
	env := protocol.NewEnvelope(protocol.TypeHeartbeat, nil)

	for i := 0; i < outBufferSize; i++ {
		require.True(t, s.Send(env))
	}
	assert.False(t, s.Send(env), "full buffer drops instead of blocking")

	s2 := newTestSession()
	s2.Close()
	assert.False(t, s2.Send(env))
	s2.Close() // safe to call twice
}
