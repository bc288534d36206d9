// internal/lobby/registry.go
package lobby

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openrally/rally/internal/protocol"
)

// Participant is one connected session's lobby entry. Rooms reference
// participants by id only; the registry is the sole owner of these structs.
type Participant struct {
	ID       uuid.UUID
	Name     string
	Session  *Session
	LastSeen time.Time
}

// Registry tracks every connected participant. All mutations are serialized
// behind one mutex; state-change callbacks run after the lock is released so
// they may freely call back into the registry.
type Registry struct {
	mu           sync.Mutex
	participants map[uuid.UUID]*Participant
	order        []uuid.UUID // insertion order, keeps snapshots stable

	// OnPresence receives the full roster after every join, remove and
	// explicit announce. Clients treat each snapshot as a full-state replace.
	OnPresence func(snapshot []protocol.ParticipantInfo)

	// OnRemove is invoked once per removed participant, before the presence
	// broadcast. The room layer hooks this to cascade teardown.
	OnRemove func(id uuid.UUID)
}

// NewRegistry returns an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[uuid.UUID]*Participant),
	}
}

// Register inserts a fresh participant for the given session and returns its
// id. Registration never fails; the name stays empty until Join. No presence
// fires here: the caller acks the new session with its id first, then calls
// AnnouncePresence.
func (r *Registry) Register(sess *Session) uuid.UUID {
	id := uuid.New()
	sess.ID = id

	r.mu.Lock()
	r.participants[id] = &Participant{
		ID:       id,
		Session:  sess,
		LastSeen: time.Now(),
	}
	r.order = append(r.order, id)
	r.mu.Unlock()

	return id
}

// AnnouncePresence pushes the current roster through OnPresence.
func (r *Registry) AnnouncePresence() {
	r.mu.Lock()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.firePresence(snap)
}

// Join sets the display name and refreshes liveness. Blank names get a
// generated placeholder. Unknown ids are ignored: a disconnect raced the
// join and the entry is already gone.
func (r *Registry) Join(id uuid.UUID, name string) {
	r.mu.Lock()
	p, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if len(name) == 0 {
		name = fmt.Sprintf("user-%s", id.String()[:8])
	}
	p.Name = name
	p.LastSeen = time.Now()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.firePresence(snap)
}

// Heartbeat refreshes the liveness timestamp; no-op for unknown ids.
func (r *Registry) Heartbeat(id uuid.UUID) {
	r.mu.Lock()
	if p, ok := r.participants[id]; ok {
		p.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// Remove deletes the participant, closes its session, cascades through
// OnRemove and broadcasts the shrunken roster. Returns false if the id was
// already gone (the whole call is then a no-op).
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	p, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.participants, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	p.Session.Close()
	if r.OnRemove != nil {
		r.OnRemove(id)
	}
	r.firePresence(snap)
	return true
}

// RemoveStale evicts every participant whose last activity predates the
// cutoff, reusing the full Remove path per entry. Returns the evicted ids.
func (r *Registry) RemoveStale(cutoff time.Time) []uuid.UUID {
	r.mu.Lock()
	var stale []uuid.UUID
	for _, id := range r.order {
		if p := r.participants[id]; p != nil && p.LastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.Remove(id)
	}
	return stale
}

// Snapshot returns the roster in insertion order.
func (r *Registry) Snapshot() []protocol.ParticipantInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Send delivers an envelope to one participant's session. Unknown ids are
// dropped silently.
func (r *Registry) Send(id uuid.UUID, env protocol.Envelope) bool {
	r.mu.Lock()
	p, ok := r.participants[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return p.Session.Send(env)
}

// Broadcast fans an envelope out to every connected session.
func (r *Registry) Broadcast(env protocol.Envelope) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.participants))
	for _, p := range r.participants {
		sessions = append(sessions, p.Session)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Send(env)
	}
}

// Has reports whether the id is currently registered.
func (r *Registry) Has(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[id]
	return ok
}

func (r *Registry) snapshotLocked() []protocol.ParticipantInfo {
	snap := make([]protocol.ParticipantInfo, 0, len(r.order))
	for _, id := range r.order {
		p, ok := r.participants[id]
		if !ok {
			continue
		}
		snap = append(snap, protocol.ParticipantInfo{
			ID:       p.ID.String(),
			Name:     p.Name,
			LastSeen: p.LastSeen.UnixMilli(),
		})
	}
	return snap
}

func (r *Registry) firePresence(snap []protocol.ParticipantInfo) {
	if r.OnPresence != nil {
		r.OnPresence(snap)
	}
}
