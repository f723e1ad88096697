package hub

import "github.com/google/uuid"

// registry tracks live connections and, per connection, the set of
// conversations it currently belongs to. It is the inverse index of the
// room directory so disconnect cleanup is proportional to the
// connection's own memberships instead of the number of rooms.
//
// All methods assume the hub lock is held. Every operation is total:
// unknown ids behave as already absent.
type registry struct {
	conns map[uuid.UUID]*registration
}

type registration struct {
	conn  *Conn
	rooms map[int64]struct{}
}

func newRegistry() *registry {
	return &registry{conns: make(map[uuid.UUID]*registration)}
}

func (r *registry) register(c *Conn) {
	if _, ok := r.conns[c.id]; ok {
		return
	}
	r.conns[c.id] = &registration{
		conn:  c,
		rooms: make(map[int64]struct{}),
	}
}

func (r *registry) recordJoin(connID uuid.UUID, conversationID int64) {
	if reg, ok := r.conns[connID]; ok {
		reg.rooms[conversationID] = struct{}{}
	}
}

func (r *registry) recordLeave(connID uuid.UUID, conversationID int64) {
	if reg, ok := r.conns[connID]; ok {
		delete(reg.rooms, conversationID)
	}
}

// unregister clears the connection's entry and returns the conversation
// ids it belonged to, so the caller can drive room cleanup.
func (r *registry) unregister(connID uuid.UUID) []int64 {
	reg, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)
	ids := make([]int64, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}
	return ids
}
