package hub

import "github.com/google/uuid"

// directory is the single source of truth for conversation -> member
// mapping. Rooms exist only while they have members: the first join
// creates a room, removing the last member deletes it.
//
// All methods assume the hub lock is held.
type directory struct {
	rooms map[int64]map[uuid.UUID]*Conn
}

func newDirectory() *directory {
	return &directory{rooms: make(map[int64]map[uuid.UUID]*Conn)}
}

func (d *directory) join(conversationID int64, c *Conn) {
	room, ok := d.rooms[conversationID]
	if !ok {
		room = make(map[uuid.UUID]*Conn)
		d.rooms[conversationID] = room
	}
	room[c.id] = c
}

func (d *directory) leave(conversationID int64, connID uuid.UUID) {
	room, ok := d.rooms[conversationID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(d.rooms, conversationID)
	}
}

// members returns a snapshot of the room's member set, safe to iterate
// after the hub lock is released.
func (d *directory) members(conversationID int64) []*Conn {
	room := d.rooms[conversationID]
	out := make([]*Conn, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

func (d *directory) contains(conversationID int64) bool {
	_, ok := d.rooms[conversationID]
	return ok
}
