// Package hub tracks which live websocket connections are subscribed to
// which conversation and fans newly created messages and typing events
// out to exactly those connections.
//
// Delivery is best-effort: a dead or slow member is skipped after a
// bounded timeout and never affects delivery to the remaining members.
// The hub is not a message broker; undelivered events are dropped.
package hub

import (
	"sync"
	"time"

	"github.com/dsemenov/converse/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultSendTimeout = time.Second

type Hub struct {
	mu     sync.Mutex
	reg    *registry
	dir    *directory
	logger zerolog.Logger

	sendTimeout time.Duration
}

type Config struct {
	Logger *zerolog.Logger

	// SendTimeout bounds how long one member's delivery may stall the
	// dispatch loop. Zero means the default.
	SendTimeout time.Duration
}

func New(cfg Config) *Hub {
	timeout := cfg.SendTimeout
	if timeout == 0 {
		timeout = defaultSendTimeout
	}
	return &Hub{
		reg:         newRegistry(),
		dir:         newDirectory(),
		logger:      cfg.Logger.With().Str("component", "hub").Logger(),
		sendTimeout: timeout,
	}
}

// Register adds a newly accepted connection in the open state. It must
// be called before the connection joins any room.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.reg.register(c)
	h.mu.Unlock()

	h.logger.Debug().Stringer("connID", c.id).Msg("connection registered")
}

// Join subscribes the connection to a conversation. Joining a room the
// connection is already in is a no-op.
func (h *Hub) Join(conversationID int64, c *Conn) {
	h.mu.Lock()
	h.dir.join(conversationID, c)
	h.reg.recordJoin(c.id, conversationID)
	h.mu.Unlock()

	h.logger.Debug().
		Stringer("connID", c.id).
		Int64("conversationID", conversationID).
		Msg("connection joined room")
}

// Leave removes the connection from a conversation's room. The room is
// dropped from the directory once its member set becomes empty. Leaving
// a room the connection is not in is a no-op.
func (h *Hub) Leave(conversationID int64, connID uuid.UUID) {
	h.mu.Lock()
	h.dir.leave(conversationID, connID)
	h.reg.recordLeave(connID, conversationID)
	h.mu.Unlock()

	h.logger.Debug().
		Stringer("connID", connID).
		Int64("conversationID", conversationID).
		Msg("connection left room")
}

// Unregister removes the connection from every room it joined and
// drops its registry entry. Called by the transport on socket close.
func (h *Hub) Unregister(connID uuid.UUID) {
	h.mu.Lock()
	if reg, ok := h.reg.conns[connID]; ok {
		reg.conn.closed.Store(true)
	}
	conversations := h.reg.unregister(connID)
	for _, conversationID := range conversations {
		h.dir.leave(conversationID, connID)
	}
	h.mu.Unlock()

	h.logger.Debug().
		Stringer("connID", connID).
		Int("rooms", len(conversations)).
		Msg("connection unregistered")
}

// Members returns a snapshot of the conversation's current member set.
func (h *Hub) Members(conversationID int64) []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir.members(conversationID)
}

// HasRoom reports whether the conversation currently has any members.
func (h *Hub) HasRoom(conversationID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir.contains(conversationID)
}

// Dispatch delivers one event to every current member of the
// conversation's room. Sends are attempted in membership-snapshot order
// with a per-member timeout; a failed member is logged and skipped.
// Dispatch never returns an error, by design.
func (h *Hub) Dispatch(conversationID int64, event model.ServerEvent) {
	h.mu.Lock()
	members := h.dir.members(conversationID)
	h.mu.Unlock()

	if len(members) == 0 {
		h.logger.Debug().
			Int64("conversationID", conversationID).
			Msg("dispatch did not reach anyone")
		return
	}
	for _, c := range members {
		h.send(conversationID, c, event)
	}
}

func (h *Hub) send(conversationID int64, c *Conn, event model.ServerEvent) {
	if c.isClosed() {
		return
	}
	t := time.NewTimer(h.sendTimeout)
	defer t.Stop()
	select {
	case c.tx <- event:
	case <-t.C:
		h.logger.Warn().
			Stringer("connID", c.id).
			Int64("conversationID", conversationID).
			Msg("dead member, event dropped")
	}
}
