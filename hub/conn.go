package hub

import (
	"sync/atomic"

	"github.com/dsemenov/converse/model"
	"github.com/google/uuid"
)

const defaultSendBuffer = 32

// Conn is the hub-side handle for one live websocket session. The hub
// only ever pushes events into the tx channel; the transport layer owns
// the socket itself and drains Events from its writer pump.
type Conn struct {
	id     uuid.UUID
	tx     chan model.ServerEvent
	userID atomic.Pointer[string]
	closed atomic.Bool
}

func NewConn() *Conn {
	return NewConnBuffered(defaultSendBuffer)
}

// NewConnBuffered creates a connection handle with an explicit send
// buffer size. A full buffer makes deliveries to this connection time
// out instead of blocking the dispatcher.
func NewConnBuffered(size int) *Conn {
	return &Conn{
		id: uuid.New(),
		tx: make(chan model.ServerEvent, size),
	}
}

func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Events is drained by the connection's writer pump.
func (c *Conn) Events() <-chan model.ServerEvent {
	return c.tx
}

// SetUserID stamps the identity the client claimed in its last
// join_chat frame. Last writer wins.
func (c *Conn) SetUserID(userID string) {
	c.userID.Store(&userID)
}

func (c *Conn) UserID() string {
	if p := c.userID.Load(); p != nil {
		return *p
	}
	return ""
}

func (c *Conn) isClosed() bool {
	return c.closed.Load()
}
