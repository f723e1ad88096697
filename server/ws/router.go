package ws

import (
	"github.com/dsemenov/converse/hub"
	"github.com/dsemenov/converse/model"
	"github.com/rs/zerolog"
)

// route decodes one inbound frame and applies it to the hub. The
// protocol is stateless between frames; a malformed or unknown frame is
// logged and dropped without touching the connection.
func (srv *Server) route(conn *hub.Conn, msg []byte, logger *zerolog.Logger) {
	frame, err := model.DecodeFrame(msg)
	if err != nil {
		logger.Warn().Err(err).Msg("dropping bad frame")
		return
	}

	switch f := frame.(type) {
	case model.JoinChat:
		// Identity is client-claimed; last join_chat wins.
		conn.SetUserID(f.UserID)
		srv.hub.Join(f.ConversationID, conn)

	case model.LeaveChat:
		srv.hub.Leave(f.ConversationID, conn.ID())

	case model.Typing:
		// Typing state is never persisted, only redispatched to
		// whoever is in the room right now.
		srv.hub.Dispatch(f.ConversationID, model.UserTyping(f.ConversationID, conn.UserID(), f.IsTyping))
	}
}
