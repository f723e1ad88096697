package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dsemenov/converse/model"
	"github.com/dsemenov/converse/service"
	"github.com/dsemenov/converse/storage/sqlite"
)

// ChatService is everything the request layer needs from the chat
// service.
type ChatService interface {
	SendMessage(chatID int64, senderID, content, messageType string) (model.Message, error)
	ChatMessages(chatID int64, userID string) ([]model.Message, error)
	UserChats(userID string) ([]model.ChatWithParticipants, error)
	CreateDirectChat(userID, otherUserID string) (model.ChatWithParticipants, error)
	CreateGroupChat(userID, name string, participantIDs []string) (model.ChatWithParticipants, error)
	User(id string) (model.User, error)
	UpsertUser(user model.User) (model.User, error)
	Users(excludeID string) ([]model.User, error)
}

type loginRequest struct {
	UserID          string `json:"userId" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	ProfileImageURL string `json:"profileImageUrl"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type directChatRequest struct {
	OtherUserID string `json:"otherUserId" validate:"required"`
}

type groupChatRequest struct {
	Name           string   `json:"name" validate:"required"`
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1"`
}

type sendMessageRequest struct {
	Content     string `json:"content" validate:"required"`
	MessageType string `json:"messageType"`
}

// login is the auth stub: it trusts the submitted identity, upserts the
// user record and hands back a signed session token.
func (srv *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !srv.decode(w, r, &req) {
		return
	}

	user, err := srv.svc.UpsertUser(model.User{
		ID:              req.UserID,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to upsert user")
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	token, err := srv.tokens.IssueToken(user.ID)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	writeJSON(w, http.StatusOK, &loginResponse{Token: token, User: user})
}

func (srv *Server) currentUser(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := srv.svc.User(userID)
	if err != nil {
		srv.writeServiceError(w, err, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (srv *Server) listUsers(w http.ResponseWriter, _ *http.Request, userID string) {
	users, err := srv.svc.Users(userID)
	if err != nil {
		srv.writeServiceError(w, err, "failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (srv *Server) listChats(w http.ResponseWriter, _ *http.Request, userID string) {
	chats, err := srv.svc.UserChats(userID)
	if err != nil {
		srv.writeServiceError(w, err, "failed to fetch chats")
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (srv *Server) createDirectChat(w http.ResponseWriter, r *http.Request, userID string) {
	var req directChatRequest
	if !srv.decode(w, r, &req) {
		return
	}
	chat, err := srv.svc.CreateDirectChat(userID, req.OtherUserID)
	if err != nil {
		srv.writeServiceError(w, err, "failed to create or get chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (srv *Server) createGroupChat(w http.ResponseWriter, r *http.Request, userID string) {
	var req groupChatRequest
	if !srv.decode(w, r, &req) {
		return
	}
	chat, err := srv.svc.CreateGroupChat(userID, req.Name, req.ParticipantIDs)
	if err != nil {
		srv.writeServiceError(w, err, "failed to create group chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (srv *Server) listMessages(w http.ResponseWriter, r *http.Request, userID string) {
	chatID, ok := chatIDFromPath(w, r)
	if !ok {
		return
	}
	messages, err := srv.svc.ChatMessages(chatID, userID)
	if err != nil {
		srv.writeServiceError(w, err, "failed to fetch messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// sendMessage persists the message and, through the service, dispatches
// it to the chat's room before responding.
func (srv *Server) sendMessage(w http.ResponseWriter, r *http.Request, userID string) {
	chatID, ok := chatIDFromPath(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !srv.decode(w, r, &req) {
		return
	}
	msg, err := srv.svc.SendMessage(chatID, userID, req.Content, req.MessageType)
	if err != nil {
		srv.writeServiceError(w, err, "failed to send message")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (srv *Server) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	body, _ := io.ReadAll(r.Body)
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := srv.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (srv *Server) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, sqlite.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		srv.logger.Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func chatIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	chatID, err := strconv.ParseInt(r.PathValue("chatID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}
	return chatID, true
}
