package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types accepted from clients over the websocket.
const (
	FrameTypeJoinChat  = "join_chat"
	FrameTypeLeaveChat = "leave_chat"
	FrameTypeTyping    = "typing"
)

// Event types sent by the server.
const (
	EventTypeNewMessage = "new_message"
	EventTypeUserTyping = "user_typing"
)

var (
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// Frame is an inbound control frame, decoded once at the protocol
// boundary into one of JoinChat, LeaveChat or Typing.
type Frame interface {
	frame()
}

type JoinChat struct {
	ConversationID int64  `json:"conversationId"`
	UserID         string `json:"userId"`
}

type LeaveChat struct {
	ConversationID int64 `json:"conversationId"`
}

type Typing struct {
	ConversationID int64 `json:"conversationId"`
	IsTyping       bool  `json:"isTyping"`
}

func (JoinChat) frame()  {}
func (LeaveChat) frame() {}
func (Typing) frame()    {}

// DecodeFrame parses one raw websocket message into a typed frame.
func DecodeFrame(data []byte) (Frame, error) {
	var env struct {
		Type           string `json:"type"`
		ConversationID int64  `json:"conversationId"`
		UserID         string `json:"userId"`
		IsTyping       bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case FrameTypeJoinChat:
		return JoinChat{ConversationID: env.ConversationID, UserID: env.UserID}, nil
	case FrameTypeLeaveChat:
		return LeaveChat{ConversationID: env.ConversationID}, nil
	case FrameTypeTyping:
		return Typing{ConversationID: env.ConversationID, IsTyping: env.IsTyping}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, env.Type)
}

// ServerEvent is an outbound event fanned out to room members.
// Variants marshal themselves with their wire "type" tag included.
type ServerEvent interface {
	event()
}

type NewMessageEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type UserTypingEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

func (NewMessageEvent) event() {}
func (UserTypingEvent) event() {}

func NewMessage(msg Message) NewMessageEvent {
	return NewMessageEvent{Type: EventTypeNewMessage, Message: msg}
}

func UserTyping(conversationID int64, userID string, isTyping bool) UserTypingEvent {
	return UserTypingEvent{
		Type:           EventTypeUserTyping,
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	}
}
