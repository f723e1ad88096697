// Package service orchestrates persistence and live fan-out for chat
// operations. Messages are persisted first and dispatched to the
// sender's room synchronously afterwards; this is the only place
// new_message events enter the hub.
package service

import (
	"errors"

	"github.com/dsemenov/converse/model"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	ErrAccessDenied  = errors.New("user is not a participant of this chat")
	ErrCreateChat    = errors.New("unable to create chat")
	ErrCreateMessage = errors.New("unable to create message")
	ErrGetChat       = errors.New("unable to get chat")
)

type (
	Store interface {
		GetUser(id string) (model.User, error)
		UpsertUser(user model.User) (model.User, error)
		ListUsers(excludeID string) ([]model.User, error)
		GetUserChats(userID string) ([]model.ChatWithParticipants, error)
		GetChatByID(chatID int64) (model.ChatWithParticipants, error)
		GetOrCreateDirectChat(userID, otherUserID string) (model.Chat, error)
		CreateChat(chat model.Chat, participantIDs []string) (model.Chat, error)
		GetChatMessages(chatID int64) ([]model.Message, error)
		CreateMessage(msg model.Message) (model.Message, error)
		IsParticipant(chatID int64, userID string) (bool, error)
	}

	Dispatcher interface {
		Dispatch(conversationID int64, event model.ServerEvent)
	}

	Service struct {
		store      Store
		dispatcher Dispatcher
		logger     zerolog.Logger
	}

	Config struct {
		Store      Store
		Dispatcher Dispatcher
		Logger     *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger.With().Str("component", "chat-service").Logger(),
	}
}

// SendMessage persists a message on behalf of senderID and fans it out
// to the chat's room before returning. The sender must be a chat
// participant.
func (svc *Service) SendMessage(chatID int64, senderID, content, messageType string) (model.Message, error) {
	if err := svc.authorize(chatID, senderID); err != nil {
		return model.Message{}, err
	}

	msg, err := svc.store.CreateMessage(model.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		MessageType: messageType,
	})
	if err != nil {
		return model.Message{}, errors.Join(ErrCreateMessage, err)
	}

	svc.dispatcher.Dispatch(chatID, model.NewMessage(msg))
	svc.logger.Debug().
		Int64("chatID", chatID).
		Str("senderID", senderID).
		Msg("message persisted and dispatched")
	return msg, nil
}

// ChatMessages returns the full history of a chat the user belongs to.
func (svc *Service) ChatMessages(chatID int64, userID string) ([]model.Message, error) {
	if err := svc.authorize(chatID, userID); err != nil {
		return nil, err
	}
	return svc.store.GetChatMessages(chatID)
}

func (svc *Service) UserChats(userID string) ([]model.ChatWithParticipants, error) {
	return svc.store.GetUserChats(userID)
}

// CreateDirectChat returns the 1:1 chat between the two users, creating
// it on first use.
func (svc *Service) CreateDirectChat(userID, otherUserID string) (model.ChatWithParticipants, error) {
	chat, err := svc.store.GetOrCreateDirectChat(userID, otherUserID)
	if err != nil {
		return model.ChatWithParticipants{}, errors.Join(ErrCreateChat, err)
	}
	details, err := svc.store.GetChatByID(chat.ID)
	if err != nil {
		return model.ChatWithParticipants{}, errors.Join(ErrGetChat, err)
	}
	return details, nil
}

// CreateGroupChat creates a named group chat; the creator is always
// included in the participant list.
func (svc *Service) CreateGroupChat(userID, name string, participantIDs []string) (model.ChatWithParticipants, error) {
	all := lo.Uniq(append([]string{userID}, participantIDs...))
	chat, err := svc.store.CreateChat(model.Chat{Name: name, IsGroup: true}, all)
	if err != nil {
		return model.ChatWithParticipants{}, errors.Join(ErrCreateChat, err)
	}
	details, err := svc.store.GetChatByID(chat.ID)
	if err != nil {
		return model.ChatWithParticipants{}, errors.Join(ErrGetChat, err)
	}
	svc.logger.Debug().
		Int64("chatID", chat.ID).
		Int("participants", len(all)).
		Msg("group chat created")
	return details, nil
}

func (svc *Service) User(id string) (model.User, error) {
	return svc.store.GetUser(id)
}

func (svc *Service) UpsertUser(user model.User) (model.User, error) {
	return svc.store.UpsertUser(user)
}

func (svc *Service) Users(excludeID string) ([]model.User, error) {
	return svc.store.ListUsers(excludeID)
}

func (svc *Service) authorize(chatID int64, userID string) error {
	ok, err := svc.store.IsParticipant(chatID, userID)
	if err != nil {
		return errors.Join(ErrGetChat, err)
	}
	if !ok {
		return ErrAccessDenied
	}
	return nil
}
