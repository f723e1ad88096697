// Package sqlite implements durable storage of users, chats,
// participants and messages on top of gorm.
package sqlite

import (
	"errors"
	"fmt"
	"time"

	"github.com/dsemenov/converse/model"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.ChatParticipant{},
		&model.Message{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) UpsertUser(user model.User) (model.User, error) {
	user.UpdatedAt = time.Now()
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&user).Error
	if err != nil {
		return model.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUser(id string) (model.User, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListUsers returns every known user except the caller, for starting
// new chats.
func (s *Store) ListUsers(excludeID string) ([]model.User, error) {
	var users []model.User
	if err := s.db.Where("id <> ?", excludeID).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateChat creates a chat together with its participant rows.
func (s *Store) CreateChat(chat model.Chat, participantIDs []string) (model.Chat, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		participants := lo.Map(lo.Uniq(participantIDs), func(userID string, _ int) model.ChatParticipant {
			return model.ChatParticipant{
				ChatID:   chat.ID,
				UserID:   userID,
				JoinedAt: time.Now(),
			}
		})
		if len(participants) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&participants).Error
	})
	if err != nil {
		return model.Chat{}, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// GetChatByID returns the chat with its participants (user details
// included) and the ten most recent messages.
func (s *Store) GetChatByID(chatID int64) (model.ChatWithParticipants, error) {
	var chat model.Chat
	if err := s.db.First(&chat, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ChatWithParticipants{}, ErrNotFound
		}
		return model.ChatWithParticipants{}, fmt.Errorf("failed to find chat: %w", err)
	}

	participants, err := s.chatParticipants(chatID)
	if err != nil {
		return model.ChatWithParticipants{}, err
	}

	var recent []model.Message
	err = s.db.Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(10).
		Find(&recent).Error
	if err != nil {
		return model.ChatWithParticipants{}, fmt.Errorf("failed to load chat messages: %w", err)
	}

	return model.ChatWithParticipants{
		Chat:         chat,
		Participants: participants,
		Messages:     recent,
	}, nil
}

// GetOrCreateDirectChat returns the existing 1:1 chat between the two
// users, creating it on first use.
func (s *Store) GetOrCreateDirectChat(userID, otherUserID string) (model.Chat, error) {
	memberOf := func(id string) *gorm.DB {
		return s.db.Model(&model.ChatParticipant{}).Select("chat_id").Where("user_id = ?", id)
	}

	var chat model.Chat
	err := s.db.
		Where("is_group = ?", false).
		Where("id IN (?)", memberOf(userID)).
		Where("id IN (?)", memberOf(otherUserID)).
		First(&chat).Error
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Chat{}, fmt.Errorf("failed to find direct chat: %w", err)
	}

	return s.CreateChat(model.Chat{IsGroup: false}, []string{userID, otherUserID})
}

// GetUserChats returns every chat the user participates in, most
// recently active first, each with participants and its last message.
func (s *Store) GetUserChats(userID string) ([]model.ChatWithParticipants, error) {
	var chats []model.Chat
	err := s.db.
		Where("id IN (?)", s.db.Model(&model.ChatParticipant{}).Select("chat_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user chats: %w", err)
	}

	out := make([]model.ChatWithParticipants, 0, len(chats))
	for _, chat := range chats {
		participants, err := s.chatParticipants(chat.ID)
		if err != nil {
			return nil, err
		}
		var last []model.Message
		err = s.db.Preload("Sender").
			Where("chat_id = ?", chat.ID).
			Order("created_at DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load last message: %w", err)
		}
		out = append(out, model.ChatWithParticipants{
			Chat:         chat,
			Participants: participants,
			Messages:     last,
		})
	}
	return out, nil
}

// GetChatMessages returns the chat's full history in append order with
// sender details.
func (s *Store) GetChatMessages(chatID int64) ([]model.Message, error) {
	var messages []model.Message
	err := s.db.Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat messages: %w", err)
	}
	return messages, nil
}

// CreateMessage persists a message, bumps the chat's activity timestamp
// and returns the stored row with sender details attached.
func (s *Store) CreateMessage(msg model.Message) (model.Message, error) {
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Chat{}).
			Where("id = ?", msg.ChatID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to create message: %w", err)
	}
	if err = s.db.First(&msg.Sender, "id = ?", msg.SenderID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Message{}, fmt.Errorf("failed to load message sender: %w", err)
	}
	return msg, nil
}

// IsParticipant reports whether the user belongs to the chat.
func (s *Store) IsParticipant(chatID int64, userID string) (bool, error) {
	var count int64
	err := s.db.Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check chat membership: %w", err)
	}
	return count > 0, nil
}

func (s *Store) chatParticipants(chatID int64) ([]model.ChatParticipant, error) {
	var participants []model.ChatParticipant
	err := s.db.Preload("User").
		Where("chat_id = ?", chatID).
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat participants: %w", err)
	}
	return participants, nil
}
