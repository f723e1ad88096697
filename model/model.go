package model

import "time"

// User mirrors the account record supplied by the auth layer.
// The id is stable and externally assigned.
type User struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Email           string    `gorm:"uniqueIndex" json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ProfileImageURL string    `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Chat is a conversation, either direct (two participants, no name)
// or a named group.
type Chat struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `json:"name"`
	IsGroup   bool      `json:"isGroup"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ChatParticipant struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID   int64     `gorm:"index" json:"chatId"`
	UserID   string    `gorm:"index" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

type Message struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID      int64     `gorm:"index" json:"chatId"`
	SenderID    string    `json:"senderId"`
	Content     string    `json:"content"`
	MessageType string    `gorm:"default:text" json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender"`
}

// ChatWithParticipants is the chat list/detail projection returned by
// the API: the chat row plus its participants and recent messages.
type ChatWithParticipants struct {
	Chat
	Participants []ChatParticipant `json:"participants"`
	Messages     []Message         `json:"messages"`
}
