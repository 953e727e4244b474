package chat

import (
	"time"

	"github.com/suPer8Hu/gemini-chat/internal/common"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultTitle = "New Chat"
)

type Chat struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;index:idx_chats_user_created,priority:1" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `gorm:"index:idx_chats_user_created,priority:2" json:"created_at"`

	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Chat) TableName() string { return "chats" }

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID != "" {
		return nil
	}
	id, err := common.NewULID()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

type Message struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ChatID    string    `gorm:"type:varchar(26);not null;index:idx_chat_messages_chat_created,priority:1" json:"chat_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_chat_messages_chat_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID != "" {
		return nil
	}
	id, err := common.NewULID()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}
