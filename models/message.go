package models

import (
	"time"

	"gorm.io/gorm"
)

// Message represents one entry in a communication log. Exactly one of
// OrderID, QuoteID or ChatID is set. Logs are append-only; no edit or
// delete operation is exposed anywhere in the API.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    *uint     `gorm:"index" json:"order_id,omitempty"`
	QuoteID    *uint     `gorm:"index" json:"quote_id,omitempty"`
	ChatID     *uint     `gorm:"index" json:"chat_id,omitempty"`
	SenderID   uint      `gorm:"not null;index" json:"sender_id"`
	Sender     User      `gorm:"foreignKey:SenderID" json:"sender"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	IsInternal bool      `gorm:"not null;default:false" json:"is_internal"` // admin-only entries hidden from clients
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// Chat represents a standalone conversation thread, optionally linked to an
// order or quote
type Chat struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ClientID  uint           `gorm:"not null;index" json:"client_id"`
	Client    User           `gorm:"foreignKey:ClientID" json:"client"`
	OrderID   *uint          `gorm:"index" json:"order_id,omitempty"`
	QuoteID   *uint          `gorm:"index" json:"quote_id,omitempty"`
	Subject   string         `gorm:"not null" json:"subject"`
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	Messages  []Message      `gorm:"foreignKey:ChatID" json:"messages,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Chat model
func (Chat) TableName() string {
	return "chats"
}
