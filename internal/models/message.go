package models

import "time"

// Message is a direct message between two members.
type Message struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SenderID    uint       `gorm:"index:idx_message_pair;not null" json:"sender_id"`
	RecipientID uint       `gorm:"index:idx_message_pair;index;not null" json:"recipient_id"`
	Sender      *Profile   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ReadAt      *time.Time `gorm:"index" json:"read_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
