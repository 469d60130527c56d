package model

import (
	"time"

	"github.com/google/uuid"
)

// Message 私信消息（创建后只允许已读状态变化）
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Sender         string     `json:"sender"`
	Recipient      string     `json:"recipient"`
	Content        string     `json:"content"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (m Message) Clone() Message {
	if m.ReadAt != nil {
		t := *m.ReadAt
		m.ReadAt = &t
	}
	return m
}
