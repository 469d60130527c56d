package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Conversation 会话（由两个参与者的用户名推导，不单独作为权威数据）
type Conversation struct {
	ID              string    `json:"id"`
	Participants    []string  `json:"participants"` // 按字典序排列
	LastMessageID   uuid.UUID `json:"last_message_id"`
	LastMessageText string    `json:"last_message_text"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c Conversation) Clone() Conversation {
	c.Participants = slices.Clone(c.Participants)
	return c
}

// ConversationListItem 会话列表项(包含扩展信息)
type ConversationListItem struct {
	Conversation
	Peer        FriendSummary `json:"peer"`         // 对方的公开资料
	UnreadCount int           `json:"unread_count"` // 未读消息数量
}
