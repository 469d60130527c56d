package service

import (
	"context"
	"strings"

	"merrimates/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationSeparator 用户名不允许包含的字符，保证不同的用户对不会得到相同的会话ID
const ConversationSeparator = ":"

// MessageNotifier 接口用于推送新消息和已读回执
type MessageNotifier interface {
	SendNewMessage(username string, msg *model.Message) bool
	SendReadReceipt(username string, msg *model.Message) bool
}

// ConversationUpdateNotifier 接口用于推送会话更新
type ConversationUpdateNotifier interface {
	SendConversationUpdate(username string, conv *model.Conversation, unreadCount int) bool
}

type MessageService struct {
	state        *AppState
	logger       *zap.Logger
	msgNotifier  MessageNotifier
	convNotifier ConversationUpdateNotifier
}

func NewMessageService(state *AppState, logger *zap.Logger) *MessageService {
	return &MessageService{state: state, logger: logger}
}

// SetMessageNotifier 设置消息推送器（用于依赖注入）
func (s *MessageService) SetMessageNotifier(notifier MessageNotifier) {
	s.msgNotifier = notifier
}

// SetConversationNotifier 设置会话更新通知器（用于依赖注入）
func (s *MessageService) SetConversationNotifier(notifier ConversationUpdateNotifier) {
	s.convNotifier = notifier
}

// ConversationID 两个用户的会话ID：小写后按字典序排列再拼接，与参数顺序无关
func ConversationID(a, b string) string {
	a, b = normalizeUsername(a), normalizeUsername(b)
	if b < a {
		a, b = b, a
	}
	return a + ConversationSeparator + b
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Content   string `json:"content"`
}

// SendMessage 发送私信，同一对用户始终只有一个会话
func (s *MessageService) SendMessage(ctx context.Context, sender string, req *SendMessageRequest) (*model.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if strings.EqualFold(sender, req.Recipient) {
		return nil, ErrSelfRelation
	}

	var (
		msg          model.Message
		conv         model.Conversation
		senderUnread int
		recvUnread   int
	)
	err := s.state.mutate(ctx, func(d *stateData) error {
		from := d.account(sender)
		to := d.account(req.Recipient)
		if from == nil || to == nil {
			return ErrAccountNotFound
		}
		if hasBlocked(from, to.Username) || hasBlocked(to, from.Username) {
			return ErrUserBlocked
		}

		now := s.state.now()
		msg = model.Message{
			ID:             uuid.New(),
			ConversationID: ConversationID(from.Username, to.Username),
			Sender:         from.Username,
			Recipient:      to.Username,
			Content:        content,
			CreatedAt:      now,
		}
		d.messages = append(d.messages, msg)

		// 会话存在则更新最后一条消息，否则创建
		if i := d.conversationIndex(msg.ConversationID); i >= 0 {
			d.conversations[i].LastMessageID = msg.ID
			d.conversations[i].LastMessageText = msg.Content
			d.conversations[i].UpdatedAt = now
			conv = d.conversations[i].Clone()
		} else {
			participants := []string{from.Username, to.Username}
			if normalizeUsername(to.Username) < normalizeUsername(from.Username) {
				participants[0], participants[1] = participants[1], participants[0]
			}
			conv = model.Conversation{
				ID:              msg.ConversationID,
				Participants:    participants,
				LastMessageID:   msg.ID,
				LastMessageText: msg.Content,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			d.conversations = append(d.conversations, conv.Clone())
		}

		senderUnread = unreadCount(d, msg.ConversationID, from.Username)
		recvUnread = unreadCount(d, msg.ConversationID, to.Username)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Message sent",
		zap.String("message_id", msg.ID.String()),
		zap.String("conversation_id", msg.ConversationID))

	if s.msgNotifier != nil {
		s.msgNotifier.SendNewMessage(msg.Recipient, &msg)
	}
	if s.convNotifier != nil {
		s.convNotifier.SendConversationUpdate(msg.Sender, &conv, senderUnread)
		s.convNotifier.SendConversationUpdate(msg.Recipient, &conv, recvUnread)
	}

	return &msg, nil
}

// MarkRead 标记消息为已读（只有接收者可以标记，已读时幂等）
func (s *MessageService) MarkRead(ctx context.Context, reader string, messageID uuid.UUID) (*model.Message, error) {
	var (
		msg     model.Message
		changed bool
	)
	err := s.state.mutate(ctx, func(d *stateData) error {
		for i := range d.messages {
			m := &d.messages[i]
			if m.ID != messageID {
				continue
			}
			if !strings.EqualFold(m.Recipient, reader) || d.account(reader) == nil {
				return ErrNotParticipant
			}
			if !m.Read {
				now := s.state.now()
				m.Read = true
				m.ReadAt = &now
				changed = true
			}
			msg = m.Clone()
			return nil
		}
		return ErrMessageNotFound
	})
	if err != nil {
		return nil, err
	}

	if changed && s.msgNotifier != nil {
		s.msgNotifier.SendReadReceipt(msg.Sender, &msg)
	}
	return &msg, nil
}

// GetMessage 根据ID获取消息（仅限会话参与者）
func (s *MessageService) GetMessage(username string, messageID uuid.UUID) (*model.Message, error) {
	var (
		msg    model.Message
		found  bool
		member bool
	)
	s.state.read(func(d *stateData) {
		for _, m := range d.messages {
			if m.ID == messageID {
				msg = m.Clone()
				found = true
				member = d.participant(m.ConversationID, username)
				return
			}
		}
	})
	if !found {
		return nil, ErrMessageNotFound
	}
	if !member {
		return nil, ErrNotParticipant
	}
	return &msg, nil
}

// unreadCount 会话中发给 username 的未读消息数量
func unreadCount(d *stateData, conversationID, username string) int {
	n := 0
	for _, m := range d.messages {
		if m.ConversationID == conversationID && !m.Read && strings.EqualFold(m.Recipient, username) {
			n++
		}
	}
	return n
}
