package service

import (
	"context"
	"sort"
	"strings"

	"merrimates/model"

	"go.uber.org/zap"
)

type ConversationService struct {
	state        *AppState
	logger       *zap.Logger
	msgNotifier  MessageNotifier
	convNotifier ConversationUpdateNotifier
}

func NewConversationService(state *AppState, logger *zap.Logger) *ConversationService {
	return &ConversationService{state: state, logger: logger}
}

// SetMessageNotifier 设置已读回执推送器（用于依赖注入）
func (s *ConversationService) SetMessageNotifier(notifier MessageNotifier) {
	s.msgNotifier = notifier
}

// SetConversationNotifier 设置会话更新通知器（用于依赖注入）
func (s *ConversationService) SetConversationNotifier(notifier ConversationUpdateNotifier) {
	s.convNotifier = notifier
}

// isParticipant 会话ID由两个小写用户名组成
func isParticipant(conversationID, username string) bool {
	a, b, ok := strings.Cut(conversationID, ConversationSeparator)
	if !ok {
		return false
	}
	u := normalizeUsername(username)
	return u == a || u == b
}

// participant 账号存在且属于该会话；已删除账号的旧会话不可再访问
func (d *stateData) participant(conversationID, username string) bool {
	return isParticipant(conversationID, username) && d.account(username) != nil
}

func peerOf(conv model.Conversation, username string) string {
	for _, p := range conv.Participants {
		if !strings.EqualFold(p, username) {
			return p
		}
	}
	return username
}

func (s *ConversationService) buildListItem(d *stateData, conv model.Conversation, username string) model.ConversationListItem {
	peer := peerOf(conv, username)
	summary := model.FriendSummary{Username: peer, Nickname: peer}
	if a := d.account(peer); a != nil {
		summary = a.Summary()
	}
	return model.ConversationListItem{
		Conversation: conv.Clone(),
		Peer:         summary,
		UnreadCount:  unreadCount(d, conv.ID, username),
	}
}

// GetConversations 获取用户的会话列表（最近更新的在前）
// limit <= 0 表示不分页
func (s *ConversationService) GetConversations(username string, limit, offset int) []model.ConversationListItem {
	return s.listConversations(username, "", limit, offset)
}

// SearchConversations 按对方用户名或昵称搜索会话
func (s *ConversationService) SearchConversations(username, keyword string) []model.ConversationListItem {
	return s.listConversations(username, strings.TrimSpace(keyword), 0, 0)
}

func (s *ConversationService) listConversations(username, keyword string, limit, offset int) []model.ConversationListItem {
	var items []model.ConversationListItem
	keyword = strings.ToLower(keyword)

	s.state.read(func(d *stateData) {
		items = make([]model.ConversationListItem, 0)
		if d.account(username) == nil {
			return
		}
		for _, conv := range d.conversations {
			if !isParticipant(conv.ID, username) {
				continue
			}
			item := s.buildListItem(d, conv, username)
			if keyword != "" &&
				!strings.Contains(strings.ToLower(item.Peer.Username), keyword) &&
				!strings.Contains(strings.ToLower(item.Peer.Nickname), keyword) {
				continue
			}
			items = append(items, item)
		}
	})

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	if offset > 0 {
		if offset >= len(items) {
			return []model.ConversationListItem{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// GetMessages 获取会话的消息历史（按发送顺序）
func (s *ConversationService) GetMessages(username, conversationID string, limit, offset int) ([]model.Message, error) {
	if !isParticipant(conversationID, username) {
		return nil, ErrNotParticipant
	}

	var (
		messages []model.Message
		member   bool
	)
	s.state.read(func(d *stateData) {
		if member = d.participant(conversationID, username); !member {
			return
		}
		messages = make([]model.Message, 0)
		for _, m := range d.messages {
			if m.ConversationID == conversationID {
				messages = append(messages, m.Clone())
			}
		}
	})
	if !member {
		return nil, ErrNotParticipant
	}

	if offset > 0 {
		if offset >= len(messages) {
			return []model.Message{}, nil
		}
		messages = messages[offset:]
	}
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	return messages, nil
}

// MarkConversationRead 把会话中发给 username 的消息全部标记为已读，返回本次标记的数量
func (s *ConversationService) MarkConversationRead(ctx context.Context, username, conversationID string) (int, error) {
	if !isParticipant(conversationID, username) {
		return 0, ErrNotParticipant
	}

	var (
		marked []model.Message
		conv   model.Conversation
		found  bool
	)
	err := s.state.mutate(ctx, func(d *stateData) error {
		if !d.participant(conversationID, username) {
			return ErrNotParticipant
		}
		now := s.state.now()
		for i := range d.messages {
			m := &d.messages[i]
			if m.ConversationID != conversationID || m.Read || !strings.EqualFold(m.Recipient, username) {
				continue
			}
			m.Read = true
			readAt := now
			m.ReadAt = &readAt
			marked = append(marked, m.Clone())
		}
		if i := d.conversationIndex(conversationID); i >= 0 {
			conv = d.conversations[i].Clone()
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(marked) > 0 {
		s.logger.Debug("Conversation marked read",
			zap.String("conversation_id", conversationID),
			zap.Int("count", len(marked)))
		if s.msgNotifier != nil {
			for i := range marked {
				s.msgNotifier.SendReadReceipt(marked[i].Sender, &marked[i])
			}
		}
		if s.convNotifier != nil && found {
			s.convNotifier.SendConversationUpdate(username, &conv, 0)
		}
	}
	return len(marked), nil
}
