package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"merrimates/model"
	"merrimates/storage"

	"go.uber.org/zap"
)

// 每个逻辑集合单独存一个 JSON 文档
const (
	KeyUsers         = "users"
	KeyFriends       = "friends"
	KeyMessages      = "messages"
	KeyConversations = "conversations"
	KeyCurrentUser   = "current_user"
	KeyDeletedUsers  = "deleted_users"
)

// PersistenceService 把应用状态快照读写到键值存储
type PersistenceService struct {
	kv     storage.KV
	prefix string
	logger *zap.Logger
}

func NewPersistenceService(kv storage.KV, prefix string, logger *zap.Logger) *PersistenceService {
	return &PersistenceService{kv: kv, prefix: prefix, logger: logger}
}

// Key 集合对应的存储键
func (p *PersistenceService) Key(collection string) string {
	return p.prefix + collection
}

// Load 读取完整快照
// 缺失的键和损坏的 JSON 都按空集合处理；只有存储读取失败才返回错误（已读到的部分仍然返回）
func (p *PersistenceService) Load(ctx context.Context) (model.Snapshot, error) {
	var (
		snap model.Snapshot
		errs []error
	)

	targets := []struct {
		collection string
		dst        interface{}
	}{
		{KeyUsers, &snap.Accounts},
		{KeyFriends, &snap.Friends},
		{KeyMessages, &snap.Messages},
		{KeyConversations, &snap.Conversations},
		{KeyCurrentUser, &snap.CurrentUser},
		{KeyDeletedUsers, &snap.DeletedUsernames},
	}

	for _, t := range targets {
		if err := p.loadJSON(ctx, t.collection, t.dst); err != nil {
			errs = append(errs, err)
		}
	}

	if snap.Friends == nil {
		snap.Friends = make(map[string][]model.FriendSummary)
	}

	return snap, errors.Join(errs...)
}

func (p *PersistenceService) loadJSON(ctx context.Context, collection string, dst interface{}) error {
	key := p.Key(collection)
	raw, found, err := p.kv.Get(ctx, key)
	if err != nil {
		p.logger.Error("Failed to read snapshot", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		// 损坏的数据不阻止启动
		p.logger.Warn("Malformed snapshot, starting empty", zap.String("key", key), zap.Error(err))
		resetTarget(dst)
	}
	return nil
}

func resetTarget(dst interface{}) {
	switch v := dst.(type) {
	case *[]model.Account:
		*v = nil
	case *map[string][]model.FriendSummary:
		*v = nil
	case *[]model.Message:
		*v = nil
	case *[]model.Conversation:
		*v = nil
	case *[]string:
		*v = nil
	case *string:
		*v = ""
	}
}

// Save 写入完整快照，每个集合独立写入，任一失败都返回 ErrStorageWriteFailed
func (p *PersistenceService) Save(ctx context.Context, snap model.Snapshot) error {
	var errs []error

	values := []struct {
		collection string
		value      interface{}
	}{
		{KeyUsers, nonNilAccounts(snap.Accounts)},
		{KeyFriends, nonNilFriends(snap.Friends)},
		{KeyMessages, nonNilMessages(snap.Messages)},
		{KeyConversations, nonNilConversations(snap.Conversations)},
		{KeyDeletedUsers, nonNilStrings(snap.DeletedUsernames)},
	}

	for _, v := range values {
		if err := p.saveJSON(ctx, v.collection, v.value); err != nil {
			errs = append(errs, err)
		}
	}

	// 没有活跃会话时删除 current_user
	if snap.CurrentUser == "" {
		if err := p.kv.Remove(ctx, p.Key(KeyCurrentUser)); err != nil {
			errs = append(errs, err)
		}
	} else if err := p.saveJSON(ctx, KeyCurrentUser, snap.CurrentUser); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, errors.Join(errs...))
	}
	return nil
}

func (p *PersistenceService) saveJSON(ctx context.Context, collection string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", collection, err)
	}
	return p.kv.Set(ctx, p.Key(collection), string(data))
}

func nonNilAccounts(v []model.Account) []model.Account {
	if v == nil {
		return []model.Account{}
	}
	return v
}

func nonNilFriends(v map[string][]model.FriendSummary) map[string][]model.FriendSummary {
	if v == nil {
		return map[string][]model.FriendSummary{}
	}
	return v
}

func nonNilMessages(v []model.Message) []model.Message {
	if v == nil {
		return []model.Message{}
	}
	return v
}

func nonNilConversations(v []model.Conversation) []model.Conversation {
	if v == nil {
		return []model.Conversation{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
