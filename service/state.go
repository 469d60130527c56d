package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"merrimates/model"

	"go.uber.org/zap"
)

// stateData 进程内唯一的应用数据
type stateData struct {
	accounts      []model.Account
	friends       map[string][]model.FriendSummary
	messages      []model.Message
	conversations []model.Conversation
	currentUser   string
	deleted       []string // 小写
}

func (d *stateData) accountIndex(username string) int {
	for i := range d.accounts {
		if strings.EqualFold(d.accounts[i].Username, username) {
			return i
		}
	}
	return -1
}

func (d *stateData) account(username string) *model.Account {
	if i := d.accountIndex(username); i >= 0 {
		return &d.accounts[i]
	}
	return nil
}

// usernameReserved 用户名属于已删除账号
func (d *stateData) usernameReserved(username string) bool {
	return slices.Contains(d.deleted, normalizeUsername(username))
}

func (d *stateData) conversationIndex(id string) int {
	for i := range d.conversations {
		if d.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *stateData) snapshot() model.Snapshot {
	snap := model.Snapshot{
		Accounts:      make([]model.Account, len(d.accounts)),
		Friends:       make(map[string][]model.FriendSummary, len(d.friends)),
		Messages:      make([]model.Message, len(d.messages)),
		Conversations: make([]model.Conversation, len(d.conversations)),
		CurrentUser:   d.currentUser,
	}
	snap.DeletedUsernames = slices.Clone(d.deleted)
	for i, a := range d.accounts {
		snap.Accounts[i] = a.Clone()
	}
	for k, list := range d.friends {
		cp := make([]model.FriendSummary, len(list))
		for i, f := range list {
			cp[i] = f.Clone()
		}
		snap.Friends[k] = cp
	}
	for i, m := range d.messages {
		snap.Messages[i] = m.Clone()
	}
	for i, c := range d.conversations {
		snap.Conversations[i] = c.Clone()
	}
	return snap
}

func (d *stateData) restore(snap model.Snapshot) {
	d.accounts = snap.Accounts
	d.friends = snap.Friends
	if d.friends == nil {
		d.friends = make(map[string][]model.FriendSummary)
	}
	d.messages = snap.Messages
	d.conversations = snap.Conversations
	d.currentUser = snap.CurrentUser
	d.deleted = snap.DeletedUsernames
}

// AppState 应用状态对象：读写锁保护，每次修改后写入完整快照
type AppState struct {
	mu             sync.RWMutex
	data           stateData
	persistence    *PersistenceService
	logger         *zap.Logger
	lastPersistErr error
	now            func() time.Time
}

func NewAppState(persistence *PersistenceService, logger *zap.Logger) *AppState {
	return &AppState{
		data:        stateData{friends: make(map[string][]model.FriendSummary)},
		persistence: persistence,
		logger:      logger,
		now:         time.Now,
	}
}

// Load 从存储恢复状态，读取失败的集合保持为空
func (s *AppState) Load(ctx context.Context) error {
	snap, err := s.persistence.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.restore(snap)

	s.logger.Info("State loaded",
		zap.Int("accounts", len(s.data.accounts)),
		zap.Int("messages", len(s.data.messages)),
		zap.Int("conversations", len(s.data.conversations)))
	return err
}

// Save 主动写入完整快照
func (s *AppState) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Snapshot 当前状态的深拷贝
func (s *AppState) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.snapshot()
}

// LastPersistError 最近一次写入的错误（成功写入后清空）
func (s *AppState) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPersistErr
}

// mutate 在写锁内执行修改并持久化
// fn 返回错误时不写存储，fn 必须在校验通过后才修改数据
func (s *AppState) mutate(ctx context.Context, fn func(d *stateData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.data); err != nil {
		return err
	}
	// 写失败不回滚内存
	_ = s.persistLocked(ctx)
	return nil
}

func (s *AppState) read(fn func(d *stateData)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

func (s *AppState) persistLocked(ctx context.Context) error {
	err := s.persistence.Save(ctx, s.data.snapshot())
	s.lastPersistErr = err
	if err != nil {
		s.logger.Warn("Failed to persist state snapshot", zap.Error(err))
	}
	return err
}
