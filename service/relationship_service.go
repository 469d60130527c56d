package service

import (
	"context"
	"slices"
	"strings"

	"merrimates/model"

	"go.uber.org/zap"
)

type RelationshipService struct {
	state  *AppState
	logger *zap.Logger
}

func NewRelationshipService(state *AppState, logger *zap.Logger) *RelationshipService {
	return &RelationshipService{state: state, logger: logger}
}

func hasFriend(list []model.FriendSummary, username string) bool {
	return slices.ContainsFunc(list, func(f model.FriendSummary) bool {
		return strings.EqualFold(f.Username, username)
	})
}

func hasBlocked(a *model.Account, username string) bool {
	return slices.ContainsFunc(a.BlockedUsers, func(u string) bool {
		return strings.EqualFold(u, username)
	})
}

// AddFriend 添加好友（幂等，已是好友时不做任何修改）
func (s *RelationshipService) AddFriend(ctx context.Context, owner string, friend model.FriendSummary) error {
	if strings.EqualFold(owner, friend.Username) {
		return ErrSelfRelation
	}
	return s.state.mutate(ctx, func(d *stateData) error {
		a := d.account(owner)
		if a == nil {
			return ErrAccountNotFound
		}
		if hasBlocked(a, friend.Username) {
			return ErrUserBlocked
		}
		key := normalizeUsername(a.Username)
		if hasFriend(d.friends[key], friend.Username) {
			return nil
		}
		d.friends[key] = append(d.friends[key], friend.Clone())
		return nil
	})
}

// AddFriendByUsername 根据目录中的账号生成好友摘要并添加，资料未完成的账号视为不存在
func (s *RelationshipService) AddFriendByUsername(ctx context.Context, owner, target string) (*model.FriendSummary, error) {
	var (
		summary model.FriendSummary
		found   bool
	)
	s.state.read(func(d *stateData) {
		if a := d.account(target); a != nil && a.ProfileComplete {
			summary = a.Summary()
			found = true
		}
	})
	if !found {
		return nil, ErrAccountNotFound
	}

	if err := s.AddFriend(ctx, owner, summary); err != nil {
		return nil, err
	}
	s.logger.Info("Friend added", zap.String("owner", owner), zap.String("friend", summary.Username))
	return &summary, nil
}

// RemoveFriend 删除好友
func (s *RelationshipService) RemoveFriend(ctx context.Context, owner, target string) error {
	return s.state.mutate(ctx, func(d *stateData) error {
		a := d.account(owner)
		if a == nil {
			return ErrAccountNotFound
		}
		key := normalizeUsername(a.Username)
		d.friends[key] = slices.DeleteFunc(d.friends[key], func(f model.FriendSummary) bool {
			return strings.EqualFold(f.Username, target)
		})
		return nil
	})
}

// BlockUser 拉黑用户，同时删除好友关系
func (s *RelationshipService) BlockUser(ctx context.Context, owner, target string) error {
	if strings.EqualFold(owner, target) {
		return ErrSelfRelation
	}
	err := s.state.mutate(ctx, func(d *stateData) error {
		a := d.account(owner)
		if a == nil {
			return ErrAccountNotFound
		}
		t := d.account(target)
		if t == nil {
			return ErrAccountNotFound
		}
		if !hasBlocked(a, t.Username) {
			a.BlockedUsers = append(a.BlockedUsers, t.Username)
			a.UpdatedAt = s.state.now()
		}
		key := normalizeUsername(a.Username)
		d.friends[key] = slices.DeleteFunc(d.friends[key], func(f model.FriendSummary) bool {
			return strings.EqualFold(f.Username, t.Username)
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("User blocked", zap.String("owner", owner), zap.String("target", target))
	return nil
}

// UnblockUser 取消拉黑（不恢复好友关系）
func (s *RelationshipService) UnblockUser(ctx context.Context, owner, target string) error {
	return s.state.mutate(ctx, func(d *stateData) error {
		a := d.account(owner)
		if a == nil {
			return ErrAccountNotFound
		}
		if !hasBlocked(a, target) {
			return ErrNotBlocked
		}
		a.BlockedUsers = slices.DeleteFunc(a.BlockedUsers, func(u string) bool {
			return strings.EqualFold(u, target)
		})
		a.UpdatedAt = s.state.now()
		return nil
	})
}

// GetFriends 获取好友列表
func (s *RelationshipService) GetFriends(owner string) []model.FriendSummary {
	var out []model.FriendSummary
	s.state.read(func(d *stateData) {
		list := d.friends[normalizeUsername(owner)]
		out = make([]model.FriendSummary, 0, len(list))
		for _, f := range list {
			out = append(out, f.Clone())
		}
	})
	return out
}

// GetBlockedUsers 获取拉黑列表
func (s *RelationshipService) GetBlockedUsers(owner string) ([]string, error) {
	var (
		out   []string
		found bool
	)
	s.state.read(func(d *stateData) {
		if a := d.account(owner); a != nil {
			out = slices.Clone(a.BlockedUsers)
			found = true
		}
	})
	if !found {
		return nil, ErrAccountNotFound
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// IsFriend 检查是否是好友
func (s *RelationshipService) IsFriend(owner, target string) bool {
	var ok bool
	s.state.read(func(d *stateData) {
		ok = hasFriend(d.friends[normalizeUsername(owner)], target)
	})
	return ok
}

// IsBlocked 检查 owner 是否拉黑了 target
func (s *RelationshipService) IsBlocked(owner, target string) bool {
	var ok bool
	s.state.read(func(d *stateData) {
		if a := d.account(owner); a != nil {
			ok = hasBlocked(a, target)
		}
	})
	return ok
}
