package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"merrimates/model"
	"merrimates/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const resetCodeTTL = 15 * time.Minute

type resetCode struct {
	code      string
	username  string
	expiresAt time.Time
}

type AccountService struct {
	state         *AppState
	logger        *zap.Logger
	bcryptCost    int
	avatarBaseURL string

	resetMu    sync.Mutex
	resetCodes map[string]resetCode // key: 小写联系方式
}

func NewAccountService(state *AppState, logger *zap.Logger, bcryptCost int, avatarBaseURL string) *AccountService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{
		state:         state,
		logger:        logger,
		bcryptCost:    bcryptCost,
		avatarBaseURL: avatarBaseURL,
		resetCodes:    make(map[string]resetCode),
	}
}

// CreateAccount 注册（仅凭证），用户名大小写不敏感唯一
func (s *AccountService) CreateAccount(ctx context.Context, username, password, email string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := ValidateContact(email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created model.Account
	err = s.state.mutate(ctx, func(d *stateData) error {
		if d.accountIndex(username) >= 0 || d.usernameReserved(username) {
			return ErrDuplicateUsername
		}
		now := s.state.now()
		created = model.Account{
			Username:     username,
			Password:     string(hash),
			Email:        email,
			BlockedUsers: []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		d.accounts = append(d.accounts, created)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account created", zap.String("username", username))
	pub := created.Public()
	return &pub, nil
}

// Authenticate 用户名大小写不敏感，密码精确匹配
func (s *AccountService) Authenticate(username, password string) (*model.Account, error) {
	var (
		acc   model.Account
		found bool
	)
	s.state.read(func(d *stateData) {
		if a := d.account(strings.TrimSpace(username)); a != nil {
			acc = a.Clone()
			found = true
		}
	})
	if !found {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		// 存储的哈希损坏，不是密码错误
		return nil, fmt.Errorf("failed to verify password for %s: %w", acc.Username, err)
	}
	pub := acc.Public()
	return &pub, nil
}

// GetAccount 获取账号（不含密码）
func (s *AccountService) GetAccount(username string) (*model.Account, error) {
	var (
		acc   model.Account
		found bool
	)
	s.state.read(func(d *stateData) {
		if a := d.account(username); a != nil {
			acc = a.Public()
			found = true
		}
	})
	if !found {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

// FindByEmail 按联系方式查找（大小写不敏感，返回最早注册的账号）
func (s *AccountService) FindByEmail(email string) (*model.Account, error) {
	email = strings.TrimSpace(email)
	var (
		acc   model.Account
		found bool
	)
	s.state.read(func(d *stateData) {
		for _, a := range d.accounts {
			if strings.EqualFold(a.Email, email) {
				acc = a.Public()
				found = true
				return
			}
		}
	})
	if !found {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

// ListAccounts 按注册顺序返回所有账号
func (s *AccountService) ListAccounts() []model.Account {
	var out []model.Account
	s.state.read(func(d *stateData) {
		out = make([]model.Account, 0, len(d.accounts))
		for _, a := range d.accounts {
			out = append(out, a.Public())
		}
	})
	return out
}

// UpdateAccount 合并可修改字段，每个字段单独校验
func (s *AccountService) UpdateAccount(ctx context.Context, username string, upd model.AccountUpdate) (*model.Account, error) {
	var (
		hobbies   []string
		interests []string
		err       error
	)
	if upd.Email != nil {
		if err := ValidateContact(strings.TrimSpace(*upd.Email)); err != nil {
			return nil, err
		}
	}
	if upd.Nickname != nil {
		if err := validateRequired("nickname", *upd.Nickname, "Please enter a nickname"); err != nil {
			return nil, err
		}
	}
	if upd.Age != nil {
		if err := ValidateAge(*upd.Age); err != nil {
			return nil, err
		}
	}
	if upd.Pronouns != nil {
		if err := validateRequired("pronouns", *upd.Pronouns, "Please enter your pronouns"); err != nil {
			return nil, err
		}
	}
	if upd.City != nil {
		if err := validateRequired("city", *upd.City, "Please select your location"); err != nil {
			return nil, err
		}
	}
	if upd.Country != nil {
		if err := validateRequired("country", *upd.Country, "Please select your location"); err != nil {
			return nil, err
		}
	}
	if upd.Hobbies != nil {
		if hobbies, err = validateSelection("hobbies", upd.Hobbies, "Please select at least 1 hobby", "Maximum 10 hobbies allowed"); err != nil {
			return nil, err
		}
	}
	if upd.LearningInterests != nil {
		if interests, err = validateSelection("learning_interests", upd.LearningInterests, "Please select at least 1 interest to learn", "Maximum 10 interests allowed"); err != nil {
			return nil, err
		}
	}
	if upd.Personality != nil && !upd.Personality.Valid() {
		return nil, validationFailed("personality", ReasonInvalid, "Please select your personality type")
	}
	if upd.LookingFor != nil && !upd.LookingFor.Valid() {
		return nil, validationFailed("looking_for", ReasonInvalid, "Please select what you're looking for")
	}

	var updated model.Account
	err = s.state.mutate(ctx, func(d *stateData) error {
		a := d.account(username)
		if a == nil {
			return ErrAccountNotFound
		}
		if upd.Email != nil {
			a.Email = strings.TrimSpace(*upd.Email)
		}
		if upd.Nickname != nil {
			a.Nickname = strings.TrimSpace(*upd.Nickname)
		}
		if upd.Age != nil {
			a.Age = *upd.Age
		}
		if upd.Pronouns != nil {
			a.Pronouns = strings.TrimSpace(*upd.Pronouns)
		}
		if upd.City != nil {
			a.City = strings.TrimSpace(*upd.City)
		}
		if upd.Country != nil {
			a.Country = strings.TrimSpace(*upd.Country)
		}
		if upd.ProfilePicture != nil {
			a.ProfilePicture = *upd.ProfilePicture
		}
		if hobbies != nil {
			a.Hobbies = hobbies
		}
		if interests != nil {
			a.LearningInterests = interests
		}
		if upd.Personality != nil {
			a.Personality = *upd.Personality
		}
		if upd.LookingFor != nil {
			a.LookingFor = *upd.LookingFor
		}
		a.UpdatedAt = s.state.now()
		updated = a.Public()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ChangePassword 修改密码
func (s *AccountService) ChangePassword(ctx context.Context, username, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.state.mutate(ctx, func(d *stateData) error {
		a := d.account(username)
		if a == nil {
			return ErrAccountNotFound
		}
		a.Password = string(hash)
		a.UpdatedAt = s.state.now()
		return nil
	})
}

// ValidateProfile 校验引导流程提交的完整资料，返回规范化后的副本
func ValidateProfile(p model.Profile) (model.Profile, error) {
	if err := validateRequired("nickname", p.Nickname, "Please enter a nickname"); err != nil {
		return p, err
	}
	if err := ValidateAge(p.Age); err != nil {
		return p, err
	}
	if err := validateRequired("pronouns", p.Pronouns, "Please select your pronouns"); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.City) == "" || strings.TrimSpace(p.Country) == "" {
		return p, validationFailed("location", ReasonRequired, "Please select your location")
	}
	hobbies, err := validateSelection("hobbies", p.Hobbies, "Please select at least 1 hobby", "Maximum 10 hobbies allowed")
	if err != nil {
		return p, err
	}
	interests, err := validateSelection("learning_interests", p.LearningInterests, "Please select at least 1 interest to learn", "Maximum 10 interests allowed")
	if err != nil {
		return p, err
	}
	if !p.Personality.Valid() {
		return p, validationFailed("personality", ReasonRequired, "Please select your personality type")
	}
	if !p.LookingFor.Valid() {
		return p, validationFailed("looking_for", ReasonRequired, "Please select what you're looking for")
	}

	p.Nickname = strings.TrimSpace(p.Nickname)
	p.Pronouns = strings.TrimSpace(p.Pronouns)
	p.City = strings.TrimSpace(p.City)
	p.Country = strings.TrimSpace(p.Country)
	p.Hobbies = hobbies
	p.LearningInterests = interests
	return p, nil
}

// CompleteProfile 一次性写入引导流程的全部资料
func (s *AccountService) CompleteProfile(ctx context.Context, username string, profile model.Profile) (*model.Account, error) {
	profile, err := ValidateProfile(profile)
	if err != nil {
		return nil, err
	}

	var updated model.Account
	err = s.state.mutate(ctx, func(d *stateData) error {
		a := d.account(username)
		if a == nil {
			return ErrAccountNotFound
		}
		picture := profile.ProfilePicture
		if picture == "" {
			picture = utils.AvatarURL(s.avatarBaseURL, a.Username)
		}
		a.Nickname = profile.Nickname
		a.Age = profile.Age
		a.Pronouns = profile.Pronouns
		a.City = profile.City
		a.Country = profile.Country
		a.ProfilePicture = picture
		a.Hobbies = slices.Clone(profile.Hobbies)
		a.LearningInterests = slices.Clone(profile.LearningInterests)
		a.Personality = profile.Personality
		a.LookingFor = profile.LookingFor
		if a.BlockedUsers == nil {
			a.BlockedUsers = []string{}
		}
		a.ProfileComplete = true
		a.UpdatedAt = s.state.now()
		updated = a.Public()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Profile completed", zap.String("username", updated.Username))
	return &updated, nil
}

// DeleteAccount 删除账号及其好友列表，消息保留；用户名保留不再开放注册
func (s *AccountService) DeleteAccount(ctx context.Context, username string) error {
	err := s.state.mutate(ctx, func(d *stateData) error {
		i := d.accountIndex(username)
		if i < 0 {
			return ErrAccountNotFound
		}
		removed := d.accounts[i].Username
		d.accounts = slices.Delete(d.accounts, i, i+1)

		key := normalizeUsername(removed)
		if !slices.Contains(d.deleted, key) {
			d.deleted = append(d.deleted, key)
		}
		for j := range d.accounts {
			d.accounts[j].BlockedUsers = slices.DeleteFunc(d.accounts[j].BlockedUsers, func(u string) bool {
				return strings.EqualFold(u, removed)
			})
		}
		delete(d.friends, key)
		for owner, list := range d.friends {
			d.friends[owner] = slices.DeleteFunc(list, func(f model.FriendSummary) bool {
				return strings.EqualFold(f.Username, removed)
			})
		}
		if strings.EqualFold(d.currentUser, removed) {
			d.currentUser = ""
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.resetMu.Lock()
	for k, rc := range s.resetCodes {
		if strings.EqualFold(rc.username, username) {
			delete(s.resetCodes, k)
		}
	}
	s.resetMu.Unlock()

	s.logger.Info("Account deleted", zap.String("username", username))
	return nil
}

// RequestPasswordReset 生成 6 位验证码（15 分钟有效），直接返回给调用方显示
func (s *AccountService) RequestPasswordReset(email string) (string, error) {
	acc, err := s.FindByEmail(email)
	if err != nil {
		return "", err
	}

	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+100000)

	s.resetMu.Lock()
	s.resetCodes[strings.ToLower(strings.TrimSpace(email))] = resetCode{
		code:      code,
		username:  acc.Username,
		expiresAt: s.state.now().Add(resetCodeTTL),
	}
	s.resetMu.Unlock()

	s.logger.Info("Password reset requested", zap.String("username", acc.Username))
	return code, nil
}

// VerifyResetCode 校验验证码（不消耗）
func (s *AccountService) VerifyResetCode(email, code string) error {
	_, err := s.lookupResetCode(email, code)
	return err
}

func (s *AccountService) lookupResetCode(email, code string) (resetCode, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	rc, ok := s.resetCodes[key]
	if !ok || rc.code != strings.TrimSpace(code) {
		return resetCode{}, ErrInvalidResetCode
	}
	if s.state.now().After(rc.expiresAt) {
		delete(s.resetCodes, key)
		return resetCode{}, ErrInvalidResetCode
	}
	return rc, nil
}

// ResetPassword 使用验证码重置密码，成功后验证码失效
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	rc, err := s.lookupResetCode(email, code)
	if err != nil {
		return err
	}
	if err := s.ChangePassword(ctx, rc.username, newPassword); err != nil {
		return err
	}

	s.resetMu.Lock()
	delete(s.resetCodes, strings.ToLower(strings.TrimSpace(email)))
	s.resetMu.Unlock()
	return nil
}
