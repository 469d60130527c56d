package service

import (
	"context"
	"strings"

	"merrimates/model"

	"go.uber.org/zap"
)

// View 当前应展示的页面
type View string

const (
	ViewLogin             View = "login"
	ViewProfileSetup      View = "profileSetup"
	ViewHobbies           View = "hobbies"
	ViewLearningInterests View = "learningInterests"
	ViewPersonality       View = "personality"
	ViewWelcome           View = "welcome"
	ViewMain              View = "main"
)

const (
	RedirectDashboard  = "/dashboard"
	RedirectOnboarding = "/onboarding/profile"
)

// LoginResult 登录结果
type LoginResult struct {
	Account         *model.Account `json:"account"`
	ProfileComplete bool           `json:"profileComplete"`
	RedirectTo      string         `json:"redirectTo"`
}

// SessionManager 管理状态的加载/保存、当前会话和页面
type SessionManager struct {
	state      *AppState
	accounts   *AccountService
	onboarding *OnboardingService
	logger     *zap.Logger
}

func NewSessionManager(state *AppState, accounts *AccountService, onboarding *OnboardingService, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		state:      state,
		accounts:   accounts,
		onboarding: onboarding,
		logger:     logger,
	}
}

// Load 启动时恢复状态；当前用户已不存在时清除会话
func (m *SessionManager) Load(ctx context.Context) error {
	err := m.state.Load(ctx)

	var stale bool
	m.state.read(func(d *stateData) {
		stale = d.currentUser != "" && d.account(d.currentUser) == nil
	})
	if stale {
		m.setCurrentUser(ctx, "")
	}
	return err
}

func (m *SessionManager) Save(ctx context.Context) error {
	return m.state.Save(ctx)
}

func (m *SessionManager) setCurrentUser(ctx context.Context, username string) {
	_ = m.state.mutate(ctx, func(d *stateData) error {
		d.currentUser = username
		return nil
	})
}

// Signup 注册并开始引导流程
func (m *SessionManager) Signup(ctx context.Context, username, password, email string) (*model.Account, *OnboardingFlow, error) {
	acc, err := m.accounts.CreateAccount(ctx, username, password, email)
	if err != nil {
		return nil, nil, err
	}
	m.setCurrentUser(ctx, acc.Username)
	flow := m.onboarding.Start(acc.Username)
	return acc, flow, nil
}

// Login 登录；资料未完成且没有进行中的流程时重新开始引导
func (m *SessionManager) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	acc, err := m.accounts.Authenticate(username, password)
	if err != nil {
		return nil, err
	}
	m.setCurrentUser(ctx, acc.Username)

	result := &LoginResult{Account: acc, ProfileComplete: acc.ProfileComplete, RedirectTo: RedirectDashboard}
	if !acc.ProfileComplete {
		m.onboarding.GetOrStart(acc.Username)
		result.RedirectTo = RedirectOnboarding
	}

	m.logger.Info("User logged in", zap.String("username", acc.Username), zap.Bool("profile_complete", acc.ProfileComplete))
	return result, nil
}

// Logout 退出登录并取消引导流程中未执行的回调
func (m *SessionManager) Logout(ctx context.Context, username string) {
	m.onboarding.Cancel(username)

	var active bool
	m.state.read(func(d *stateData) {
		active = strings.EqualFold(d.currentUser, username)
	})
	if active {
		m.setCurrentUser(ctx, "")
	}
}

// DeleteAccount 删除账号并结束会话
func (m *SessionManager) DeleteAccount(ctx context.Context, username string) error {
	if err := m.accounts.DeleteAccount(ctx, username); err != nil {
		return err
	}
	m.onboarding.Cancel(username)
	return nil
}

// CurrentUser 最近一次登录的用户
func (m *SessionManager) CurrentUser() (*model.Account, bool) {
	var username string
	m.state.read(func(d *stateData) {
		username = d.currentUser
	})
	if username == "" {
		return nil, false
	}
	acc, err := m.accounts.GetAccount(username)
	if err != nil {
		return nil, false
	}
	return acc, true
}

// CurrentPage 根据账号状态和引导进度决定页面
func (m *SessionManager) CurrentPage(username string) View {
	acc, err := m.accounts.GetAccount(username)
	if err != nil {
		return ViewLogin
	}

	if flow, err := m.onboarding.Get(username); err == nil {
		switch flow.Step() {
		case StepProfile:
			return ViewProfileSetup
		case StepHobbies:
			return ViewHobbies
		case StepLearningInterests:
			return ViewLearningInterests
		case StepPersonality:
			return ViewPersonality
		case StepWelcome:
			return ViewWelcome
		}
	}

	if !acc.ProfileComplete {
		return ViewProfileSetup
	}
	return ViewMain
}
