package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"merrimates/model"

	"go.uber.org/zap"
)

// OnboardingStep 引导流程状态
type OnboardingStep string

const (
	StepProfile           OnboardingStep = "profile"
	StepHobbies           OnboardingStep = "hobbies"
	StepLearningInterests OnboardingStep = "learningInterests"
	StepPersonality       OnboardingStep = "personality"
	StepWelcome           OnboardingStep = "welcome"
	StepComplete          OnboardingStep = "complete"
)

const (
	taskClearError = "clear_error"
	taskWelcome    = "welcome"
)

// ProfileInput 资料页表单
type ProfileInput struct {
	Nickname       string `json:"nickname"`
	Age            *int   `json:"age"`
	Pronouns       string `json:"pronouns"`
	CustomPronouns string `json:"custom_pronouns"` // pronouns 为 other 时必填
	City           string `json:"city"`
	Country        string `json:"country"`
	ProfilePicture string `json:"profile_picture"`
}

// OnboardingDraft 引导过程中累积的资料（提交前不写入账号）
type OnboardingDraft struct {
	Nickname          string            `json:"nickname"`
	Age               int               `json:"age,omitempty"`
	Pronouns          string            `json:"pronouns"`
	City              string            `json:"city"`
	Country           string            `json:"country"`
	ProfilePicture    string            `json:"profile_picture,omitempty"`
	Hobbies           []string          `json:"hobbies"`
	LearningInterests []string          `json:"learning_interests"`
	Personality       model.Personality `json:"personality,omitempty"`
	LookingFor        model.Preference  `json:"looking_for,omitempty"`
}

func (d OnboardingDraft) clone() OnboardingDraft {
	d.Hobbies = slices.Clone(d.Hobbies)
	d.LearningInterests = slices.Clone(d.LearningInterests)
	return d
}

// OnboardingView 当前流程状态
type OnboardingView struct {
	Username string          `json:"username"`
	Step     OnboardingStep  `json:"step"`
	Draft    OnboardingDraft `json:"draft"`
	Error    string          `json:"error,omitempty"`
}

// OnboardingFlow 单个用户的引导流程：profile → hobbies → learningInterests → personality → complete
type OnboardingFlow struct {
	mu         sync.Mutex
	username   string
	step       OnboardingStep
	draft      OnboardingDraft
	err        string
	accounts   *AccountService
	scheduler  *Scheduler
	delay      time.Duration
	logger     *zap.Logger
	onComplete func(username string)
}

func newOnboardingFlow(username string, accounts *AccountService, delay time.Duration, logger *zap.Logger, onComplete func(string)) *OnboardingFlow {
	return &OnboardingFlow{
		username:   username,
		step:       StepProfile,
		draft:      OnboardingDraft{Hobbies: []string{}, LearningInterests: []string{}},
		accounts:   accounts,
		scheduler:  NewScheduler(),
		delay:      delay,
		logger:     logger,
		onComplete: onComplete,
	}
}

func (f *OnboardingFlow) Username() string {
	return f.username
}

func (f *OnboardingFlow) Step() OnboardingStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Error 当前的临时错误提示（延迟后自动清除）
func (f *OnboardingFlow) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *OnboardingFlow) Draft() OnboardingDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.clone()
}

func (f *OnboardingFlow) View() OnboardingView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return OnboardingView{
		Username: f.username,
		Step:     f.step,
		Draft:    f.draft.clone(),
		Error:    f.err,
	}
}

// failLocked 记录错误提示并在延迟后清除；clearAge 为 true 时同时清空年龄
func (f *OnboardingFlow) failLocked(err error, clearAge bool) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		f.err = ve.Message
	} else {
		f.err = err.Error()
	}

	f.scheduler.Schedule(taskClearError, f.delay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.err = ""
		if clearAge {
			f.draft.Age = 0
		}
	})
	return err
}

func (f *OnboardingFlow) clearErrorLocked() {
	f.err = ""
	f.scheduler.Cancel(taskClearError)
}

func (f *OnboardingFlow) requireStepLocked(step OnboardingStep) error {
	if f.step != step {
		return ErrWrongStep
	}
	return nil
}

// SubmitProfile 提交基本资料并进入爱好选择
func (f *OnboardingFlow) SubmitProfile(input ProfileInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepProfile); err != nil {
		return err
	}

	if err := validateRequired("nickname", input.Nickname, "Please enter a nickname"); err != nil {
		return f.failLocked(err, false)
	}
	if input.Age == nil {
		return f.failLocked(validationFailed("age", ReasonRequired, "Please enter a valid age"), false)
	}
	if err := ValidateAge(*input.Age); err != nil {
		// 越界的年龄保留到提示消失后再清空
		f.draft.Age = *input.Age
		return f.failLocked(err, true)
	}

	pronouns := strings.TrimSpace(input.Pronouns)
	if !slices.Contains(model.PronounOptions, pronouns) {
		return f.failLocked(validationFailed("pronouns", ReasonRequired, "Please select your pronouns"), false)
	}
	if pronouns == "other" {
		pronouns = strings.TrimSpace(input.CustomPronouns)
		if pronouns == "" {
			return f.failLocked(validationFailed("pronouns", ReasonRequired, "Please enter your pronouns"), false)
		}
	}
	if strings.TrimSpace(input.City) == "" || strings.TrimSpace(input.Country) == "" {
		return f.failLocked(validationFailed("location", ReasonRequired, "Please select your location"), false)
	}

	f.draft.Nickname = strings.TrimSpace(input.Nickname)
	f.draft.Age = *input.Age
	f.draft.Pronouns = pronouns
	f.draft.City = strings.TrimSpace(input.City)
	f.draft.Country = strings.TrimSpace(input.Country)
	if input.ProfilePicture != "" {
		f.draft.ProfilePicture = input.ProfilePicture
	}

	f.clearErrorLocked()
	f.step = StepHobbies
	return nil
}

// toggle 选中/取消一个目录项，已满 10 个时拒绝新增且不修改选择
func (f *OnboardingFlow) toggleLocked(list *[]string, field, name, tooManyMsg string) error {
	if i := slices.Index(*list, name); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
		f.clearErrorLocked()
		return nil
	}
	if !model.IsKnownHobby(name) {
		return f.failLocked(validationFailed(field, ReasonInvalid, "Unknown hobby: "+name), false)
	}
	if len(*list) >= MaxSelections {
		return f.failLocked(validationFailed(field, ReasonTooMany, tooManyMsg), false)
	}
	*list = append(*list, name)
	f.clearErrorLocked()
	return nil
}

func (f *OnboardingFlow) ToggleHobby(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepHobbies); err != nil {
		return err
	}
	return f.toggleLocked(&f.draft.Hobbies, "hobbies", name, "Maximum 10 hobbies allowed")
}

// SetHobbies 整体替换爱好选择
func (f *OnboardingFlow) SetHobbies(names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepHobbies); err != nil {
		return err
	}
	list, err := validateSelection("hobbies", names, "Please select at least 1 hobby", "Maximum 10 hobbies allowed")
	if err != nil {
		return f.failLocked(err, false)
	}
	f.draft.Hobbies = list
	f.clearErrorLocked()
	return nil
}

// SubmitHobbies 至少选择 1 个爱好后进入学习兴趣
func (f *OnboardingFlow) SubmitHobbies() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepHobbies); err != nil {
		return err
	}
	if len(f.draft.Hobbies) == 0 {
		return f.failLocked(validationFailed("hobbies", ReasonRequired, "Please select at least 1 hobby"), false)
	}
	f.clearErrorLocked()
	f.step = StepLearningInterests
	return nil
}

func (f *OnboardingFlow) ToggleLearningInterest(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepLearningInterests); err != nil {
		return err
	}
	return f.toggleLocked(&f.draft.LearningInterests, "learning_interests", name, "Maximum 10 interests allowed")
}

func (f *OnboardingFlow) SetLearningInterests(names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepLearningInterests); err != nil {
		return err
	}
	list, err := validateSelection("learning_interests", names, "Please select at least 1 interest to learn", "Maximum 10 interests allowed")
	if err != nil {
		return f.failLocked(err, false)
	}
	f.draft.LearningInterests = list
	f.clearErrorLocked()
	return nil
}

func (f *OnboardingFlow) SubmitLearningInterests() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepLearningInterests); err != nil {
		return err
	}
	if len(f.draft.LearningInterests) == 0 {
		return f.failLocked(validationFailed("learning_interests", ReasonRequired, "Please select at least 1 interest to learn"), false)
	}
	f.clearErrorLocked()
	f.step = StepPersonality
	return nil
}

// SubmitPersonality 最后一步：写入完整资料，进入欢迎页，延迟后自动完成
func (f *OnboardingFlow) SubmitPersonality(ctx context.Context, personality model.Personality, lookingFor model.Preference) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireStepLocked(StepPersonality); err != nil {
		return nil, err
	}
	if !personality.Valid() {
		return nil, f.failLocked(validationFailed("personality", ReasonRequired, "Please select your personality type"), false)
	}
	if !lookingFor.Valid() {
		return nil, f.failLocked(validationFailed("looking_for", ReasonRequired, "Please select what you're looking for"), false)
	}

	f.draft.Personality = personality
	f.draft.LookingFor = lookingFor

	acc, err := f.accounts.CompleteProfile(ctx, f.username, model.Profile{
		Nickname:          f.draft.Nickname,
		Age:               f.draft.Age,
		Pronouns:          f.draft.Pronouns,
		City:              f.draft.City,
		Country:           f.draft.Country,
		ProfilePicture:    f.draft.ProfilePicture,
		Hobbies:           f.draft.Hobbies,
		LearningInterests: f.draft.LearningInterests,
		Personality:       personality,
		LookingFor:        lookingFor,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, f.failLocked(err, false)
		}
		return nil, err
	}

	f.clearErrorLocked()
	f.draft = OnboardingDraft{Hobbies: []string{}, LearningInterests: []string{}}
	f.step = StepWelcome
	f.scheduler.Schedule(taskWelcome, f.delay, f.finish)

	f.logger.Info("Onboarding committed", zap.String("username", f.username))
	return acc, nil
}

func (f *OnboardingFlow) finish() {
	f.mu.Lock()
	if f.step != StepWelcome {
		f.mu.Unlock()
		return
	}
	f.step = StepComplete
	f.mu.Unlock()

	if f.onComplete != nil {
		f.onComplete(f.username)
	}
}

// Back 返回上一步，已填写的内容保留
func (f *OnboardingFlow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.step {
	case StepProfile:
		return nil
	case StepHobbies:
		f.step = StepProfile
	case StepLearningInterests:
		f.step = StepHobbies
	case StepPersonality:
		f.step = StepLearningInterests
	default:
		return ErrWrongStep
	}
	f.clearErrorLocked()
	return nil
}

// Close 取消所有未执行的延迟回调
func (f *OnboardingFlow) Close() {
	f.scheduler.Stop()
}

// OnboardingService 管理每个用户的引导流程
type OnboardingService struct {
	mu         sync.Mutex
	flows      map[string]*OnboardingFlow
	accounts   *AccountService
	delay      time.Duration
	logger     *zap.Logger
	onComplete func(username string)
}

func NewOnboardingService(accounts *AccountService, delay time.Duration, logger *zap.Logger) *OnboardingService {
	return &OnboardingService{
		flows:    make(map[string]*OnboardingFlow),
		accounts: accounts,
		delay:    delay,
		logger:   logger,
	}
}

// SetCompletionHandler 欢迎页结束后的回调（用于依赖注入）
func (s *OnboardingService) SetCompletionHandler(fn func(username string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

// Start 开始新的引导流程，替换已有流程
func (s *OnboardingService) Start(username string) *OnboardingFlow {
	key := normalizeUsername(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.flows[key]; ok {
		old.Close()
	}
	var flow *OnboardingFlow
	flow = newOnboardingFlow(username, s.accounts, s.delay, s.logger, func(u string) {
		s.completed(key, flow)
	})
	s.flows[key] = flow
	return flow
}

func (s *OnboardingService) completed(key string, flow *OnboardingFlow) {
	s.mu.Lock()
	if s.flows[key] == flow {
		delete(s.flows, key)
	}
	fn := s.onComplete
	s.mu.Unlock()

	if fn != nil {
		fn(flow.Username())
	}
}

func (s *OnboardingService) Get(username string) (*OnboardingFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[normalizeUsername(username)]
	if !ok {
		return nil, ErrNoOnboarding
	}
	return flow, nil
}

// GetOrStart 没有进行中的流程时开始一个新流程
func (s *OnboardingService) GetOrStart(username string) *OnboardingFlow {
	if flow, err := s.Get(username); err == nil {
		return flow
	}
	return s.Start(username)
}

// Cancel 结束流程并取消它的延迟回调
func (s *OnboardingService) Cancel(username string) {
	key := normalizeUsername(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if flow, ok := s.flows[key]; ok {
		flow.Close()
		delete(s.flows, key)
	}
}

// Close 结束所有流程
func (s *OnboardingService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, flow := range s.flows {
		flow.Close()
		delete(s.flows, key)
	}
}
