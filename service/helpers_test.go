package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"merrimates/model"
	"merrimates/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPrefix    = "merrimates_"
	testAvatarURL = "https://avatars.test/svg"
	testDelay     = 30 * time.Millisecond
	testPassword  = "password1"
)

var errDiskFull = errors.New("disk full")

// flakyKV 可以模拟读写失败的内存存储
type flakyKV struct {
	*storage.MemoryKV
	failSet atomic.Bool
	failGet atomic.Bool
}

func newFlakyKV() *flakyKV {
	return &flakyKV{MemoryKV: storage.NewMemoryKV()}
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet.Load() {
		return "", false, errDiskFull
	}
	return f.MemoryKV.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet.Load() {
		return errDiskFull
	}
	return f.MemoryKV.Set(ctx, key, value)
}

// recordingNotifier 记录推送事件
type recordingNotifier struct {
	mu           sync.Mutex
	newMessages  []string // 接收者
	readReceipts []string // 原发送者
	convUpdates  map[string]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{convUpdates: make(map[string]int)}
}

func (r *recordingNotifier) SendNewMessage(username string, msg *model.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newMessages = append(r.newMessages, username)
	return true
}

func (r *recordingNotifier) SendReadReceipt(username string, msg *model.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readReceipts = append(r.readReceipts, username)
	return true
}

func (r *recordingNotifier) SendConversationUpdate(username string, conv *model.Conversation, unreadCount int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convUpdates[username] = unreadCount
	return true
}

type testEnv struct {
	kv         *flakyKV
	state      *AppState
	accounts   *AccountService
	rel        *RelationshipService
	messages   *MessageService
	convs      *ConversationService
	search     *SearchService
	onboarding *OnboardingService
	sessions   *SessionManager
	notifier   *recordingNotifier
}

// fixedClock 每次调用前进一秒，保证时间有序且可比较
func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestEnvWithKV(t *testing.T, kv *flakyKV) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	state := NewAppState(NewPersistenceService(kv, testPrefix, logger), logger)
	state.now = fixedClock()

	accounts := NewAccountService(state, logger, bcrypt.MinCost, testAvatarURL)
	onboarding := NewOnboardingService(accounts, testDelay, logger)
	t.Cleanup(onboarding.Close)

	notifier := newRecordingNotifier()
	messages := NewMessageService(state, logger)
	messages.SetMessageNotifier(notifier)
	messages.SetConversationNotifier(notifier)
	convs := NewConversationService(state, logger)
	convs.SetMessageNotifier(notifier)
	convs.SetConversationNotifier(notifier)

	return &testEnv{
		kv:         kv,
		state:      state,
		accounts:   accounts,
		rel:        NewRelationshipService(state, logger),
		messages:   messages,
		convs:      convs,
		search:     NewSearchService(state, logger),
		onboarding: onboarding,
		sessions:   NewSessionManager(state, accounts, onboarding, logger),
		notifier:   notifier,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithKV(t, newFlakyKV())
}

func intPtr(v int) *int {
	return &v
}

// completeProfile 默认的完整资料
func completeProfile(hobbies ...string) model.Profile {
	if len(hobbies) == 0 {
		hobbies = []string{"Painting"}
	}
	return model.Profile{
		Nickname:          "Nick",
		Age:               25,
		Pronouns:          "they/them",
		City:              "Lisbon",
		Country:           "Portugal",
		Hobbies:           hobbies,
		LearningInterests: []string{"Cooking"},
		Personality:       model.PersonalityIntrovert,
		LookingFor:        model.PreferenceBoth,
	}
}

// mustCreateUser 创建资料完整的用户
func (e *testEnv) mustCreateUser(t *testing.T, username string, hobbies ...string) *model.Account {
	t.Helper()
	ctx := context.Background()

	_, err := e.accounts.CreateAccount(ctx, username, testPassword, username+"@example.com")
	require.NoError(t, err)
	acc, err := e.accounts.CompleteProfile(ctx, username, completeProfile(hobbies...))
	require.NoError(t, err)
	return acc
}

// hobbyNames 目录中的前 n 个爱好
func hobbyNames(n int) []string {
	names := make([]string, 0, n)
	for _, h := range model.HobbyCatalog[:n] {
		names = append(names, h.Name)
	}
	return names
}
