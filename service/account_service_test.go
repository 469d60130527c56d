package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"merrimates/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestCreateAccount_DuplicateIgnoresCase 用户名只有大小写不同也视为重复
func TestCreateAccount_DuplicateIgnoresCase(t *testing.T) {
	pairs := [][2]string{
		{"alice", "ALICE"},
		{"Bob_99", "bob_99"},
		{"cHaRlIe", "Charlie"},
	}

	for _, p := range pairs {
		t.Run(p[0]+"/"+p[1], func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			_, err := env.accounts.CreateAccount(ctx, p[0], testPassword, "first@example.com")
			require.NoError(t, err)

			_, err = env.accounts.CreateAccount(ctx, p[1], testPassword, "second@example.com")
			assert.ErrorIs(t, err, ErrDuplicateUsername)
			assert.Len(t, env.accounts.ListAccounts(), 1)
		})
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		contact  string
		field    string
		message  string
	}{
		{"empty username", "", testPassword, "a@b.com", "username", "Username must be 1-20 characters"},
		{"long username", "abcdefghijklmnopqrstu", testPassword, "a@b.com", "username", "Username must be 1-20 characters"},
		{"username symbols", "bad-name!", testPassword, "a@b.com", "username", "Username may only contain letters, numbers and underscores"},
		{"short password", "alice", "abc1", "a@b.com", "password", "Password must be 8-20 characters"},
		{"long password", "alice", "abcdefghijklmnopqrst1", "a@b.com", "password", "Password must be 8-20 characters"},
		{"password without digit", "alice", "password", "a@b.com", "password", "Password must include at least one number"},
		{"bad contact", "alice", testPassword, "not-an-email", "email", "Please enter a valid email or phone number"},
		{"short phone", "alice", testPassword, "12345", "email", "Please enter a valid email or phone number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.accounts.CreateAccount(context.Background(), tt.username, tt.password, tt.contact)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.message, ve.Message)
		})
	}

	t.Run("phone number accepted", func(t *testing.T) {
		env := newTestEnv(t)
		acc, err := env.accounts.CreateAccount(context.Background(), "phoneuser", testPassword, "5551234567")
		require.NoError(t, err)
		assert.Equal(t, "5551234567", acc.Email)
	})
}

// TestCreateAccount_CredentialsOnly 注册只保存凭证，密码以 bcrypt 存储
func TestCreateAccount_CredentialsOnly(t *testing.T) {
	env := newTestEnv(t)
	acc, err := env.accounts.CreateAccount(context.Background(), "alice", testPassword, "alice@example.com")
	require.NoError(t, err)

	assert.False(t, acc.ProfileComplete)
	assert.Empty(t, acc.Password, "返回值不应包含密码")
	assert.Empty(t, acc.Hobbies)

	snap := env.state.Snapshot()
	require.Len(t, snap.Accounts, 1)
	assert.NotEqual(t, testPassword, snap.Accounts[0].Password)
	assert.Contains(t, snap.Accounts[0].Password, "$2")
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.accounts.CreateAccount(context.Background(), "Alice", testPassword, "alice@example.com")
	require.NoError(t, err)

	acc, err := env.accounts.Authenticate("aLiCe", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "Alice", acc.Username)

	_, err = env.accounts.Authenticate("alice", "password2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.accounts.Authenticate("nobody", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// TestAuthenticate_CorruptHash 存储的哈希损坏时返回内部错误，而不是密码错误
func TestAuthenticate_CorruptHash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.kv.Set(ctx, testPrefix+KeyUsers,
		`[{"username":"alice","password":"not-a-hash","email":"alice@example.com","blocked_users":[],"profile_complete":true}]`))
	require.NoError(t, env.sessions.Load(ctx))

	_, err := env.accounts.Authenticate("alice", testPassword)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, bcrypt.ErrHashTooShort)

	_, err = env.sessions.Login(ctx, "alice", testPassword)
	assert.ErrorIs(t, err, bcrypt.ErrHashTooShort)
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice")
	ctx := context.Background()

	nickname := "Ally"
	city := "Porto"
	acc, err := env.accounts.UpdateAccount(ctx, "alice", model.AccountUpdate{
		Nickname: &nickname,
		City:     &city,
		Hobbies:  []string{"Chess", "Chess", "Yoga"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ally", acc.Nickname)
	assert.Equal(t, "Porto", acc.City)
	assert.Equal(t, "Portugal", acc.Country, "未提供的字段保持不变")
	assert.Equal(t, []string{"Chess", "Yoga"}, acc.Hobbies)

	t.Run("age re-validated", func(t *testing.T) {
		_, err := env.accounts.UpdateAccount(ctx, "alice", model.AccountUpdate{Age: intPtr(14)})
		assert.True(t, IsAgeBoundary(err))

		got, err := env.accounts.GetAccount("alice")
		require.NoError(t, err)
		assert.Equal(t, 25, got.Age)
	})

	t.Run("too many hobbies", func(t *testing.T) {
		_, err := env.accounts.UpdateAccount(ctx, "alice", model.AccountUpdate{Hobbies: hobbyNames(11)})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, ReasonTooMany, ve.Reason)
	})

	t.Run("invalid personality", func(t *testing.T) {
		p := model.Personality("ambivert")
		_, err := env.accounts.UpdateAccount(ctx, "alice", model.AccountUpdate{Personality: &p})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := env.accounts.UpdateAccount(ctx, "ghost", model.AccountUpdate{Nickname: &nickname})
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

// TestCompleteProfile 引导完成后资料完整，未上传头像时使用默认头像
func TestCompleteProfile(t *testing.T) {
	env := newTestEnv(t)
	acc := env.mustCreateUser(t, "alice", "Chess", "Yoga")

	assert.True(t, acc.ProfileComplete)
	assert.Equal(t, testAvatarURL+"?seed=alice", acc.ProfilePicture)
	assert.Equal(t, []string{"Chess", "Yoga"}, acc.Hobbies)
	assert.Empty(t, acc.BlockedUsers)

	_, err := env.accounts.CompleteProfile(context.Background(), "alice", model.Profile{Nickname: "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice")
	ctx := context.Background()

	assert.ErrorIs(t, env.accounts.ChangePassword(ctx, "alice", "short"), ErrValidation)
	require.NoError(t, env.accounts.ChangePassword(ctx, "alice", "newpass99"))

	_, err := env.accounts.Authenticate("alice", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.accounts.Authenticate("alice", "newpass99")
	assert.NoError(t, err)
}

// TestDeleteAccount 删除账号会移除好友列表和指向它的好友关系，消息保留
func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice")
	env.mustCreateUser(t, "bob")
	ctx := context.Background()

	_, err := env.rel.AddFriendByUsername(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = env.rel.AddFriendByUsername(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = env.messages.SendMessage(ctx, "alice", &SendMessageRequest{Recipient: "bob", Content: "hi"})
	require.NoError(t, err)

	_, err = env.sessions.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	require.NoError(t, env.sessions.DeleteAccount(ctx, "alice"))

	_, err = env.accounts.GetAccount("alice")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.False(t, env.rel.IsFriend("bob", "alice"))
	assert.Empty(t, env.rel.GetFriends("alice"))

	_, active := env.sessions.CurrentUser()
	assert.False(t, active, "删除账号后会话应清除")

	snap := env.state.Snapshot()
	assert.Len(t, snap.Messages, 1)

	assert.ErrorIs(t, env.accounts.DeleteAccount(ctx, "alice"), ErrAccountNotFound)
}

// TestDeleteAccount_NameReserved 删除后的用户名不能再注册，旧消息和拉黑记录不会被新账号继承
func TestDeleteAccount_NameReserved(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice")
	env.mustCreateUser(t, "bob")
	env.mustCreateUser(t, "carol")
	ctx := context.Background()

	sendOrFail(t, env, "alice", "bob", "private note for bob")
	require.NoError(t, env.rel.BlockUser(ctx, "carol", "bob"))

	require.NoError(t, env.sessions.DeleteAccount(ctx, "bob"))

	_, err := env.accounts.CreateAccount(ctx, "BOB", testPassword, "new@example.com")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	_, _, err = env.sessions.Signup(ctx, "bob", testPassword, "new@example.com")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	blocked, err := env.rel.GetBlockedUsers("carol")
	require.NoError(t, err)
	assert.Empty(t, blocked)

	// 已删除账号的旧 Token 也读不到会话
	_, err = env.convs.GetMessages("bob", ConversationID("bob", "alice"), 0, 0)
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.Empty(t, env.convs.GetConversations("bob", 0, 0))

	msgs, err := env.convs.GetMessages("alice", ConversationID("alice", "bob"), 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	_, err = env.messages.GetMessage("bob", msgs[0].ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = env.messages.MarkRead(ctx, "bob", msgs[0].ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = env.convs.MarkConversationRead(ctx, "bob", ConversationID("alice", "bob"))
	assert.ErrorIs(t, err, ErrNotParticipant)

	// 重启后依然保留
	reloaded := newTestEnvWithKV(t, env.kv)
	require.NoError(t, reloaded.sessions.Load(ctx))
	_, err = reloaded.accounts.CreateAccount(ctx, "Bob", testPassword, "new@example.com")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Equal(t, []string{"bob"}, reloaded.state.Snapshot().DeletedUsernames)
}

// TestCompleteProfile_KeepsBlocks 引导期间拉黑的用户在完成资料后仍然被拉黑
func TestCompleteProfile_KeepsBlocks(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "mallory", "Chess")
	ctx := context.Background()

	_, err := env.accounts.CreateAccount(ctx, "carol", testPassword, "carol@example.com")
	require.NoError(t, err)
	require.NoError(t, env.rel.BlockUser(ctx, "carol", "mallory"))

	_, err = env.accounts.CompleteProfile(ctx, "carol", completeProfile("Chess"))
	require.NoError(t, err)

	assert.True(t, env.rel.IsBlocked("carol", "mallory"))
	results, err := env.search.Search("carol", SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice")
	ctx := context.Background()

	_, err := env.accounts.RequestPasswordReset("nobody@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	code, err := env.accounts.RequestPasswordReset("ALICE@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), code)

	assert.ErrorIs(t, env.accounts.VerifyResetCode("alice@example.com", "000000"), ErrInvalidResetCode)
	assert.NoError(t, env.accounts.VerifyResetCode("alice@example.com", code))

	assert.ErrorIs(t, env.accounts.ResetPassword(ctx, "alice@example.com", code, "nodigits"), ErrValidation)
	require.NoError(t, env.accounts.ResetPassword(ctx, "alice@example.com", code, "reset1234"))

	_, err = env.accounts.Authenticate("alice", "reset1234")
	assert.NoError(t, err)

	// 验证码只能使用一次
	assert.ErrorIs(t, env.accounts.ResetPassword(ctx, "alice@example.com", code, "again1234"), ErrInvalidResetCode)
}

func TestPasswordReset_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice")

	code, err := env.accounts.RequestPasswordReset("alice@example.com")
	require.NoError(t, err)

	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	env.state.now = func() time.Time { return later }

	assert.ErrorIs(t, env.accounts.VerifyResetCode("alice@example.com", code), ErrInvalidResetCode)
}
