package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPersistence_RoundTrip 保存后重新加载得到相同的状态
func TestPersistence_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustCreateUser(t, "alice", "Chess")
	env.mustCreateUser(t, "bob")
	_, err := env.rel.AddFriendByUsername(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, env.rel.BlockUser(ctx, "bob", "alice"))
	require.NoError(t, env.rel.UnblockUser(ctx, "bob", "alice"))
	sendOrFail(t, env, "alice", "bob", "one")
	sendOrFail(t, env, "bob", "alice", "two")
	_, err = env.sessions.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	before := env.state.Snapshot()

	reloaded := newTestEnvWithKV(t, env.kv)
	require.NoError(t, reloaded.sessions.Load(ctx))
	after := reloaded.state.Snapshot()

	want, err := json.Marshal(before)
	require.NoError(t, err)
	got, err := json.Marshal(after)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	require.Len(t, after.Messages, 2)
	assert.Equal(t, "one", after.Messages[0].Content)
	assert.Equal(t, "two", after.Messages[1].Content)
	assert.True(t, reloaded.rel.IsFriend("alice", "bob"))

	cur, ok := reloaded.sessions.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "alice", cur.Username)
}

func TestPersistence_MissingKeys(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sessions.Load(context.Background()))

	snap := env.state.Snapshot()
	assert.Empty(t, snap.Accounts)
	assert.Empty(t, snap.Messages)
	assert.NotNil(t, snap.Friends)
	assert.Empty(t, snap.CurrentUser)
}

// TestPersistence_MalformedJSON 损坏的集合按空处理，其他集合正常加载
func TestPersistence_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustCreateUser(t, "alice")

	require.NoError(t, env.kv.Set(ctx, testPrefix+KeyMessages, "{not json"))
	require.NoError(t, env.kv.Set(ctx, testPrefix+KeyFriends, "[1,2,3]"))

	reloaded := newTestEnvWithKV(t, env.kv)
	require.NoError(t, reloaded.sessions.Load(ctx))

	snap := reloaded.state.Snapshot()
	assert.Len(t, snap.Accounts, 1)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Friends)

	// 加载后依然可以正常写入
	reloaded.mustCreateUser(t, "bob")
	sendOrFail(t, reloaded, "alice", "bob", "hi")
	assert.NoError(t, reloaded.state.LastPersistError())
}

// TestPersistence_WriteFailure 写入失败不回滚内存，错误可查询
func TestPersistence_WriteFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustCreateUser(t, "alice")
	env.mustCreateUser(t, "bob")

	env.kv.failSet.Store(true)
	msg, err := env.messages.SendMessage(ctx, "alice", &SendMessageRequest{Recipient: "bob", Content: "hi"})
	require.NoError(t, err, "写入失败不影响操作结果")
	require.NotNil(t, msg)

	assert.ErrorIs(t, env.state.LastPersistError(), ErrStorageWriteFailed)
	assert.ErrorIs(t, env.state.LastPersistError(), errDiskFull)
	assert.Len(t, env.state.Snapshot().Messages, 1)

	env.kv.failSet.Store(false)
	require.NoError(t, env.sessions.Save(ctx))
	assert.NoError(t, env.state.LastPersistError())

	reloaded := newTestEnvWithKV(t, env.kv)
	require.NoError(t, reloaded.sessions.Load(ctx))
	assert.Len(t, reloaded.state.Snapshot().Messages, 1)
}

func TestPersistence_ReadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice")

	env.kv.failGet.Store(true)
	reloaded := newTestEnvWithKV(t, env.kv)
	err := reloaded.sessions.Load(context.Background())
	assert.ErrorIs(t, err, errDiskFull)
	assert.Empty(t, reloaded.state.Snapshot().Accounts)
}

// TestPersistence_CurrentUserRemovedOnLogout 退出登录后删除 current_user 键
func TestPersistence_CurrentUserRemovedOnLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustCreateUser(t, "alice")

	_, err := env.sessions.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	key := testPrefix + KeyCurrentUser
	raw, found, err := env.kv.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `"alice"`, raw)

	env.sessions.Logout(ctx, "alice")
	_, found, err = env.kv.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}
