package model

// Snapshot 应用状态完整快照（持久化和恢复的单位）
type Snapshot struct {
	Accounts      []Account                  `json:"accounts"`
	Friends       map[string][]FriendSummary `json:"friends"` // key: 小写用户名
	Messages      []Message                  `json:"messages"`
	Conversations []Conversation             `json:"conversations"`
	CurrentUser   string                     `json:"current_user,omitempty"`

	// 已删除账号的用户名（小写），不可再注册
	DeletedUsernames []string `json:"deleted_usernames,omitempty"`
}

// KVEntry 键值存储表（SQL 后端）
type KVEntry struct {
	Key       string `gorm:"column:kv_key;type:varchar(191);primaryKey"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt int64  `gorm:"autoUpdateTime:milli"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
