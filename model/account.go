package model

import (
	"slices"
	"time"
)

// Personality 性格类型
type Personality string

const (
	PersonalityExtrovert Personality = "extrovert"
	PersonalityIntrovert Personality = "introvert"
)

func (p Personality) Valid() bool {
	return p == PersonalityExtrovert || p == PersonalityIntrovert
}

// Preference 希望结识的性格类型
type Preference string

const (
	PreferenceExtrovert Preference = "extrovert"
	PreferenceIntrovert Preference = "introvert"
	PreferenceBoth      Preference = "both"
)

func (p Preference) Valid() bool {
	return p == PreferenceExtrovert || p == PreferenceIntrovert || p == PreferenceBoth
}

// Account 用户账号（凭证 + 资料）
type Account struct {
	Username          string      `json:"username"`
	Password          string      `json:"password"` // bcrypt hash
	Email             string      `json:"email"`     // 邮箱或手机号
	Nickname          string      `json:"nickname,omitempty"`
	Age               int         `json:"age,omitempty"`
	Pronouns          string      `json:"pronouns,omitempty"`
	City              string      `json:"city,omitempty"`
	Country           string      `json:"country,omitempty"`
	ProfilePicture    string      `json:"profile_picture,omitempty"`
	Hobbies           []string    `json:"hobbies,omitempty"`
	LearningInterests []string    `json:"learning_interests,omitempty"`
	Personality       Personality `json:"personality,omitempty"`
	LookingFor        Preference  `json:"looking_for,omitempty"`
	BlockedUsers      []string    `json:"blocked_users"`
	ProfileComplete   bool        `json:"profile_complete"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Clone 深拷贝，避免调用方修改内部切片
func (a Account) Clone() Account {
	a.Hobbies = slices.Clone(a.Hobbies)
	a.LearningInterests = slices.Clone(a.LearningInterests)
	a.BlockedUsers = slices.Clone(a.BlockedUsers)
	return a
}

// DisplayName 昵称优先，没有则使用用户名
func (a Account) DisplayName() string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return a.Username
}

// Summary 生成对外公开的好友摘要
func (a Account) Summary() FriendSummary {
	var top string
	if len(a.Hobbies) > 0 {
		top = a.Hobbies[0]
	}
	return FriendSummary{
		Username:          a.Username,
		Nickname:          a.DisplayName(),
		ProfilePicture:    a.ProfilePicture,
		TopHobby:          top,
		Hobbies:           slices.Clone(a.Hobbies),
		Age:               a.Age,
		Pronouns:          a.Pronouns,
		City:              a.City,
		Country:           a.Country,
		Personality:       a.Personality,
		LearningInterests: slices.Clone(a.LearningInterests),
	}
}

// Public 去掉密码后的账号视图
func (a Account) Public() Account {
	p := a.Clone()
	p.Password = ""
	return p
}

// AccountUpdate 可修改的资料字段（nil 表示不修改）
type AccountUpdate struct {
	Email             *string      `json:"email,omitempty"`
	Nickname          *string      `json:"nickname,omitempty"`
	Age               *int         `json:"age,omitempty"`
	Pronouns          *string      `json:"pronouns,omitempty"`
	City              *string      `json:"city,omitempty"`
	Country           *string      `json:"country,omitempty"`
	ProfilePicture    *string      `json:"profile_picture,omitempty"`
	Hobbies           []string     `json:"hobbies,omitempty"`
	LearningInterests []string     `json:"learning_interests,omitempty"`
	Personality       *Personality `json:"personality,omitempty"`
	LookingFor        *Preference  `json:"looking_for,omitempty"`
}

// Profile 引导流程最终提交的完整资料
type Profile struct {
	Nickname          string
	Age               int
	Pronouns          string
	City              string
	Country           string
	ProfilePicture    string
	Hobbies           []string
	LearningInterests []string
	Personality       Personality
	LookingFor        Preference
}
