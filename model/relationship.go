package model

import "slices"

// FriendSummary 好友摘要（添加好友时对方公开资料的快照）
type FriendSummary struct {
	Username          string      `json:"username"`
	Nickname          string      `json:"nickname"`
	ProfilePicture    string      `json:"profile_picture"`
	TopHobby          string      `json:"top_hobby"`
	Hobbies           []string    `json:"hobbies"`
	Age               int         `json:"age"`
	Pronouns          string      `json:"pronouns"`
	City              string      `json:"city"`
	Country           string      `json:"country"`
	Personality       Personality `json:"personality"`
	LearningInterests []string    `json:"learning_interests"`
}

func (f FriendSummary) Clone() FriendSummary {
	f.Hobbies = slices.Clone(f.Hobbies)
	f.LearningInterests = slices.Clone(f.LearningInterests)
	return f
}
