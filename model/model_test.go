package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHobbyCatalog 每个爱好都属于已知分类，名称唯一
func TestHobbyCatalog(t *testing.T) {
	seen := map[string]bool{}
	for _, h := range HobbyCatalog {
		assert.Contains(t, HobbyCategories, h.Category, h.Name)
		assert.False(t, seen[h.Name], "duplicate hobby %s", h.Name)
		seen[h.Name] = true
		assert.True(t, IsKnownHobby(h.Name))
	}

	assert.False(t, IsKnownHobby("painting"), "区分大小写")
	assert.False(t, IsKnownHobby("Skydiving"))
}

func TestHobbiesByCategory(t *testing.T) {
	assert.Len(t, HobbiesByCategory(""), len(HobbyCatalog))
	assert.Len(t, HobbiesByCategory("all"), len(HobbyCatalog))
	assert.Empty(t, HobbiesByCategory("Unknown"))

	total := 0
	for _, c := range HobbyCategories {
		hs := HobbiesByCategory(c)
		assert.NotEmpty(t, hs, c)
		for _, h := range hs {
			assert.Equal(t, c, h.Category)
		}
		total += len(hs)
	}
	assert.Equal(t, len(HobbyCatalog), total)

	// 返回的是副本
	all := HobbiesByCategory("")
	all[0].Name = "changed"
	assert.NotEqual(t, "changed", HobbyCatalog[0].Name)
}

// TestAccount_Summary 摘要使用昵称和第一个爱好，不共享切片
func TestAccount_Summary(t *testing.T) {
	a := Account{
		Username: "alice",
		Password: "$2a$hash",
		Hobbies:  []string{"Chess", "Hiking"},
	}

	s := a.Summary()
	assert.Equal(t, "alice", s.Nickname)
	assert.Equal(t, "Chess", s.TopHobby)

	a.Nickname = "Ali"
	assert.Equal(t, "Ali", a.Summary().Nickname)

	s.Hobbies[0] = "changed"
	assert.Equal(t, "Chess", a.Hobbies[0])

	assert.Empty(t, Account{Username: "bob"}.Summary().TopHobby)
	assert.Empty(t, a.Public().Password)
	assert.Equal(t, "$2a$hash", a.Password)
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, PersonalityIntrovert.Valid())
	assert.False(t, Personality("ambivert").Valid())
	assert.True(t, PreferenceBoth.Valid())
	assert.False(t, Preference("").Valid())
}
