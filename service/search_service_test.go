package service

import (
	"context"
	"testing"

	"merrimates/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directoryFixture() []model.Account {
	return []model.Account{
		{Username: "a", Nickname: "Ann", Age: 22, Hobbies: []string{"Chess", "Hiking"}, Personality: model.PersonalityIntrovert, ProfileComplete: true},
		{Username: "b", Nickname: "Ben", Age: 35, Hobbies: []string{"Yoga"}, LearningInterests: []string{"Chess"}, Personality: model.PersonalityExtrovert, ProfileComplete: true},
		{Username: "c", Nickname: "Cat", Age: 58, Hobbies: []string{"Painting"}, Personality: model.PersonalityExtrovert, ProfileComplete: true},
	}
}

func usernames(accounts []model.Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Username)
	}
	return out
}

func TestFilterDirectory(t *testing.T) {
	dir := directoryFixture()

	tests := []struct {
		name    string
		blocked []string
		filter  SearchFilter
		want    []string
	}{
		{"no filter", nil, SearchFilter{}, []string{"a", "b", "c"}},
		{"query matches hobby and interest", nil, SearchFilter{Query: "CHESS"}, []string{"a", "b"}},
		{"query matches nickname", nil, SearchFilter{Query: "cat"}, []string{"c"}},
		{"hobby facet is exact", nil, SearchFilter{Hobby: "Yoga"}, []string{"b"}},
		{"hobby facet is case sensitive", nil, SearchFilter{Hobby: "yoga"}, []string{}},
		{"hobby facet ignores interests", nil, SearchFilter{Hobby: "Chess"}, []string{"a"}},
		{"age range", nil, SearchFilter{MinAge: 21, MaxAge: 40}, []string{"a", "b"}},
		{"open-ended age", nil, SearchFilter{MinAge: 51}, []string{"c"}},
		{"personality", nil, SearchFilter{Personality: model.PersonalityExtrovert}, []string{"b", "c"}},
		{"blocked excluded", []string{"A"}, SearchFilter{Query: "chess"}, []string{"b"}},
		{"combined", nil, SearchFilter{Query: "chess", Personality: model.PersonalityIntrovert}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDirectory(dir, tt.blocked, tt.filter)
			assert.Equal(t, tt.want, usernames(got))
		})
	}
}

func TestParseAgeRange(t *testing.T) {
	tests := []struct {
		bucket  string
		min     int
		max     int
		wantErr bool
	}{
		{"", 0, 0, false},
		{"all", 0, 0, false},
		{"15-20", 15, 20, false},
		{"21-30", 21, 30, false},
		{"51+", 51, 0, false},
		{"abc", 0, 0, true},
		{"30-20", 0, 0, true},
		{"x+", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			lo, hi, err := ParseAgeRange(tt.bucket)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.min, lo)
			assert.Equal(t, tt.max, hi)
		})
	}
}

// TestSearch 搜索排除自己、未完成资料的用户和拉黑的用户
func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustCreateUser(t, "viewer", "Chess")
	env.mustCreateUser(t, "alice", "Chess")
	env.mustCreateUser(t, "bob", "Yoga")
	env.mustCreateUser(t, "carol", "Chess")
	_, err := env.accounts.CreateAccount(ctx, "pending", testPassword, "pending@example.com")
	require.NoError(t, err)

	results, err := env.search.Search("viewer", SearchFilter{})
	require.NoError(t, err)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Username)
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)

	require.NoError(t, env.rel.BlockUser(ctx, "viewer", "carol"))
	results, err = env.search.Search("viewer", SearchFilter{Hobby: "Chess"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", results[0].Username)
	assert.Equal(t, "Chess", results[0].TopHobby)

	_, err = env.search.Search("ghost", SearchFilter{})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
