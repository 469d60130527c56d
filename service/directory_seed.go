package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"merrimates/model"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
)

// SeedDemoDirectory 生成 n 个资料完整的演示用户，相同 seed 生成相同的数据
// 用户名已存在时跳过，返回实际创建的数量
func SeedDemoDirectory(ctx context.Context, accounts *AccountService, n int, seed int64, logger *zap.Logger) (int, error) {
	faker := gofakeit.New(uint64(seed))
	names := make([]string, 0, len(model.HobbyCatalog))
	for _, h := range model.HobbyCatalog {
		names = append(names, h.Name)
	}

	created := 0
	for i := 0; i < n; i++ {
		username := demoUsername(faker.FirstName(), faker.Numerify("###"))
		password := "demo" + faker.Numerify("####")
		email := strings.ToLower(username) + "@example.com"

		acc, err := accounts.CreateAccount(ctx, username, password, email)
		if errors.Is(err, ErrDuplicateUsername) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", username, err)
		}

		_, err = accounts.CompleteProfile(ctx, acc.Username, model.Profile{
			Nickname:          faker.FirstName(),
			Age:               faker.Number(MinAge, 70),
			Pronouns:          faker.RandomString(model.PronounOptions[:3]),
			City:              faker.City(),
			Country:           faker.Country(),
			Hobbies:           pickDistinct(faker, names, faker.Number(1, 5)),
			LearningInterests: pickDistinct(faker, names, faker.Number(1, 3)),
			Personality:       model.Personality(faker.RandomString([]string{"extrovert", "introvert"})),
			LookingFor:        model.Preference(faker.RandomString([]string{"extrovert", "introvert", "both"})),
		})
		if err != nil {
			return created, fmt.Errorf("failed to seed profile for %s: %w", username, err)
		}
		created++
	}

	logger.Info("Demo directory seeded", zap.Int("created", created), zap.Int64("seed", seed))
	return created, nil
}

func demoUsername(first, suffix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(first) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "mate"
	}
	if len(name) > MaxUsernameLength-len(suffix)-1 {
		name = name[:MaxUsernameLength-len(suffix)-1]
	}
	return name + "_" + suffix
}

func pickDistinct(faker *gofakeit.Faker, pool []string, n int) []string {
	out := make([]string, 0, n)
	for len(out) < n && len(out) < len(pool) {
		name := faker.RandomString(pool)
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
