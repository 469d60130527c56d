package service

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"merrimates/model"

	"go.uber.org/zap"
)

// AgeBuckets 搜索页的年龄段选项
var AgeBuckets = []string{"15-20", "21-30", "31-40", "41-50", "51+"}

// SearchFilter 搜索条件，零值字段表示不过滤
type SearchFilter struct {
	Query       string            `form:"q"`
	MinAge      int               `form:"min_age"`
	MaxAge      int               `form:"max_age"` // 0 表示没有上限
	Hobby       string            `form:"hobby"`
	Personality model.Personality `form:"personality"`
}

// ParseAgeRange 解析年龄段："21-30" → [21,30]，"51+" → [51,∞)，空字符串不过滤
func ParseAgeRange(bucket string) (minAge, maxAge int, err error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" || strings.EqualFold(bucket, "all") {
		return 0, 0, nil
	}
	if lo, ok := strings.CutSuffix(bucket, "+"); ok {
		minAge, err = strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid age range %q", bucket)
		}
		return minAge, 0, nil
	}
	lo, hi, ok := strings.Cut(bucket, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid age range %q", bucket)
	}
	if minAge, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
		return 0, 0, fmt.Errorf("invalid age range %q", bucket)
	}
	if maxAge, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
		return 0, 0, fmt.Errorf("invalid age range %q", bucket)
	}
	if maxAge < minAge {
		return 0, 0, fmt.Errorf("invalid age range %q", bucket)
	}
	return minAge, maxAge, nil
}

func matchesQuery(a model.Account, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(a.Username), query) ||
		strings.Contains(strings.ToLower(a.DisplayName()), query) {
		return true
	}
	for _, h := range a.Hobbies {
		if strings.Contains(strings.ToLower(h), query) {
			return true
		}
	}
	for _, h := range a.LearningInterests {
		if strings.Contains(strings.ToLower(h), query) {
			return true
		}
	}
	return false
}

// FilterDirectory 过滤用户目录，结果保持目录顺序
// 先排除拉黑用户，再做文本匹配，最后按年龄、爱好、性格依次过滤
func FilterDirectory(directory []model.Account, blocked []string, filter SearchFilter) []model.Account {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]model.Account, 0)

	for _, a := range directory {
		if slices.ContainsFunc(blocked, func(u string) bool { return strings.EqualFold(u, a.Username) }) {
			continue
		}
		if !matchesQuery(a, query) {
			continue
		}
		if filter.MinAge > 0 && a.Age < filter.MinAge {
			continue
		}
		if filter.MaxAge > 0 && a.Age > filter.MaxAge {
			continue
		}
		if filter.Hobby != "" && !slices.Contains(a.Hobbies, filter.Hobby) {
			continue
		}
		if filter.Personality != "" && a.Personality != filter.Personality {
			continue
		}
		out = append(out, a)
	}
	return out
}

type SearchService struct {
	state  *AppState
	logger *zap.Logger
}

func NewSearchService(state *AppState, logger *zap.Logger) *SearchService {
	return &SearchService{state: state, logger: logger}
}

// Search 在已完成资料的其他用户中搜索
func (s *SearchService) Search(viewer string, filter SearchFilter) ([]model.FriendSummary, error) {
	var (
		directory []model.Account
		blocked   []string
		found     bool
	)
	s.state.read(func(d *stateData) {
		me := d.account(viewer)
		if me == nil {
			return
		}
		found = true
		blocked = slices.Clone(me.BlockedUsers)
		for _, a := range d.accounts {
			if !a.ProfileComplete || strings.EqualFold(a.Username, me.Username) {
				continue
			}
			directory = append(directory, a.Clone())
		}
	})
	if !found {
		return nil, ErrAccountNotFound
	}

	matched := FilterDirectory(directory, blocked, filter)
	results := make([]model.FriendSummary, 0, len(matched))
	for _, a := range matched {
		results = append(results, a.Summary())
	}
	return results, nil
}
