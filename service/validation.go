package service

import (
	"regexp"
	"slices"
	"strings"

	"merrimates/model"
)

const (
	MaxUsernameLength = 20
	MinPasswordLength = 8
	MaxPasswordLength = 20
	MinAge            = 15
	MaxAge            = 116
	MaxSelections     = 10
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	digitPattern    = regexp.MustCompile(`\d`)
	phonePattern    = regexp.MustCompile(`^\d{10,}$`)
)

// normalizeUsername 用户名大小写不敏感
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameLength {
		return validationFailed("username", ReasonInvalid, "Username must be 1-20 characters")
	}
	if !usernamePattern.MatchString(username) {
		return validationFailed("username", ReasonInvalid, "Username may only contain letters, numbers and underscores")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return validationFailed("password", ReasonInvalid, "Password must be 8-20 characters")
	}
	if !digitPattern.MatchString(password) {
		return validationFailed("password", ReasonInvalid, "Password must include at least one number")
	}
	return nil
}

// ValidateContact 邮箱（包含 @）或至少 10 位数字的手机号
func ValidateContact(contact string) error {
	if contact == "" || (!strings.Contains(contact, "@") && !phonePattern.MatchString(contact)) {
		return validationFailed("email", ReasonInvalid, "Please enter a valid email or phone number")
	}
	return nil
}

func ValidateAge(age int) error {
	if age < MinAge {
		return validationFailed("age", ReasonAgeTooYoung, "You're too young to join MerriMates, come back when you're 15!")
	}
	if age > MaxAge {
		return validationFailed("age", ReasonAgeTooOld, "Nobody is that old! Please enter your real age")
	}
	return nil
}

func validateRequired(field, value, message string) error {
	if strings.TrimSpace(value) == "" {
		return validationFailed(field, ReasonRequired, message)
	}
	return nil
}

// validateSelection 校验爱好/学习兴趣列表：1-10 个且必须在目录中
func validateSelection(field string, items []string, emptyMsg, tooManyMsg string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !model.IsKnownHobby(item) {
			return nil, validationFailed(field, ReasonInvalid, "Unknown hobby: "+item)
		}
		if !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, validationFailed(field, ReasonRequired, emptyMsg)
	}
	if len(out) > MaxSelections {
		return nil, validationFailed(field, ReasonTooMany, tooManyMsg)
	}
	return out, nil
}
