package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmptyContent       = errors.New("message content is required")
	ErrStorageWriteFailed = errors.New("storage write failed")
	ErrAccountNotFound    = errors.New("account not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrSelfRelation       = errors.New("cannot target yourself")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrNotBlocked         = errors.New("user not blocked")
	ErrInvalidResetCode   = errors.New("invalid verification code")
	ErrWrongStep          = errors.New("onboarding step not active")
	ErrNoOnboarding       = errors.New("no onboarding in progress")
	ErrNotParticipant     = errors.New("not a conversation participant")

	// ErrValidation 所有 ValidationError 都满足 errors.Is(err, ErrValidation)
	ErrValidation = errors.New("validation failed")
)

// 校验失败原因
const (
	ReasonRequired    = "required"
	ReasonInvalid     = "invalid"
	ReasonTooMany     = "too_many"
	ReasonAgeTooYoung = "age_too_young"
	ReasonAgeTooOld   = "age_too_old"
)

// ValidationError 字段校验失败
type ValidationError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"` // 面向用户的提示
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationFailed(field, reason, message string) error {
	return &ValidationError{Field: field, Reason: reason, Message: message}
}

// IsAgeBoundary 年龄越界（过小或过大）属于特殊的校验失败
func IsAgeBoundary(err error) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return ve.Reason == ReasonAgeTooYoung || ve.Reason == ReasonAgeTooOld
}
