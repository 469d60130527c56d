package handler

import (
	"errors"

	"merrimates/middleware"
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
)

// respondError 根据业务错误类型返回对应的状态码
func respondError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.UnprocessableEntity(c, ve.Message, ve)
	case errors.Is(err, service.ErrDuplicateUsername):
		utils.Conflict(c, "Username already taken")
	case errors.Is(err, service.ErrInvalidCredentials):
		utils.Unauthorized(c, "Invalid username or password")
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrNoOnboarding),
		errors.Is(err, service.ErrNotBlocked):
		utils.NotFound(c, err.Error())
	case errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrUserBlocked):
		utils.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrWrongStep):
		utils.Conflict(c, err.Error())
	case errors.Is(err, service.ErrSelfRelation),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrInvalidResetCode):
		utils.BadRequest(c, err.Error())
	default:
		_ = c.Error(err)
		utils.InternalServerError(c, "internal server error")
	}
}

func currentUsername(c *gin.Context) (string, bool) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		utils.Unauthorized(c, "unauthorized")
	}
	return username, ok
}
