package handler

import (
	"merrimates/model"
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	accounts *service.AccountService
	sessions *service.SessionManager
}

func NewProfileHandler(accounts *service.AccountService, sessions *service.SessionManager) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, sessions: sessions}
}

// GetMe 当前用户资料和应展示的页面
func (h *ProfileHandler) GetMe(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	acc, err := h.accounts.GetAccount(username)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"account": acc,
		"view":    h.sessions.CurrentPage(username),
	})
}

// UpdateMe 修改资料（只修改请求中出现的字段）
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req model.AccountUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	acc, err := h.accounts.UpdateAccount(c.Request.Context(), username, req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, acc)
}

// ChangePassword 验证当前密码后修改
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if _, err := h.accounts.Authenticate(username, req.CurrentPassword); err != nil {
		respondError(c, err)
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), username, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "password updated", nil)
}

// DeleteMe 删除账号
func (h *ProfileHandler) DeleteMe(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	if err := h.sessions.DeleteAccount(c.Request.Context(), username); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "account deleted", nil)
}
