package handler

import (
	"errors"
	"net/http"
	"strings"

	"merrimates/middleware"
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	sessions *service.SessionManager
	accounts *service.AccountService
	logger   *zap.Logger
}

func NewAuthHandler(sessions *service.SessionManager, accounts *service.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, accounts: accounts, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 用户名密码登录，响应格式 {success, profileComplete, redirectTo, token} 或 {error}
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	middleware.RecordOperation("login", err)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		h.logger.Error("Login error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during login"})
		return
	}

	token, err := middleware.GenerateToken(result.Account.Username)
	if err != nil {
		h.logger.Error("Failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"profileComplete": result.ProfileComplete,
		"redirectTo":      result.RedirectTo,
		"token":           token,
	})
}

// Signup 注册并开始引导流程
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Email    string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	acc, flow, err := h.sessions.Signup(c.Request.Context(), req.Username, req.Password, req.Email)
	middleware.RecordOperation("signup", err)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(acc.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "account created", gin.H{
		"account":    acc,
		"token":      token,
		"onboarding": flow.View(),
		"redirectTo": service.RedirectOnboarding,
	})
}

// Logout 退出登录
func (h *AuthHandler) Logout(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	h.sessions.Logout(c.Request.Context(), username)
	utils.SuccessWithMessage(c, "logged out", nil)
}

// RequestPasswordReset 生成验证码并直接返回（没有真实的发送渠道）
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	code, err := h.accounts.RequestPasswordReset(req.Email)
	middleware.RecordOperation("password_reset_request", err)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"code": code, "expires_in": 900})
}

// VerifyResetCode 校验验证码
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.accounts.VerifyResetCode(req.Email, req.Code); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "code verified", nil)
}

// ConfirmPasswordReset 使用验证码设置新密码
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Code        string `json:"code" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	err := h.accounts.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword)
	middleware.RecordOperation("password_reset", err)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "password updated", nil)
}
