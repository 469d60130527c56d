package handler

import (
	"time"

	"merrimates/middleware"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers 路由依赖的所有处理器
type Handlers struct {
	Auth         *AuthHandler
	Profile      *ProfileHandler
	Onboarding   *OnboardingHandler
	Relationship *RelationshipHandler
	Search       *SearchHandler
	Conversation *ConversationHandler
	Message      *MessageHandler
	Hub          *Hub

	Logger         *zap.Logger
	LoginRateLimit int // 每分钟每个 IP
}

// SetupRouter 注册所有路由
func SetupRouter(h *Handlers) *gin.Engine {
	r := gin.Default()

	// 注册统一错误处理中间件
	r.Use(middleware.ErrorHandlerMiddleware(h.Logger))
	r.Use(middleware.PrometheusMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket 连接（使用 token 认证，不需要 HTTP 中间件）
	if h.Hub != nil {
		r.GET("/ws", HandleWebSocket(h.Hub))
	}

	loginLimiter := middleware.RateLimiter(h.LoginRateLimit, time.Minute)
	r.POST("/login", loginLimiter, h.Auth.Login)
	r.POST("/api/auth/username-login", loginLimiter, h.Auth.Login)

	// 公开接口
	public := r.Group("/api/v1")
	{
		public.POST("/auth/signup", h.Auth.Signup)
		public.POST("/auth/password-reset/request", loginLimiter, h.Auth.RequestPasswordReset)
		public.POST("/auth/password-reset/verify", loginLimiter, h.Auth.VerifyResetCode)
		public.POST("/auth/password-reset/confirm", loginLimiter, h.Auth.ConfirmPasswordReset)
		public.GET("/catalog/hobbies", GetCatalog)
	}

	// HTTP API 路由组（需要认证）
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	{
		api.POST("/logout", h.Auth.Logout)

		// 个人资料
		api.GET("/me", h.Profile.GetMe)
		api.POST("/me", h.Profile.UpdateMe)
		api.POST("/me/password", h.Profile.ChangePassword)
		api.DELETE("/me", h.Profile.DeleteMe)

		// 引导流程
		api.GET("/onboarding", h.Onboarding.GetState)
		api.POST("/onboarding/profile", h.Onboarding.SubmitProfile)
		api.POST("/onboarding/hobbies", h.Onboarding.SubmitHobbies)
		api.POST("/onboarding/hobbies/toggle", h.Onboarding.ToggleHobby)
		api.POST("/onboarding/learning", h.Onboarding.SubmitLearning)
		api.POST("/onboarding/learning/toggle", h.Onboarding.ToggleLearning)
		api.POST("/onboarding/personality", h.Onboarding.SubmitPersonality)
		api.POST("/onboarding/back", h.Onboarding.Back)

		// 好友
		api.GET("/friends", h.Relationship.GetFriends)
		api.POST("/friends", h.Relationship.AddFriend)
		api.POST("/friends/remove", h.Relationship.RemoveFriend)

		// 用户关系（拉黑）
		api.POST("/relationships/block", h.Relationship.BlockUser)
		api.POST("/relationships/unblock", h.Relationship.UnblockUser)
		api.GET("/relationships/blocked", h.Relationship.GetBlockedUsers)

		// 搜索
		api.GET("/search", h.Search.Search)

		// 会话管理
		api.GET("/conversations", h.Conversation.GetConversations)
		api.GET("/conversations/search", h.Conversation.SearchConversations)
		api.GET("/conversations/:id/messages", h.Conversation.GetMessages)
		api.POST("/conversations/:id/read", h.Conversation.MarkRead)

		// 消息
		api.POST("/messages", h.Message.SendMessage)
		api.GET("/messages/:id", h.Message.GetMessage)
		api.POST("/messages/:id/read", h.Message.MarkRead)
	}

	return r
}
