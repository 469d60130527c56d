package handler

import (
	"strconv"
	"strings"

	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	convSvc *service.ConversationService
}

func NewConversationHandler(convSvc *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convSvc: convSvc}
}

// conversationParam :id 可以是会话ID，也可以是对方的用户名
func conversationParam(c *gin.Context, username string) string {
	id := c.Param("id")
	if !strings.Contains(id, service.ConversationSeparator) {
		return service.ConversationID(username, id)
	}
	return id
}

// GetConversations 获取会话列表
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	// 分页参数
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	conversations := h.convSvc.GetConversations(username, limit, offset)
	utils.SuccessResponse(c, gin.H{"conversations": conversations})
}

// SearchConversations 按对方用户名/昵称搜索会话
func (h *ConversationHandler) SearchConversations(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	conversations := h.convSvc.SearchConversations(username, c.Query("q"))
	utils.SuccessResponse(c, gin.H{"conversations": conversations})
}

// GetMessages 获取消息历史
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	// 分页参数
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	conversationID := conversationParam(c, username)
	messages, err := h.convSvc.GetMessages(username, conversationID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"conversation_id": conversationID, "messages": messages})
}

// MarkRead 整个会话标记为已读
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	count, err := h.convSvc.MarkConversationRead(c.Request.Context(), username, conversationParam(c, username))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"marked": count})
}
