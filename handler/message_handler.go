package handler

import (
	"merrimates/middleware"
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	msgSvc *service.MessageService
}

func NewMessageHandler(msgSvc *service.MessageService) *MessageHandler {
	return &MessageHandler{msgSvc: msgSvc}
}

// SendMessage 发送私信（HTTP 方式，接收方在线时通过 WebSocket 推送）
func (h *MessageHandler) SendMessage(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	message, err := h.msgSvc.SendMessage(c.Request.Context(), username, &req)
	middleware.RecordOperation("message_sent", err)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, message)
}

// GetMessage 获取单条消息
func (h *MessageHandler) GetMessage(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid message ID")
		return
	}

	message, err := h.msgSvc.GetMessage(username, msgID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, message)
}

// MarkRead 标记消息为已读
func (h *MessageHandler) MarkRead(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid message ID")
		return
	}

	message, err := h.msgSvc.MarkRead(c.Request.Context(), username, msgID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, message)
}
