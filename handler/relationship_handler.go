package handler

import (
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
)

type RelationshipHandler struct {
	relSvc *service.RelationshipService
}

func NewRelationshipHandler(relSvc *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{relSvc: relSvc}
}

type targetRequest struct {
	Username string `json:"username" binding:"required"`
}

// GetFriends 好友列表
func (h *RelationshipHandler) GetFriends(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, gin.H{"friends": h.relSvc.GetFriends(username)})
}

// AddFriend 添加好友
func (h *RelationshipHandler) AddFriend(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	friend, err := h.relSvc.AddFriendByUsername(c.Request.Context(), username, req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "friend added", friend)
}

// RemoveFriend 删除好友
func (h *RelationshipHandler) RemoveFriend(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.relSvc.RemoveFriend(c.Request.Context(), username, req.Username); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "friend removed", nil)
}

// BlockUser 拉黑用户
func (h *RelationshipHandler) BlockUser(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.relSvc.BlockUser(c.Request.Context(), username, req.Username); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "user blocked successfully", nil)
}

// UnblockUser 取消拉黑
func (h *RelationshipHandler) UnblockUser(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.relSvc.UnblockUser(c.Request.Context(), username, req.Username); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "user unblocked successfully", nil)
}

// GetBlockedUsers 获取拉黑列表
func (h *RelationshipHandler) GetBlockedUsers(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	blockedUsers, err := h.relSvc.GetBlockedUsers(username)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"blocked_users": blockedUsers})
}
