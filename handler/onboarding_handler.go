package handler

import (
	"errors"
	"strings"

	"merrimates/model"
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
)

type OnboardingHandler struct {
	onboarding *service.OnboardingService
	accounts   *service.AccountService
}

func NewOnboardingHandler(onboarding *service.OnboardingService, accounts *service.AccountService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, accounts: accounts}
}

// flow 当前用户的引导流程；资料已完成时返回 ErrNoOnboarding
func (h *OnboardingHandler) flow(username string) (*service.OnboardingFlow, error) {
	if flow, err := h.onboarding.Get(username); err == nil {
		return flow, nil
	}
	acc, err := h.accounts.GetAccount(username)
	if err != nil {
		return nil, err
	}
	if acc.ProfileComplete {
		return nil, service.ErrNoOnboarding
	}
	return h.onboarding.GetOrStart(acc.Username), nil
}

// respondStep 失败时同时返回当前流程状态，方便前端显示临时错误
func respondStep(c *gin.Context, flow *service.OnboardingFlow, err error) {
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			utils.UnprocessableEntity(c, ve.Message, gin.H{"error": ve, "onboarding": flow.View()})
			return
		}
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, flow.View())
}

// GetState 获取引导进度
func (h *OnboardingHandler) GetState(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	flow, err := h.flow(username)
	if errors.Is(err, service.ErrNoOnboarding) {
		utils.SuccessResponse(c, gin.H{"username": username, "step": service.StepComplete})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, flow.View())
}

// SubmitProfile 基本资料
func (h *OnboardingHandler) SubmitProfile(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req service.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	flow, err := h.flow(username)
	if err != nil {
		respondError(c, err)
		return
	}
	respondStep(c, flow, flow.SubmitProfile(req))
}

type selectionRequest struct {
	Items []string `json:"items"`
}

type toggleRequest struct {
	Name string `json:"name" binding:"required"`
}

// SubmitHobbies 提交爱好选择并进入下一步
func (h *OnboardingHandler) SubmitHobbies(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	flow, err := h.flow(username)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Items != nil {
		if err := flow.SetHobbies(req.Items); err != nil {
			respondStep(c, flow, err)
			return
		}
	}
	respondStep(c, flow, flow.SubmitHobbies())
}

// ToggleHobby 选中/取消单个爱好
func (h *OnboardingHandler) ToggleHobby(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	flow, err := h.flow(username)
	if err != nil {
		respondError(c, err)
		return
	}
	respondStep(c, flow, flow.ToggleHobby(req.Name))
}

// SubmitLearning 提交学习兴趣并进入下一步
func (h *OnboardingHandler) SubmitLearning(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	flow, err := h.flow(username)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Items != nil {
		if err := flow.SetLearningInterests(req.Items); err != nil {
			respondStep(c, flow, err)
			return
		}
	}
	respondStep(c, flow, flow.SubmitLearningInterests())
}

// ToggleLearning 选中/取消单个学习兴趣
func (h *OnboardingHandler) ToggleLearning(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	flow, err := h.flow(username)
	if err != nil {
		respondError(c, err)
		return
	}
	respondStep(c, flow, flow.ToggleLearningInterest(req.Name))
}

// SubmitPersonality 最后一步，写入完整资料
func (h *OnboardingHandler) SubmitPersonality(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var req struct {
		Personality string `json:"personality"`
		LookingFor  string `json:"looking_for"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	flow, err := h.flow(username)
	if err != nil {
		respondError(c, err)
		return
	}

	acc, err := flow.SubmitPersonality(c.Request.Context(),
		model.Personality(strings.ToLower(req.Personality)),
		model.Preference(strings.ToLower(req.LookingFor)))
	if err != nil {
		respondStep(c, flow, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"account": acc, "onboarding": flow.View()})
}

// Back 返回上一步
func (h *OnboardingHandler) Back(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	flow, err := h.flow(username)
	if err != nil {
		respondError(c, err)
		return
	}
	respondStep(c, flow, flow.Back())
}

// GetCatalog 爱好目录、代词选项和年龄段
func GetCatalog(c *gin.Context) {
	utils.SuccessResponse(c, gin.H{
		"categories":  model.HobbyCategories,
		"hobbies":     model.HobbiesByCategory(c.Query("category")),
		"pronouns":    model.PronounOptions,
		"age_buckets": service.AgeBuckets,
	})
}
