package handler

import (
	"strings"

	"merrimates/model"
	"merrimates/service"
	"merrimates/utils"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	searchSvc *service.SearchService
}

func NewSearchHandler(searchSvc *service.SearchService) *SearchHandler {
	return &SearchHandler{searchSvc: searchSvc}
}

// Search 搜索用户：q、age（年龄段，如 21-30 / 51+）、min_age、max_age、hobby、personality
func (h *SearchHandler) Search(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		return
	}

	var filter service.SearchFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if bucket := c.Query("age"); bucket != "" {
		minAge, maxAge, err := service.ParseAgeRange(bucket)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
		filter.MinAge, filter.MaxAge = minAge, maxAge
	}

	// 下拉框的 "all" 等价于不过滤
	if strings.EqualFold(filter.Hobby, "all") {
		filter.Hobby = ""
	}
	if p := strings.ToLower(string(filter.Personality)); p == "" || p == "all" {
		filter.Personality = ""
	} else {
		filter.Personality = model.Personality(p)
	}

	results, err := h.searchSvc.Search(username, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"results": results, "total": len(results)})
}
