package utils

import (
	"net/url"
	"strings"
)

// AvatarURL 根据种子生成确定性的头像地址
func AvatarURL(baseURL, seed string) string {
	return strings.TrimRight(baseURL, "?") + "?seed=" + url.QueryEscape(seed)
}
