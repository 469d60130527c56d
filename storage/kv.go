// Package storage 持久化键值存储后端
package storage

import "context"

// KV 持久化键值存储
// Get 返回 found=false 表示键不存在（不是错误）
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
