package storage

import (
	"context"
	"errors"
	"fmt"

	"merrimates/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormKV 基于 kv_entries 表的键值存储（postgres / sqlite）
type GormKV struct {
	db *gorm.DB
}

// NewGormKV 创建存储并自动迁移 kv_entries 表
func NewGormKV(db *gorm.DB) (*GormKV, error) {
	if err := db.AutoMigrate(&model.KVEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}
	return &GormKV{db: db}, nil
}

func (s *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	var entry model.KVEntry
	err := s.db.WithContext(ctx).Where("kv_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *GormKV) Set(ctx context.Context, key, value string) error {
	entry := model.KVEntry{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *GormKV) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("kv_key = ?", key).Delete(&model.KVEntry{}).Error; err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
