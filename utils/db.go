package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// CustomLogger 自定义 GORM 日志器：只打印慢查询和真实错误
type CustomLogger struct {
	SlowThreshold time.Duration // 慢查询阈值
	Log           *zap.Logger
}

func (l *CustomLogger) LogMode(level logger.LogLevel) logger.Interface {
	return l
}

func (l *CustomLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	// 不打印 Info 日志
}

func (l *CustomLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	// 不打印 Warn 日志
}

func (l *CustomLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	// 只打印真实错误，忽略 "record not found"
	if msg != "record not found" {
		l.Log.Error("[GORM Error] " + fmt.Sprintf(msg, data...))
	}
}

func (l *CustomLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	// 只打印慢查询（超过阈值）或真实错误
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Log.Error("[GORM Error]", zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	} else if elapsed >= l.SlowThreshold {
		l.Log.Warn("[SLOW SQL]", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}

// InitDB 初始化数据库连接（driver: postgres | sqlite）
func InitDB(driver, databaseURL string, log *zap.Logger) error {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(databaseURL)
	case "sqlite":
		dialector = sqlite.Open(databaseURL)
	default:
		return fmt.Errorf("unsupported database driver: %s", driver)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: &CustomLogger{
			SlowThreshold: 100 * time.Millisecond, // 慢查询阈值：100ms
			Log:           log,
		},
	})
	if err != nil {
		return err
	}

	// 获取底层的 sql.DB 以配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	// 连接池配置（sqlite 单写者）
	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetMaxIdleConns(20)
	}

	log.Info("✅ Database connected", zap.String("driver", driver))
	return nil
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
