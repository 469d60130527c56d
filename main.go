package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merrimates/config"
	"merrimates/handler"
	"merrimates/middleware"
	"merrimates/service"
	"merrimates/storage"
	"merrimates/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func init() {
	// 设置时区为 UTC（推荐服务端统一使用 UTC）
	time.Local = time.UTC
}

// openStorage 根据配置选择键值存储后端
func openStorage(cfg *config.Config, logger *zap.Logger) (storage.KV, *redis.Client, error) {
	switch cfg.StorageBackend {
	case "memory":
		return storage.NewMemoryKV(), nil, nil
	case "sqlite", "postgres":
		if err := utils.InitDB(cfg.StorageBackend, cfg.DatabaseURL, logger); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		kv, err := storage.NewGormKV(utils.GetDB())
		return kv, nil, err
	case "redis":
		if err := utils.InitRedis(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB, logger); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storage.NewRedisKV(utils.GetRedis()), utils.GetRedis(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

func main() {
	// 加载配置
	cfg := config.Load()

	logger := utils.InitLogger(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	kv, rdb, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer utils.CloseDB()
	defer utils.CloseRedis()

	// 初始化认证中间件
	middleware.InitAuth(cfg.JWTSecret, cfg.TokenTTL)

	// 应用状态 + 服务
	persistence := service.NewPersistenceService(kv, cfg.SnapshotPrefix, logger)
	state := service.NewAppState(persistence, logger)
	accountSvc := service.NewAccountService(state, logger, cfg.BcryptCost, cfg.AvatarBaseURL)
	onboardingSvc := service.NewOnboardingService(accountSvc, cfg.TransitionDelay, logger)
	defer onboardingSvc.Close()
	sessions := service.NewSessionManager(state, accountSvc, onboardingSvc, logger)
	relSvc := service.NewRelationshipService(state, logger)
	msgSvc := service.NewMessageService(state, logger)
	convSvc := service.NewConversationService(state, logger)
	searchSvc := service.NewSearchService(state, logger)

	ctx := context.Background()
	if err := sessions.Load(ctx); err != nil {
		logger.Warn("State loaded with errors", zap.Error(err))
	}

	if cfg.SeedDemoUsers > 0 {
		if _, err := service.SeedDemoDirectory(ctx, accountSvc, cfg.SeedDemoUsers, cfg.Seed, logger); err != nil {
			logger.Warn("Failed to seed demo directory", zap.Error(err))
		}
	}

	// 创建 WebSocket Hub 并注入推送依赖
	hub := handler.NewHub(msgSvc, convSvc, rdb, logger)
	hub.StartPubSub()
	defer hub.StopPubSub()
	msgSvc.SetMessageNotifier(hub)
	msgSvc.SetConversationNotifier(hub)
	convSvc.SetMessageNotifier(hub)
	convSvc.SetConversationNotifier(hub)

	onboardingSvc.SetCompletionHandler(func(username string) {
		logger.Info("Onboarding finished", zap.String("username", username))
	})

	r := handler.SetupRouter(&handler.Handlers{
		Auth:           handler.NewAuthHandler(sessions, accountSvc, logger),
		Profile:        handler.NewProfileHandler(accountSvc, sessions),
		Onboarding:     handler.NewOnboardingHandler(onboardingSvc, accountSvc),
		Relationship:   handler.NewRelationshipHandler(relSvc),
		Search:         handler.NewSearchHandler(searchSvc),
		Conversation:   handler.NewConversationHandler(convSvc),
		Message:        handler.NewMessageHandler(msgSvc),
		Hub:            hub,
		Logger:         logger,
		LoginRateLimit: cfg.LoginRateLimit,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("MerriMates service starting", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := sessions.Save(shutdownCtx); err != nil {
		logger.Error("Failed to save state on shutdown", zap.Error(err))
	}
}
