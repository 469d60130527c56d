package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	StorageBackend string // 'memory' | 'sqlite' | 'postgres' | 'redis'
	DatabaseURL    string
	RedisURL       string
	RedisPassword  string
	RedisDB        int
	JWTSecret      string
	TokenTTL       time.Duration
	SnapshotPrefix string // 快照键前缀
	BcryptCost     int
	AvatarBaseURL  string

	// 欢迎页自动跳转、错误提示自动清除的延迟
	TransitionDelay time.Duration

	SeedDemoUsers int   // 启动时生成的演示用户数量（0 表示不生成）
	Seed          int64 // 演示数据随机种子

	LogLevel string
	LogFile  string

	LoginRateLimit int // 每分钟每个 IP 的登录次数
}

func Load() *Config {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTLHours, _ := strconv.Atoi(getEnv("TOKEN_TTL_HOURS", "24"))
	bcryptCost, _ := strconv.Atoi(getEnv("BCRYPT_COST", "10"))
	transitionMS, _ := strconv.Atoi(getEnv("TRANSITION_DELAY_MS", "3000"))
	seedUsers, _ := strconv.Atoi(getEnv("SEED_DEMO_USERS", "0"))
	seed, _ := strconv.ParseInt(getEnv("SEED", "42"), 10, 64)
	loginRate, _ := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10"))

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		StorageBackend:  getEnv("STORAGE_BACKEND", "sqlite"),
		DatabaseURL:     getEnv("DATABASE_URL", "merrimates.db"),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		JWTSecret:       getEnv("JWT_SECRET", "merrimates-dev-secret"),
		TokenTTL:        time.Duration(tokenTTLHours) * time.Hour,
		SnapshotPrefix:  getEnv("SNAPSHOT_PREFIX", "merrimates_"),
		BcryptCost:      bcryptCost,
		AvatarBaseURL:   getEnv("AVATAR_BASE_URL", "https://api.dicebear.com/7.x/avataaars/svg"),
		TransitionDelay: time.Duration(transitionMS) * time.Millisecond,
		SeedDemoUsers:   seedUsers,
		Seed:            seed,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
		LoginRateLimit:  loginRate,
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
