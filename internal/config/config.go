package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config 服务配置，全部来自环境变量
type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxUploadMB int

	LogLevel  string
	LogFormat string // json / text

	// 训练数据：csv 或 sqlite
	TrainDataSource string
	DatasetPath     string
	SamplesDBPath   string

	// 模型持久化：file / sqlite / redis
	ModelStore  string
	ModelDir    string
	ModelDBPath string

	Redis struct {
		Addr      string
		Password  string
		DB        int
		ModelKey  string
		KeyPrefix string
	}

	EvalCache struct {
		Enabled bool
		Backend string // memory / redis
		TTL     time.Duration
		Size    int
	}

	Training struct {
		ForestTrees int
		BoostRounds int
		Timeout     time.Duration
		TaskTTL     time.Duration
	}

	Auth struct {
		AdminCode string
		JWTSecret string
		TokenTTL  time.Duration
	}

	// 定时重训练
	Retrain struct {
		Enabled       bool
		Schedule      string // cron表达式，默认 "0 3 * * 0"（每周日凌晨3点）
		RetryCount    int
		RetryInterval time.Duration
	}

	Mail struct {
		Host     string
		Port     int
		User     string
		Password string
		From     string
		To       []string
	}
}

// LoadEnv 加载 .env.local 与 .env，已存在的环境变量不会被覆盖
// 返回实际加载的文件
func LoadEnv(files ...string) []string {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	return loaded
}

// Load 读取配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Port = getEnvString("PORT", "8080")
	cfg.GinMode = getEnvString("GIN_MODE", "release")
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"})
	cfg.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 10)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvString("LOG_FORMAT", "json")

	cfg.TrainDataSource = strings.ToLower(getEnvString("TRAIN_DATA_SOURCE", "csv"))
	cfg.DatasetPath = getEnvString("DATASET_PATH", "data/DATASET.csv")
	cfg.SamplesDBPath = getEnvString("SAMPLES_DB_PATH", "data/samples.db")

	cfg.ModelStore = strings.ToLower(getEnvString("MODEL_STORE", "file"))
	cfg.ModelDir = getEnvString("MODEL_DIR", "models")
	cfg.ModelDBPath = getEnvString("MODEL_DB_PATH", "data/models.db")

	cfg.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.ModelKey = getEnvString("REDIS_MODEL_KEY", "credit-risk:models")
	cfg.Redis.KeyPrefix = getEnvString("REDIS_KEY_PREFIX", "credit-risk:eval:")

	cfg.EvalCache.Enabled = getEnvBool("EVAL_CACHE_ENABLED", true)
	cfg.EvalCache.Backend = strings.ToLower(getEnvString("EVAL_CACHE_BACKEND", "memory"))
	cfg.EvalCache.TTL = getEnvDuration("EVAL_CACHE_TTL", 30*time.Minute)
	cfg.EvalCache.Size = getEnvInt("EVAL_CACHE_SIZE", 1000)

	cfg.Training.ForestTrees = getEnvInt("FOREST_TREES", 100)
	cfg.Training.BoostRounds = getEnvInt("BOOST_ROUNDS", 100)
	cfg.Training.Timeout = getEnvDuration("TRAIN_TIMEOUT", 30*time.Minute)
	cfg.Training.TaskTTL = getEnvDuration("TRAIN_TASK_TTL", 30*time.Minute)

	cfg.Auth.AdminCode = getEnvString("ADMIN_CODE", "")
	cfg.Auth.JWTSecret = getEnvString("JWT_SECRET", "")
	cfg.Auth.TokenTTL = getEnvDuration("TOKEN_TTL", 12*time.Hour)

	cfg.Retrain.Enabled = getEnvBool("RETRAIN_ENABLED", false)
	cfg.Retrain.Schedule = getEnvString("RETRAIN_SCHEDULE", "0 3 * * 0")
	cfg.Retrain.RetryCount = getEnvInt("RETRAIN_RETRY_COUNT", 2)
	cfg.Retrain.RetryInterval = getEnvDuration("RETRAIN_RETRY_INTERVAL", 10*time.Minute)

	cfg.Mail.Host = getEnvString("SMTP_HOST", "")
	cfg.Mail.Port = getEnvInt("SMTP_PORT", 465)
	cfg.Mail.User = getEnvString("SMTP_USER", "")
	cfg.Mail.Password = getEnvString("SMTP_PASS", "")
	cfg.Mail.From = getEnvString("SMTP_FROM", cfg.Mail.User)
	cfg.Mail.To = getEnvList("NOTIFY_EMAILS", nil)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	var errs []error
	switch c.ModelStore {
	case "file", "sqlite", "redis":
	default:
		errs = append(errs, errors.New("MODEL_STORE 只能是 file、sqlite 或 redis"))
	}
	switch c.TrainDataSource {
	case "csv", "sqlite":
	default:
		errs = append(errs, errors.New("TRAIN_DATA_SOURCE 只能是 csv 或 sqlite"))
	}
	switch c.EvalCache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, errors.New("EVAL_CACHE_BACKEND 只能是 memory 或 redis"))
	}
	if c.Retrain.Enabled {
		if _, err := cron.ParseStandard(c.Retrain.Schedule); err != nil {
			errs = append(errs, errors.New("RETRAIN_SCHEDULE 不是有效的cron表达式: "+err.Error()))
		}
	}
	if c.Auth.AdminCode != "" && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("设置 ADMIN_CODE 时必须同时设置 JWT_SECRET"))
	}
	return errors.Join(errs...)
}

// MailEnabled 邮件配置是否完整
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != "" && c.Mail.User != "" && c.Mail.Password != "" && len(c.Mail.To) > 0
}

// 辅助函数
func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList 逗号分隔
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
