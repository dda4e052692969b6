package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "dev_secret_change_me"

// 默认允许的前端来源（本地开发环境）。
var defaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://localhost:5174",
	"http://localhost:5175",
	"http://localhost:5176",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5174",
	"http://127.0.0.1:5175",
	"http://127.0.0.1:5176",
}

// Config 保存应用程序配置。
//
// 它在启动时构造一次，之后只读，通过参数注入到各个组件。
type Config struct {
	App      AppConfig      `json:"app"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env            string   `json:"env"`             // 运行环境: local / prod
	LogLevel       string   `json:"log_level"`       // 日志级别: debug / info / warn / error
	LogFormat      string   `json:"log_format"`      // 日志格式: text / json
	HTTPAddr       string   `json:"http_addr"`       // API 服务监听地址
	AllowedOrigins []string `json:"allowed_origins"` // 追加的 CORS 来源（在默认列表之后）
	SeedDemo       bool     `json:"seed_demo"`       // 启动时写入演示账号（仅限非 prod）
}

// DatabaseConfig 数据库配置。
type DatabaseConfig struct {
	Driver string `json:"driver"` // sqlite / mysql / postgres
	DSN    string `json:"dsn"`    // 数据库连接字符串
}

// RedisConfig Redis 配置（Addr 为空表示不启用）。
type RedisConfig struct {
	Addr           string        `json:"addr"`            // Redis 地址 (host:port)
	Password       string        `json:"password"`        // Redis 密码
	IdempotencyTTL time.Duration `json:"idempotency_ttl"` // 幂等键保留时间
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret                string `json:"jwt_secret"`                  // JWT 签名密钥
	AccessTokenExpireMinutes int    `json:"access_token_expire_minutes"` // 访问令牌有效期（分钟）
	BcryptCost               int    `json:"bcrypt_cost"`                 // bcrypt 计算成本
}

// TokenTTL 返回访问令牌有效期。
func (s SecurityConfig) TokenTTL() time.Duration {
	return time.Duration(s.AccessTokenExpireMinutes) * time.Minute
}

// Load 加载配置。
//
// 顺序为：默认值 -> JSON 配置文件（可选）-> .env 文件 -> 环境变量。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载或校验失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	cfg := getDefaultConfig()
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		cfg = &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		applyDefaults(cfg)
	}

	// .env 不存在时忽略
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置是否可用。
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.Security.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.App.Env == "prod" && c.Security.JWTSecret == defaultJWTSecret {
		return errors.New("jwt secret must be changed in prod")
	}
	if c.Security.AccessTokenExpireMinutes <= 0 {
		return errors.New("access_token_expire_minutes must be positive")
	}
	if c.App.Env == "prod" && c.App.SeedDemo {
		return errors.New("seed_demo is not allowed in prod")
	}
	return nil
}

// CORSOrigins 返回默认来源加上配置追加的来源（去重，保持顺序）。
func (c *Config) CORSOrigins() []string {
	seen := make(map[string]struct{}, len(defaultAllowedOrigins)+len(c.App.AllowedOrigins))
	out := make([]string, 0, len(defaultAllowedOrigins)+len(c.App.AllowedOrigins))
	for _, list := range [][]string{defaultAllowedOrigins, c.App.AllowedOrigins} {
		for _, origin := range list {
			origin = strings.TrimSpace(origin)
			if origin == "" {
				continue
			}
			if _, ok := seen[origin]; ok {
				continue
			}
			seen[origin] = struct{}{}
			out = append(out, origin)
		}
	}
	return out
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:       "local",
			LogLevel:  "info",
			LogFormat: "text",
			HTTPAddr:  ":8000",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "todo.db",
		},
		Redis: RedisConfig{
			IdempotencyTTL: 10 * time.Minute,
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Security: SecurityConfig{
			JWTSecret:                defaultJWTSecret,
			AccessTokenExpireMinutes: 30,
			BcryptCost:               10,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = defaults.App.LogFormat
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == defaults.Database.Driver {
		cfg.Database.DSN = defaults.Database.DSN
	}
	if cfg.Redis.IdempotencyTTL == 0 {
		cfg.Redis.IdempotencyTTL = defaults.Redis.IdempotencyTTL
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.AccessTokenExpireMinutes == 0 {
		cfg.Security.AccessTokenExpireMinutes = defaults.Security.AccessTokenExpireMinutes
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = defaults.Security.BcryptCost
	}
}

func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.AutomaticEnv()

	_ = v.BindEnv("jwt_secret", "JWT_SECRET", "SECRET_KEY")
	_ = v.BindEnv("db_host", "DB_HOST")
	_ = v.BindEnv("db_password", "DB_PASSWORD")
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("smtp_pass", "SMTP_PASS")

	if val := os.Getenv("APP_ENV"); val != "" {
		cfg.App.Env = val
	}
	if val := os.Getenv("APP_LOG_LEVEL"); val != "" {
		cfg.App.LogLevel = val
	}
	if val := os.Getenv("APP_LOG_FORMAT"); val != "" {
		cfg.App.LogFormat = val
	}
	if val := os.Getenv("APP_HTTP_ADDR"); val != "" {
		cfg.App.HTTPAddr = val
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		cfg.App.AllowedOrigins = append(cfg.App.AllowedOrigins, splitOrigins(val)...)
	}
	if val := os.Getenv("APP_SEED_DEMO"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.App.SeedDemo = b
		}
	}

	if val := v.GetString("jwt_secret"); val != "" {
		cfg.Security.JWTSecret = val
	}
	if val := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Security.AccessTokenExpireMinutes = i
		}
	}
	if val := os.Getenv("BCRYPT_COST"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Security.BcryptCost = i
		}
	}

	if val := os.Getenv("DB_DRIVER"); val != "" {
		cfg.Database.Driver = strings.ToLower(strings.TrimSpace(val))
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.Database.DSN = val
	} else if cfg.Database.Driver == "mysql" && (hasAnyEnv("DB_PORT", "DB_USER", "DB_NAME") || v.GetString("db_host") != "" || v.GetString("db_password") != "") {
		parsed := parseMySQLDSN(cfg.Database.DSN)
		if host := v.GetString("db_host"); host != "" {
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = host + ":" + port
		} else if port := os.Getenv("DB_PORT"); port != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + port
		}
		if user := os.Getenv("DB_USER"); user != "" {
			parsed.User = user
		}
		if pass := v.GetString("db_password"); pass != "" {
			parsed.Passwd = pass
		}
		if name := os.Getenv("DB_NAME"); name != "" {
			parsed.DBName = name
		}
		cfg.Database.DSN = parsed.FormatDSN()
	}

	if val := v.GetString("redis_addr"); val != "" {
		cfg.Redis.Addr = val
	}
	if val := v.GetString("redis_password"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_IDEMPOTENCY_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Redis.IdempotencyTTL = d
		}
	}

	if val := os.Getenv("SMTP_HOST"); val != "" {
		cfg.Email.SMTPHost = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		cfg.Email.SMTPUser = val
	}
	if val := v.GetString("smtp_pass"); val != "" {
		cfg.Email.SMTPPass = val
	}
	if val := os.Getenv("SMTP_FROM"); val != "" {
		cfg.Email.FromEmail = val
	}
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := func() *mysql.Config {
		c := mysql.NewConfig()
		c.User = "root"
		c.Net = "tcp"
		c.Addr = "localhost:3306"
		c.DBName = "todolist"
		c.ParseTime = true
		return c
	}
	if dsn == "" {
		return fallback()
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback()
	}
	return parsed
}

// UnmarshalJSON 支持 Duration 字符串（如 "10m"）。
func (r *RedisConfig) UnmarshalJSON(data []byte) error {
	type Alias RedisConfig
	aux := &struct {
		IdempotencyTTL string `json:"idempotency_ttl"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.IdempotencyTTL != "" {
		d, err := time.ParseDuration(aux.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("invalid idempotency_ttl format: %w", err)
		}
		r.IdempotencyTTL = d
	}
	return nil
}
