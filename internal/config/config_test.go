package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func missingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.json")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "todo.db" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Security.TokenTTL() != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", cfg.Security.TokenTTL())
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("redis should be disabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://todo.example.com, https://app.example.com ,")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("APP_SEED_DEMO", "true")

	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Security.JWTSecret != "s3cret" {
		t.Fatalf("expected secret from SECRET_KEY, got %q", cfg.Security.JWTSecret)
	}
	if cfg.Security.TokenTTL() != 5*time.Minute {
		t.Fatalf("expected 5m ttl, got %v", cfg.Security.TokenTTL())
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Fatalf("expected redis addr override, got %q", cfg.Redis.Addr)
	}
	if !cfg.App.SeedDemo {
		t.Fatalf("expected seed_demo from APP_SEED_DEMO")
	}

	origins := cfg.CORSOrigins()
	if origins[0] != "http://localhost:5173" {
		t.Fatalf("default origins must come first, got %v", origins)
	}
	tail := origins[len(origins)-2:]
	if tail[0] != "https://todo.example.com" || tail[1] != "https://app.example.com" {
		t.Fatalf("expected appended origins at the end, got %v", origins)
	}
}

func TestLoad_JWTSecretPrefersJWTSecretEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "primary")
	t.Setenv("SECRET_KEY", "legacy")

	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Security.JWTSecret != "primary" {
		t.Fatalf("expected JWT_SECRET to win, got %q", cfg.Security.JWTSecret)
	}
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "app": {"http_addr": ":9000", "allowed_origins": ["https://a.example.com"]},
  "redis": {"addr": "redis:6379", "idempotency_ttl": "2m"},
  "security": {"jwt_secret": "from-file"}
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":9000" {
		t.Fatalf("expected file http addr, got %q", cfg.App.HTTPAddr)
	}
	if cfg.Redis.IdempotencyTTL != 2*time.Minute {
		t.Fatalf("expected 2m idempotency ttl, got %v", cfg.Redis.IdempotencyTTL)
	}
	if cfg.Security.AccessTokenExpireMinutes != 30 || cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected defaults to fill missing fields: %+v", cfg)
	}
	if cfg.Security.JWTSecret != "from-file" {
		t.Fatalf("expected file secret, got %q", cfg.Security.JWTSecret)
	}
}

func TestLoad_MySQLFromParts(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "todo")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "todos")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"database": {"driver": "mysql", "dsn": "root:x@tcp(localhost:3306)/app?parseTime=true"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dsn := cfg.Database.DSN
	for _, want := range []string{"todo:pw@", "tcp(db.internal:3306)", "/todos"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"default secret in prod", func(c *Config) { c.App.Env = "prod" }},
		{"non-positive ttl", func(c *Config) { c.Security.AccessTokenExpireMinutes = 0 }},
		{"demo seed in prod", func(c *Config) {
			c.App.Env = "prod"
			c.Security.JWTSecret = "rotated"
			c.App.SeedDemo = true
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := getDefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := getDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
