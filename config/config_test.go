package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Auth: AuthConfig{
			JWTSecret:           "test-secret-key-for-unit-testing",
			AccessTokenTTL:      time.Hour,
			IdentityProxySecret: "proxy-secret",
		},
		Attendance: AttendanceConfig{
			MaxSecretFailures: 5,
			FailureWindow:     10 * time.Minute,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := map[string]func(c *Config){
		"空 JWT 密钥": func(c *Config) { c.Auth.JWTSecret = "" },
		"JWT 密钥过短": func(c *Config) { c.Auth.JWTSecret = "short" },
		"缺少代理密钥":   func(c *Config) { c.Auth.IdentityProxySecret = "" },
		"TTL 为 0":  func(c *Config) { c.Auth.AccessTokenTTL = 0 },
		"端口越界":     func(c *Config) { c.Server.Port = 70000 },
		"失败次数为 0":  func(c *Config) { c.Attendance.MaxSecretFailures = 0 },
		"失败窗口为 0":  func(c *Config) { c.Attendance.FailureWindow = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("期望校验失败")
			}
		})
	}
}

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
auth:
  jwt_secret: file-secret-long-enough-1234
  identity_proxy_secret: proxy
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("期望 port=9090，实际=%d", cfg.Server.Port)
	}
	if cfg.Attendance.MaxSecretFailures != 5 {
		t.Errorf("期望默认 max_secret_failures=5，实际=%d", cfg.Attendance.MaxSecretFailures)
	}
	if cfg.Auth.AccessTokenTTL != 12*time.Hour {
		t.Errorf("期望默认 access_token_ttl=12h，实际=%s", cfg.Auth.AccessTokenTTL)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
auth:
  jwt_secret: file-secret-long-enough-1234
  identity_proxy_secret: proxy
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	t.Setenv("IMHERE_SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("期望环境变量覆盖 port=7070，实际=%d", cfg.Server.Port)
	}
}
