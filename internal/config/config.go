package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,required,notEmpty"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,required,notEmpty"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL,required,notEmpty"`

	// Session
	SessionSecret          string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`

	// Auth gate
	LoginPath string `env:"LOGIN_PATH" envDefault:"/login"`

	// Rate Limit（req/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitHeroReg int `env:"RATE_LIMIT_HERO_REG" envDefault:"10"`

	// Hero photo
	PhotoCheckEnabled bool          `env:"PHOTO_CHECK_ENABLED" envDefault:"true"`
	PhotoCheckTimeout time.Duration `env:"PHOTO_CHECK_TIMEOUT" envDefault:"5s"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	BaseURL     string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定または空の場合、値の形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if !strings.HasPrefix(cfg.LoginPath, "/") {
		return nil, fmt.Errorf("LOGIN_PATH must be an absolute path: %q", cfg.LoginPath)
	}

	// Secure属性はBASE_URLのスキームから決める
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}
