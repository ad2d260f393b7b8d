// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Token
	// JWTSecretはJWT_SECRETまたはJWT_SECRET_FILE（マウントされたシークレット）から読み込む。
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	JWTSecretFile string        `envconfig:"JWT_SECRET_FILE"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`

	// Upload
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	UploadMaxBytes int64  `envconfig:"UPLOAD_MAX_BYTES" default:"5242880"`

	// Points
	StartingPoints     int  `envconfig:"STARTING_POINTS" default:"10"`
	UploadCost         int  `envconfig:"UPLOAD_COST" default:"1"`
	PoolCost           int  `envconfig:"POOL_COST" default:"1"`
	RatingReward       int  `envconfig:"RATING_REWARD" default:"1"`
	ChargeUpload       bool `envconfig:"CHARGE_UPLOAD" default:"true"`
	OwnerDebitOnRating bool `envconfig:"OWNER_DEBIT_ON_RATING" default:"false"`

	// Rate Limit (req/min/user)
	RateLimitGeneral int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitUpload  int `envconfig:"RATE_LIMIT_UPLOAD" default:"10"`

	// Worker
	CleanupSchedule   string        `envconfig:"CLEANUP_SCHEDULE" default:"@hourly"`
	OrphanGracePeriod time.Duration `envconfig:"ORPHAN_GRACE_PERIOD" default:"1h"`

	// Server
	ServerPort     string        `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL        string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.JWTSecret == "" && cfg.JWTSecretFile != "" {
		b, err := os.ReadFile(cfg.JWTSecretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT_SECRET_FILE: %w", err)
		}
		cfg.JWTSecret = strings.TrimSpace(string(b))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は読み込んだ値の整合性を検証する。
// envconfigは空文字の環境変数を設定済みとみなすため、必須項目の空チェックもここで行う。
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET (or JWT_SECRET_FILE)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be > 0")
	}
	if c.TokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL and RESET_TOKEN_TTL must be > 0")
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitUpload <= 0 {
		return fmt.Errorf("RATE_LIMIT_GENERAL and RATE_LIMIT_UPLOAD must be > 0")
	}
	return nil
}
