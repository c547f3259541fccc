package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	CertFile       string        `yaml:"cert"`
	KeyFile        string        `yaml:"key"`
	AllowOrigins   []string      `yaml:"allow_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type BorrowConfig struct {
	LoanDays      int `yaml:"loan_days"`
	RatePerMinute int `yaml:"rate_per_minute"`
}

type ReminderConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Hour            int    `yaml:"hour"`
	Minute          int    `yaml:"minute"`
	Timezone        string `yaml:"timezone"`
	FeeDueInDays    int    `yaml:"fee_due_in_days"`
	APIURL          string `yaml:"api_url"`
	APIKey          string `yaml:"api_key"`
	FeeCampaign     string `yaml:"fee_campaign"`
	OverdueCampaign string `yaml:"overdue_campaign"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Config は起動時に1回だけ読み込み、以降は読み取り専用として扱う。
type Config struct {
	Version  string         `yaml:"version"`
	Mode     string         `yaml:"mode"`
	Server   ServerConfig   `yaml:"server"`
	DB       DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Borrow   BorrowConfig   `yaml:"borrow"`
	Reminder ReminderConfig `yaml:"reminder"`
	Log      LogConfig      `yaml:"log"`
}

// Load は YAML → 環境変数(LIBRA_*) → デフォルト値 の順に設定を組み立てる。
// path のファイルが存在しない場合は環境変数のみで構成する。
func Load(path string) (*Config, error) {
	// 0 時 0 分も有効な値なので、時刻だけは読み込み前に既定値を入れておく
	cfg := Config{Reminder: ReminderConfig{Hour: 10}}
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}
	if c.DB.DBName == "" {
		missing = append(missing, "database.dbname")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required settings are not set: %v", missing)
	}
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release: %q", c.Mode)
	}
	if c.Reminder.Hour < 0 || c.Reminder.Hour > 23 || c.Reminder.Minute < 0 || c.Reminder.Minute > 59 {
		return fmt.Errorf("reminder time out of range: %02d:%02d", c.Reminder.Hour, c.Reminder.Minute)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Mode = getEnvString("LIBRA_MODE", c.Mode)
	c.Server.Addr = getEnvString("LIBRA_SERVER_ADDR", c.Server.Addr)
	c.DB.Host = getEnvString("LIBRA_DB_HOST", c.DB.Host)
	c.DB.Port = getEnvInt("LIBRA_DB_PORT", c.DB.Port)
	c.DB.Username = getEnvString("LIBRA_DB_USER", c.DB.Username)
	c.DB.Password = getEnvString("LIBRA_DB_PASSWORD", c.DB.Password)
	c.DB.DBName = getEnvString("LIBRA_DB_NAME", c.DB.DBName)
	c.Auth.JWTSecret = getEnvString("LIBRA_JWT_SECRET", c.Auth.JWTSecret)
	c.Reminder.APIKey = getEnvString("LIBRA_REMINDER_API_KEY", c.Reminder.APIKey)
	if v := os.Getenv("LIBRA_ALLOW_ORIGINS"); v != "" {
		c.Server.AllowOrigins = strings.Split(v, ",")
	}
	c.Log.Level = getEnvString("LIBRA_LOG_LEVEL", c.Log.Level)
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "release"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"http://localhost:3000"}
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	// 合算が MySQL の max_connections を超えないよう配分する
	if c.DB.MaxOpenConns <= 0 {
		c.DB.MaxOpenConns = 80
	}
	if c.DB.MaxIdleConns <= 0 {
		c.DB.MaxIdleConns = 20
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if c.Borrow.LoanDays <= 0 {
		c.Borrow.LoanDays = 14
	}
	if c.Borrow.RatePerMinute <= 0 {
		c.Borrow.RatePerMinute = 30
	}
	if c.Reminder.Timezone == "" {
		c.Reminder.Timezone = "Asia/Kolkata"
	}
	if c.Reminder.FeeDueInDays <= 0 {
		c.Reminder.FeeDueInDays = 2
	}
	if c.Reminder.APIURL == "" {
		c.Reminder.APIURL = "https://backend.aisensy.com/api/sendCampaign"
	}
	if c.Reminder.FeeCampaign == "" {
		c.Reminder.FeeCampaign = "Fee Reminder"
	}
	if c.Reminder.OverdueCampaign == "" {
		c.Reminder.OverdueCampaign = "Book Return Reminder"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
