// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	UpgradeURL      string        `yaml:"upgrade_url"` // surfaced in gate denials
}

type LogConfig struct {
	Level    string        `yaml:"level"`    // trace|debug|info|warn|error
	Format   string        `yaml:"format"`   // json|console
	Sampling bool          `yaml:"sampling"` // enable sampling in prod
	Cooldown time.Duration `yaml:"cooldown"` // rate-limited warning cooldown
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	AdminRole string `yaml:"admin_role"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply migrations on startup
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type UsageConfig struct {
	Backend string `yaml:"backend"` // postgres|redis
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	GeminiModel     string `yaml:"gemini_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

// PriceConfig maps tier -> billing cycle -> provider price/plan id.
type PriceConfig map[string]map[string]string

type StripeConfig struct {
	SecretKey     string      `yaml:"secret_key"`
	WebhookSecret string      `yaml:"webhook_secret"`
	Prices        PriceConfig `yaml:"prices"`
}

type RazorpayConfig struct {
	KeyID         string      `yaml:"key_id"`
	KeySecret     string      `yaml:"key_secret"`
	WebhookSecret string      `yaml:"webhook_secret"`
	TotalCount    int         `yaml:"total_count"` // billing cycles per subscription
	Plans         PriceConfig `yaml:"plans"`
}

type PaymentConfig struct {
	Timeout           time.Duration  `yaml:"timeout"`
	SuccessURL        string         `yaml:"success_url"`
	CancelURL         string         `yaml:"cancel_url"`
	CheckoutRateLimit int            `yaml:"checkout_rate_limit"` // per user per minute
	Stripe            StripeConfig   `yaml:"stripe"`
	Razorpay          RazorpayConfig `yaml:"razorpay"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Usage    UsageConfig    `yaml:"usage"`
	AI       AIConfig       `yaml:"ai"`
	Payment  PaymentConfig  `yaml:"payment"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the
// environment (a .env file is loaded first when present), applies defaults
// and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file system; used by tests.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	envOverride(&cfg.Database.URL, "DATABASE_URL")
	envOverride(&cfg.Redis.URL, "REDIS_URL")
	envOverride(&cfg.Redis.Password, "REDIS_PASSWORD")
	envOverride(&cfg.Auth.JWTSecret, "JWT_SECRET")
	envOverride(&cfg.Payment.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	envOverride(&cfg.Payment.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	envOverride(&cfg.Payment.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	envOverride(&cfg.Payment.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")
	envOverride(&cfg.Payment.Razorpay.WebhookSecret, "RAZORPAY_WEBHOOK_SECRET")
	envOverride(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	envOverride(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
}

func envOverride(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.UpgradeURL == "" {
		cfg.HTTP.UpgradeURL = "/pricing"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Cooldown <= 0 {
		cfg.Log.Cooldown = time.Minute
	}
	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = "admin"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Usage.Backend == "" {
		cfg.Usage.Backend = "postgres"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.MaxPromptTokens <= 0 {
		cfg.AI.MaxPromptTokens = 2000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 10 * time.Second
	}
	if cfg.Payment.CheckoutRateLimit <= 0 {
		cfg.Payment.CheckoutRateLimit = 5
	}
	if cfg.Payment.Razorpay.TotalCount <= 0 {
		cfg.Payment.Razorpay.TotalCount = 12
	}
}

func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch cfg.Usage.Backend {
	case "postgres", "redis":
	default:
		return fmt.Errorf("usage.backend must be postgres or redis, got %q", cfg.Usage.Backend)
	}
	if cfg.Payment.Stripe.SecretKey != "" && cfg.Payment.Stripe.WebhookSecret == "" {
		return errors.New("payment.stripe.webhook_secret is required when stripe is enabled")
	}
	if (cfg.Payment.Razorpay.KeyID == "") != (cfg.Payment.Razorpay.KeySecret == "") {
		return errors.New("payment.razorpay.key_id and key_secret must be set together")
	}
	if cfg.Payment.Razorpay.KeyID != "" && cfg.Payment.Razorpay.WebhookSecret == "" {
		return errors.New("payment.razorpay.webhook_secret is required when razorpay is enabled")
	}
	return nil
}

func (s StripeConfig) Enabled() bool   { return s.SecretKey != "" }
func (r RazorpayConfig) Enabled() bool { return r.KeyID != "" && r.KeySecret != "" }
