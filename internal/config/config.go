package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	StorePath     string `mapstructure:"store_path"`
	SourcesFile   string `mapstructure:"sources_file"`
	BoardsFile    string `mapstructure:"boards_file"`
	NotifiersFile string `mapstructure:"notifiers_file"`

	BulletinBaseURL      string `mapstructure:"bulletin_base_url"`
	NewsAccountToken     string `mapstructure:"news_account_token"`
	AnalysisAccountToken string `mapstructure:"analysis_account_token"`

	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`

	BatchSize                int     `mapstructure:"batch_size"`
	TitleSimilarityThreshold float64 `mapstructure:"title_similarity_threshold"`
	BodyHashPrefixLen        int     `mapstructure:"body_hash_prefix_len"`

	RewriteMinChars          int `mapstructure:"rewrite_min_chars"`
	RewriteMinCharsWithImage int `mapstructure:"rewrite_min_chars_with_image"`
	RewriteMaxChars          int `mapstructure:"rewrite_max_chars"`
	RewriteRetries           int `mapstructure:"rewrite_retries"`

	ImageMaxBytes     int `mapstructure:"image_max_bytes"`
	ImageMaxDimension int `mapstructure:"image_max_dimension"`

	InterPostDelaySeconds int64         `mapstructure:"inter_post_delay_seconds"`
	InterPostDelay        time.Duration `mapstructure:"-"`
	RateLimitBaseSeconds  int64         `mapstructure:"rate_limit_base_seconds"`
	RateLimitBase         time.Duration `mapstructure:"-"`
	RateLimitRetries      int           `mapstructure:"rate_limit_retries"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
}

// Tunable bounds. The similarity threshold and body-hash window were chosen
// empirically; revisit them against a labeled duplicate corpus before trusting
// the exact values.
const (
	bodyHashPrefixMin = 400
	bodyHashPrefixMax = 650
)

// Load reads configuration from environment variables and config files.
// Every knob has a safe default; a missing value never fails the load.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "sportpick-newsdesk")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_path", "./data/newsdesk.db")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("boards_file", "./configs/boards.yaml")
	v.SetDefault("notifiers_file", "")
	v.SetDefault("bulletin_base_url", "")
	v.SetDefault("news_account_token", "")
	v.SetDefault("analysis_account_token", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("batch_size", 10)
	v.SetDefault("title_similarity_threshold", 0.8)
	v.SetDefault("body_hash_prefix_len", 550)
	v.SetDefault("rewrite_min_chars", 1500)
	v.SetDefault("rewrite_min_chars_with_image", 1200)
	v.SetDefault("rewrite_max_chars", 2500)
	v.SetDefault("rewrite_retries", 2)
	v.SetDefault("image_max_bytes", 1_800_000)
	v.SetDefault("image_max_dimension", 1600)
	v.SetDefault("inter_post_delay_seconds", 8)
	v.SetDefault("rate_limit_base_seconds", 20)
	v.SetDefault("rate_limit_retries", 3)
	v.SetDefault("request_timeout_seconds", 15)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

// normalize clamps out-of-range values back to their defaults instead of
// failing, so a bad single knob cannot take the pipeline down.
func (c *Config) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.TitleSimilarityThreshold <= 0 || c.TitleSimilarityThreshold > 1 {
		c.TitleSimilarityThreshold = 0.8
	}
	if c.BodyHashPrefixLen < bodyHashPrefixMin {
		c.BodyHashPrefixLen = bodyHashPrefixMin
	}
	if c.BodyHashPrefixLen > bodyHashPrefixMax {
		c.BodyHashPrefixLen = bodyHashPrefixMax
	}
	if c.RewriteMinChars <= 0 {
		c.RewriteMinChars = 1500
	}
	if c.RewriteMinCharsWithImage <= 0 {
		c.RewriteMinCharsWithImage = 1200
	}
	if c.RewriteMaxChars < c.RewriteMinChars {
		c.RewriteMaxChars = 2500
	}
	if c.RewriteRetries <= 0 {
		c.RewriteRetries = 2
	}
	if c.ImageMaxBytes <= 0 {
		c.ImageMaxBytes = 1_800_000
	}
	if c.ImageMaxDimension <= 0 {
		c.ImageMaxDimension = 1600
	}
	if c.InterPostDelaySeconds < 0 {
		c.InterPostDelaySeconds = 8
	}
	if c.RateLimitBaseSeconds <= 0 {
		c.RateLimitBaseSeconds = 20
	}
	if c.RateLimitRetries <= 0 {
		c.RateLimitRetries = 3
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 15
	}

	c.InterPostDelay = time.Duration(c.InterPostDelaySeconds) * time.Second
	c.RateLimitBase = time.Duration(c.RateLimitBaseSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ValidatePublishing checks the options a publish run cannot start without.
// Called at run start so queue state is left untouched on failure.
func (c *Config) ValidatePublishing() error {
	if c.BulletinBaseURL == "" {
		return fmt.Errorf("bulletin_base_url is not configured")
	}
	if c.NewsAccountToken == "" && c.AnalysisAccountToken == "" {
		return fmt.Errorf("no bulletin account token configured")
	}
	return nil
}
