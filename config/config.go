package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"trustclaw/internal/scoring"
	"trustclaw/models"
)

const DefaultPath = "config/config.yml"

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	LLM        LLMConfig        `yaml:"llm"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Scanners   ScannersConfig   `yaml:"scanners"`
	Sources    SourcesConfig    `yaml:"sources"`
	State      StateConfig      `yaml:"state"`
	Storage    StorageConfig    `yaml:"storage"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level          string        `yaml:"level"`
	Format         string        `yaml:"format"`
	Output         string        `yaml:"output"`
	MaxAge         int           `yaml:"max_age"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type TelegramConfig struct {
	BotToken      string  `yaml:"bot_token"`
	ChatID        string  `yaml:"chat_id"`
	Endpoint      string  `yaml:"endpoint"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	SendStartup   bool    `yaml:"send_startup"`
}

// Configured reports whether messages can actually be delivered.
func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type LLMConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	GroqAPIKey      string        `yaml:"groq_api_key"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	AnalyzeTimeout  time.Duration `yaml:"analyze_timeout"`
	BriefTimeout    time.Duration `yaml:"brief_timeout"`
}

// Resolve picks the provider and its key. With no explicit provider the
// first configured key wins, in the order groq, openai, anthropic.
func (l LLMConfig) Resolve() (provider, apiKey string) {
	switch strings.ToLower(l.Provider) {
	case "groq":
		return "groq", l.GroqAPIKey
	case "openai":
		return "openai", l.OpenAIAPIKey
	case "anthropic":
		return "anthropic", l.AnthropicAPIKey
	case "":
		switch {
		case l.GroqAPIKey != "":
			return "groq", l.GroqAPIKey
		case l.OpenAIAPIKey != "":
			return "openai", l.OpenAIAPIKey
		case l.AnthropicAPIKey != "":
			return "anthropic", l.AnthropicAPIKey
		}
		return "groq", ""
	default:
		return strings.ToLower(l.Provider), ""
	}
}

type ScoringConfig struct {
	Threshold int             `yaml:"threshold"`
	Weights   scoring.Weights `yaml:"weights"`
}

type ScannersConfig struct {
	TokenLaunch TokenLaunchConfig `yaml:"token_launch"`
	Pump        PumpConfig        `yaml:"pump"`
	Whale       WhaleConfig       `yaml:"whale"`
	Sentiment   SentimentConfig   `yaml:"sentiment"`
	Brief       BriefConfig       `yaml:"brief"`
}

type TokenLaunchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	DedupWindow time.Duration `yaml:"dedup_window"`
	MaxPerCycle int           `yaml:"max_per_cycle"`
}

type PumpConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	DedupWindow   time.Duration `yaml:"dedup_window"`
	MaxPerCycle   int           `yaml:"max_per_cycle"`
	MinChangeH1   float64       `yaml:"min_change_h1"`
	MinLiquidity  float64       `yaml:"min_liquidity"`
	AnalyzeChange float64       `yaml:"analyze_change"`
}

type WhaleConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	DedupWindow time.Duration `yaml:"dedup_window"`
	MinUSD      float64       `yaml:"min_usd"`
	TxLimit     int           `yaml:"tx_limit"`
	Wallets     []string      `yaml:"wallets"`
}

type SentimentConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	DedupWindow   time.Duration `yaml:"dedup_window"`
	Keywords      []string      `yaml:"keywords"`
	AlertMinScore int           `yaml:"alert_min_score"`
	MaxAlerts     int           `yaml:"max_alerts"`
}

type BriefConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	TopLimit int           `yaml:"top_limit"`
}

type HTTPSourceConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
}

type SourcesConfig struct {
	UserAgent       string           `yaml:"user_agent"`
	BreakerFailures uint32           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration    `yaml:"breaker_cooldown"`
	DexScreener     HTTPSourceConfig `yaml:"dexscreener"`
	Helius          HeliusConfig     `yaml:"helius"`
	Reddit          RedditConfig     `yaml:"reddit"`
	News            NewsConfig       `yaml:"news"`
	Price           PriceConfig      `yaml:"price"`
}

type HeliusConfig struct {
	HTTPSourceConfig `yaml:",inline"`
	APIKey           string `yaml:"api_key"`
}

type RedditConfig struct {
	HTTPSourceConfig `yaml:",inline"`
	Subreddits       []string `yaml:"subreddits"`
	Limit            int      `yaml:"limit"`
}

type NewsConfig struct {
	HTTPSourceConfig `yaml:",inline"`
	Enabled          bool     `yaml:"enabled"`
	URLs             []string `yaml:"urls"`
	Limit            int      `yaml:"limit"`
}

type PriceConfig struct {
	BinanceBaseURL string        `yaml:"binance_base_url"`
	BybitBaseURL   string        `yaml:"bybit_base_url"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	FallbackUSD    float64       `yaml:"fallback_usd"`
	Timeout        time.Duration `yaml:"timeout"`
}

type StateConfig struct {
	RecentLimit int `yaml:"recent_limit"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type DashboardConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"`
	LogHistory     int           `yaml:"log_history"`
	MetricsHistory int           `yaml:"metrics_history"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

var defaultKeywords = []string{
	"gem", "launch", "pump", "moon", "airdrop", "100x", "solana", "sol",
	"raydium", "jupiter", "pump.fun", "new token", "presale", "listing", "dex",
}

// Default returns the built-in configuration used before the file and the
// environment are applied.
func Default() Config {
	return Config{
		App:     AppConfig{Name: "trustclaw", Version: "1.0.0"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout", ReportInterval: 10 * time.Minute},
		Telegram: TelegramConfig{
			RatePerSecond: 1,
			SendStartup:   true,
		},
		LLM: LLMConfig{
			Enabled:        true,
			AnalyzeTimeout: 30 * time.Second,
			BriefTimeout:   60 * time.Second,
		},
		Scoring: ScoringConfig{Threshold: scoring.DefaultThreshold, Weights: scoring.DefaultWeights()},
		Scanners: ScannersConfig{
			TokenLaunch: TokenLaunchConfig{Enabled: true, Interval: 30 * time.Second, DedupWindow: 24 * time.Hour, MaxPerCycle: 10},
			Pump: PumpConfig{
				Enabled: true, Interval: 60 * time.Second, DedupWindow: time.Hour, MaxPerCycle: 5,
				MinChangeH1: 50, MinLiquidity: 5000, AnalyzeChange: 100,
			},
			Whale:     WhaleConfig{Enabled: true, Interval: 60 * time.Second, DedupWindow: 24 * time.Hour, MinUSD: 10_000, TxLimit: 20},
			Sentiment: SentimentConfig{Enabled: true, Interval: 300 * time.Second, DedupWindow: 24 * time.Hour, Keywords: defaultKeywords, AlertMinScore: 100, MaxAlerts: 3},
			Brief:     BriefConfig{Enabled: true, Interval: time.Hour, TopLimit: 5},
		},
		Sources: SourcesConfig{
			BreakerFailures: 5,
			BreakerCooldown: time.Minute,
			DexScreener:     HTTPSourceConfig{BaseURL: "https://api.dexscreener.com", Timeout: 15 * time.Second, RequestsPerMinute: 60, Burst: 5},
			Helius:          HeliusConfig{HTTPSourceConfig: HTTPSourceConfig{BaseURL: "https://api.helius.xyz", Timeout: 15 * time.Second, RequestsPerMinute: 60, Burst: 5}},
			Reddit: RedditConfig{
				HTTPSourceConfig: HTTPSourceConfig{BaseURL: "https://www.reddit.com", Timeout: 15 * time.Second, RequestsPerMinute: 30, Burst: 3},
				Subreddits:       []string{"solana", "CryptoMoonShots", "defi"},
				Limit:            25,
			},
			News: NewsConfig{
				HTTPSourceConfig: HTTPSourceConfig{Timeout: 15 * time.Second, RequestsPerMinute: 10, Burst: 2},
				Enabled:          true,
				URLs:             []string{"https://solana.com/news"},
				Limit:            10,
			},
			Price: PriceConfig{CacheTTL: 5 * time.Minute, FallbackUSD: 150, Timeout: 10 * time.Second},
		},
		State:      StateConfig{RecentLimit: 500},
		Storage:    StorageConfig{S3: S3Config{Prefix: "briefs"}},
		Dashboard:  DashboardConfig{Address: ":8080", LogHistory: 200, MetricsHistory: 200, SampleInterval: 5 * time.Second},
		CloudWatch: CloudWatchConfig{Namespace: "TrustClaw", Dashboard: "TrustClaw"},
	}
}

// LoadConfig reads path on top of the defaults, applies environment
// overrides and validates the result. A missing file at the default path is
// not an error. Validation failures are *models.ConfigError.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultPath, map[string]string{
		environmentProduction: "config/config.production.yml",
		environmentStaging:    "config/config.staging.yml",
	})

	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnv(config *Config) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			return nil
		}
		d, err := parseSeconds(v)
		if err != nil {
			return &models.ConfigError{Field: name, Reason: err.Error()}
		}
		*dst = d
		return nil
	}

	str("TELEGRAM_BOT_TOKEN", &config.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &config.Telegram.ChatID)
	str("GROQ_API_KEY", &config.LLM.GroqAPIKey)
	str("OPENAI_API_KEY", &config.LLM.OpenAIAPIKey)
	str("ANTHROPIC_API_KEY", &config.LLM.AnthropicAPIKey)
	str("LLM_PROVIDER", &config.LLM.Provider)
	str("LLM_MODEL", &config.LLM.Model)
	str("HELIUS_API_KEY", &config.Sources.Helius.APIKey)

	for name, dst := range map[string]*time.Duration{
		"NEW_TOKEN_SCAN_INTERVAL": &config.Scanners.TokenLaunch.Interval,
		"WHALE_SCAN_INTERVAL":     &config.Scanners.Whale.Interval,
		"SENTIMENT_SCAN_INTERVAL": &config.Scanners.Sentiment.Interval,
		"FULL_ANALYSIS_INTERVAL":  &config.Scanners.Brief.Interval,
		"DEDUP_WINDOW":            &config.Scanners.TokenLaunch.DedupWindow,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(os.Getenv("SCORE_THRESHOLD")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &models.ConfigError{Field: "SCORE_THRESHOLD", Reason: "must be an integer"}
		}
		config.Scoring.Threshold = n
	}
	if v := strings.TrimSpace(os.Getenv("WHALE_WALLETS")); v != "" {
		config.Scanners.Whale.Wallets = splitList(v)
	}

	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		config.Storage.S3.Region = strings.TrimSpace(v)
		if config.CloudWatch.Region == "" {
			config.CloudWatch.Region = config.Storage.S3.Region
		}
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		config.Storage.S3.Bucket = strings.TrimSpace(v)
	}
	return nil
}

// parseSeconds accepts a Go duration ("90s", "5m") or a bare number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return &models.ConfigError{Field: "app.name", Reason: "is required"}
	}

	intervals := []struct {
		field   string
		enabled bool
		value   time.Duration
	}{
		{"scanners.token_launch.interval", cfg.Scanners.TokenLaunch.Enabled, cfg.Scanners.TokenLaunch.Interval},
		{"scanners.pump.interval", cfg.Scanners.Pump.Enabled, cfg.Scanners.Pump.Interval},
		{"scanners.whale.interval", cfg.Scanners.Whale.Enabled, cfg.Scanners.Whale.Interval},
		{"scanners.sentiment.interval", cfg.Scanners.Sentiment.Enabled, cfg.Scanners.Sentiment.Interval},
		{"scanners.brief.interval", cfg.Scanners.Brief.Enabled, cfg.Scanners.Brief.Interval},
	}
	for _, iv := range intervals {
		if iv.enabled && iv.value <= 0 {
			return &models.ConfigError{Field: iv.field, Reason: "must be greater than 0"}
		}
	}

	if cfg.Scoring.Threshold < 0 || cfg.Scoring.Threshold > 100 {
		return &models.ConfigError{Field: "scoring.threshold", Reason: "must be between 0 and 100"}
	}
	if err := cfg.Scoring.Weights.Validate(); err != nil {
		return &models.ConfigError{Field: "scoring.weights", Reason: err.Error()}
	}

	if cfg.Scanners.Whale.MinUSD < 0 {
		return &models.ConfigError{Field: "scanners.whale.min_usd", Reason: "must not be negative"}
	}

	if cfg.LLM.Enabled {
		provider, key := cfg.LLM.Resolve()
		switch provider {
		case "groq", "openai", "anthropic":
		default:
			return &models.ConfigError{Field: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.LLM.Provider)}
		}
		if key == "" {
			return &models.ConfigError{Field: "llm." + provider + "_api_key", Reason: "is required when llm is enabled"}
		}
	}

	if cfg.Telegram.ChatID != "" {
		if _, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64); err != nil && !strings.HasPrefix(cfg.Telegram.ChatID, "@") {
			return &models.ConfigError{Field: "telegram.chat_id", Reason: "must be a numeric id or an @channel name"}
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return &models.ConfigError{Field: "storage.s3.bucket", Reason: "is required when S3 is enabled"}
		}
		if cfg.Storage.S3.Region == "" {
			return &models.ConfigError{Field: "storage.s3.region", Reason: "is required when S3 is enabled"}
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return &models.ConfigError{Field: "storage.s3.bucket", Reason: fmt.Sprintf("'%s' is invalid", cfg.Storage.S3.Bucket)}
		}
	}

	return nil
}

// Warnings lists degraded-but-valid settings worth logging at startup.
func (c *Config) Warnings() []string {
	var out []string
	if !c.Telegram.Configured() {
		out = append(out, "telegram credentials missing; alerts will only be logged")
	}
	if c.Scanners.Whale.Enabled && c.Sources.Helius.APIKey == "" {
		out = append(out, "helius api key missing; whale scanner disabled")
	}
	if c.Scanners.Whale.Enabled && len(c.Scanners.Whale.Wallets) == 0 {
		out = append(out, "no whale wallets configured; whale scanner disabled")
	}
	if !c.LLM.Enabled {
		out = append(out, "llm disabled; tokens above threshold are alerted without analysis")
	}
	return out
}

// WhaleEnabled reports whether the whale scanner can run.
func (c *Config) WhaleEnabled() bool {
	return c.Scanners.Whale.Enabled && c.Sources.Helius.APIKey != "" && len(c.Scanners.Whale.Wallets) > 0
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
