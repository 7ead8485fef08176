package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the url-sentinel service
type Config struct {
	Environment string           `mapstructure:"environment"`
	Debug       bool             `mapstructure:"debug"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Reputation  ReputationConfig `mapstructure:"reputation"`
	RiskModel   RiskModelConfig  `mapstructure:"risk_model"`
	Rules       RulesConfig      `mapstructure:"rules"`
	Heuristics  HeuristicsConfig `mapstructure:"heuristics"`
	Arbiter     ArbiterConfig    `mapstructure:"arbiter"`
	Lists       ListsConfig      `mapstructure:"lists"`
	Probe       ProbeConfig      `mapstructure:"probe"`
	Scheduler   SchedulerConfig  `mapstructure:"scheduler"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig contains the optional Redis cache used for reputation lookups
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	IntelTTL time.Duration `mapstructure:"intel_ttl"`
}

// ReputationConfig contains the external reputation provider configuration
type ReputationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RiskModelConfig contains the external risk-model (LLM) configuration
type RiskModelConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RulesConfig contains the rule weights and verdict thresholds. Weights are
// tunable; the engine never hard-codes them.
type RulesConfig struct {
	WeightNoTLS            int `mapstructure:"weight_no_tls"`
	WeightShortener        int `mapstructure:"weight_shortener"`
	WeightSuspiciousTLD    int `mapstructure:"weight_suspicious_tld"`
	WeightExcessSubdomains int `mapstructure:"weight_excess_subdomains"`
	WeightPhishingKeyword  int `mapstructure:"weight_phishing_keyword"`
	MaxPhishingAccum       int `mapstructure:"max_phishing_accum"`
	WeightNonGovTheme      int `mapstructure:"weight_non_gov_theme"`
	WeightBrandMislead     int `mapstructure:"weight_brand_mislead"`
	WeightDigitHeavyPath   int `mapstructure:"weight_digit_heavy_path"`
	WeightSensitiveQuery   int `mapstructure:"weight_sensitive_query"`
	WeightFakeShortener    int `mapstructure:"weight_fake_shortener"`
	WeightFinanceKeyword   int `mapstructure:"weight_finance_keyword"`
	SuspectThreshold       int `mapstructure:"suspect_threshold"`
	MaxSubdomainLabels     int `mapstructure:"max_subdomain_labels"`
}

// HeuristicsConfig contains the curated lists shared by the rules engine and
// the reputation fallback heuristics
type HeuristicsConfig struct {
	Shorteners       []string            `mapstructure:"shorteners"`
	RiskyTLDs        []string            `mapstructure:"risky_tlds"`
	PhishingKeywords []string            `mapstructure:"phishing_keywords"`
	FinanceKeywords  []string            `mapstructure:"finance_keywords"`
	DecoyTokens      []string            `mapstructure:"decoy_tokens"`
	TrustedSuffixes  []string            `mapstructure:"trusted_suffixes"`
	GovSuffix        string              `mapstructure:"gov_suffix"`
	ProtectedBrands  map[string][]string `mapstructure:"protected_brands"`
}

// ArbiterConfig contains the decision thresholds combining reputation and the
// risk model
type ArbiterConfig struct {
	MaliciousFloor       int     `mapstructure:"malicious_floor"`
	CleanCeiling         int     `mapstructure:"clean_ceiling"`
	WeakRulesCeiling     int     `mapstructure:"weak_rules_ceiling"`
	SuspectRiskThreshold float64 `mapstructure:"suspect_risk_threshold"`
	LegitRiskThreshold   float64 `mapstructure:"legit_risk_threshold"`
	MinSuspectScore      int     `mapstructure:"min_suspect_score"`
}

// ListsConfig contains allow/deny list matching configuration
type ListsConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	AllowHitScore int           `mapstructure:"allow_hit_score"`
	DenyHitScore  int           `mapstructure:"deny_hit_score"`
}

// ProbeConfig contains the optional page probe configuration
type ProbeConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// SchedulerConfig contains periodic maintenance configuration
type SchedulerConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days"`
	CleanupSchedule      string `mapstructure:"cleanup_schedule"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Load loads configuration from environment variables and config files
func Load() (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/url-sentinel")

	// Set default values
	setDefaults()

	// Enable environment variable binding
	viper.AutomaticEnv()
	viper.SetEnvPrefix("URL_SENTINEL")

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// General
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", false)

	// Server
	viper.SetDefault("server.http_port", 8086)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "url_sentinel")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.intel_ttl", "1h")

	// Reputation provider
	viper.SetDefault("reputation.enabled", false)
	viper.SetDefault("reputation.base_url", "https://www.virustotal.com/api/v3")
	viper.SetDefault("reputation.timeout", "8s")

	// Risk model
	viper.SetDefault("risk_model.enabled", false)
	viper.SetDefault("risk_model.base_url", "https://api.openai.com/v1")
	viper.SetDefault("risk_model.model", "gpt-4o-mini")
	viper.SetDefault("risk_model.temperature", 0.1)
	viper.SetDefault("risk_model.timeout", "20s")

	// Rule weights and thresholds
	viper.SetDefault("rules.weight_no_tls", 25)
	viper.SetDefault("rules.weight_shortener", 20)
	viper.SetDefault("rules.weight_suspicious_tld", 15)
	viper.SetDefault("rules.weight_excess_subdomains", 10)
	viper.SetDefault("rules.weight_phishing_keyword", 20)
	viper.SetDefault("rules.max_phishing_accum", 40)
	viper.SetDefault("rules.weight_non_gov_theme", 30)
	viper.SetDefault("rules.weight_brand_mislead", 25)
	viper.SetDefault("rules.weight_digit_heavy_path", 10)
	viper.SetDefault("rules.weight_sensitive_query", 25)
	viper.SetDefault("rules.weight_fake_shortener", 80)
	viper.SetDefault("rules.weight_finance_keyword", 40)
	viper.SetDefault("rules.suspect_threshold", 70)
	viper.SetDefault("rules.max_subdomain_labels", 4)

	// Curated heuristic data
	viper.SetDefault("heuristics.shorteners", []string{
		"bit.ly", "tinyurl.com", "is.gd", "t.co", "cutt.ly", "linktr.ee", "goo.gl",
	})
	viper.SetDefault("heuristics.risky_tlds", []string{
		"xyz", "top", "click", "link", "live", "online", "shop", "buzz", "work", "info", "site",
	})
	viper.SetDefault("heuristics.phishing_keywords", []string{
		"valores", "receber", "resgate", "liberar", "consulta", "pix", "saldo",
		"gov", "login", "senha", "cpf",
	})
	viper.SetDefault("heuristics.finance_keywords", []string{
		"secure", "auth", "banking", "login", "account", "pix", "boleto", "verify", "validation",
	})
	viper.SetDefault("heuristics.decoy_tokens", []string{
		"bit-llly", "valores-receber", "simulador", "irpf", "fgts", "saque-digital",
	})
	viper.SetDefault("heuristics.trusted_suffixes", []string{
		"gov.br", "bb.com.br", "caixa.gov.br", "receita.economia.gov.br", "meu.inss.gov.br",
	})
	viper.SetDefault("heuristics.gov_suffix", ".gov.br")
	viper.SetDefault("heuristics.protected_brands", map[string][]string{
		"caixa":   {"caixa.gov.br"},
		"caix":    {"caixa.gov.br"},
		"receita": {"receita.economia.gov.br"},
		"whatsap": {"whatsapp.com", "whatsapp.net"},
	})

	// Arbiter thresholds
	viper.SetDefault("arbiter.malicious_floor", 90)
	viper.SetDefault("arbiter.clean_ceiling", 10)
	viper.SetDefault("arbiter.weak_rules_ceiling", 30)
	viper.SetDefault("arbiter.suspect_risk_threshold", 0.60)
	viper.SetDefault("arbiter.legit_risk_threshold", 0.40)
	viper.SetDefault("arbiter.min_suspect_score", 75)

	// Lists
	viper.SetDefault("lists.cache_ttl", "30s")
	viper.SetDefault("lists.allow_hit_score", 10)
	viper.SetDefault("lists.deny_hit_score", 90)

	// Probe
	viper.SetDefault("probe.timeout", "8s")
	viper.SetDefault("probe.max_body_bytes", 1048576)
	viper.SetDefault("probe.user_agent", "url-sentinel/1.0")

	// Scheduler
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.history_retention_days", 90)
	viper.SetDefault("scheduler.cleanup_schedule", "0 0 3 * * *")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}
