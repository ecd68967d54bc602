package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Upload   UploadConfig
	Analysis AnalysisConfig
	Store    StoreConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

type UploadConfig struct {
	MaxBytes int64
}

// AnalysisConfig holds the engine thresholds. It is read-only once loaded.
type AnalysisConfig struct {
	Seed              int64   `yaml:"seed"`
	TopN              int     `yaml:"top_n"`
	RequireDate       bool    `yaml:"require_date"`
	ChurnDays         int     `yaml:"churn_days"`
	MinChurnCustomers int     `yaml:"min_churn_customers"`
	Clusters          int     `yaml:"clusters"`
	KMeansIterations  int     `yaml:"kmeans_iterations"`
	ForestTrees       int     `yaml:"forest_trees"`
	ForestDepth       int     `yaml:"forest_depth"`
	TestRatio         float64 `yaml:"test_ratio"`
	TopAtRisk         int     `yaml:"top_at_risk"`
	MinSupport        float64 `yaml:"min_support"`
	MinConfidence     float64 `yaml:"min_confidence"`
	MaxItemsetSize    int     `yaml:"max_itemset_size"`
	MaxItems          int     `yaml:"max_items"`
	MaxRules          int     `yaml:"max_rules"`
	ForecastModel     string  `yaml:"forecast_model"`
	ForecastTestRatio float64 `yaml:"forecast_test_ratio"`
}

// StoreConfig selects the run ledger backend. An empty driver disables it.
type StoreConfig struct {
	Driver string
	DSN    string
}

func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Seed:              42,
		TopN:              5,
		ChurnDays:         90,
		MinChurnCustomers: 20,
		Clusters:          4,
		KMeansIterations:  300,
		ForestTrees:       100,
		ForestDepth:       8,
		TestRatio:         0.3,
		TopAtRisk:         5,
		MinSupport:        0.01,
		MinConfidence:     0.3,
		MaxItemsetSize:    4,
		MaxItems:          500,
		MaxRules:          50,
		ForecastModel:     "linear",
		ForecastTestRatio: 0.2,
	}
}

func Load() (*Config, error) {
	analysis := DefaultAnalysis()
	if path := os.Getenv("ANALYSIS_CONFIG_FILE"); path != "" {
		if err := loadAnalysisFile(path, &analysis); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
		Upload: UploadConfig{
			MaxBytes: getEnvInt64("UPLOAD_MAX_BYTES", 32<<20),
		},
		Analysis: AnalysisConfig{
			Seed:              getEnvInt64("ANALYSIS_SEED", analysis.Seed),
			TopN:              getEnvInt("ANALYSIS_TOP_N", analysis.TopN),
			RequireDate:       getEnvBool("ANALYSIS_REQUIRE_DATE", analysis.RequireDate),
			ChurnDays:         getEnvInt("ANALYSIS_CHURN_DAYS", analysis.ChurnDays),
			MinChurnCustomers: getEnvInt("ANALYSIS_MIN_CHURN_CUSTOMERS", analysis.MinChurnCustomers),
			Clusters:          getEnvInt("ANALYSIS_CLUSTERS", analysis.Clusters),
			KMeansIterations:  getEnvInt("ANALYSIS_KMEANS_ITERATIONS", analysis.KMeansIterations),
			ForestTrees:       getEnvInt("ANALYSIS_FOREST_TREES", analysis.ForestTrees),
			ForestDepth:       getEnvInt("ANALYSIS_FOREST_DEPTH", analysis.ForestDepth),
			TestRatio:         getEnvFloat("ANALYSIS_TEST_RATIO", analysis.TestRatio),
			TopAtRisk:         getEnvInt("ANALYSIS_TOP_AT_RISK", analysis.TopAtRisk),
			MinSupport:        getEnvFloat("ANALYSIS_MIN_SUPPORT", analysis.MinSupport),
			MinConfidence:     getEnvFloat("ANALYSIS_MIN_CONFIDENCE", analysis.MinConfidence),
			MaxItemsetSize:    getEnvInt("ANALYSIS_MAX_ITEMSET_SIZE", analysis.MaxItemsetSize),
			MaxItems:          getEnvInt("ANALYSIS_MAX_ITEMS", analysis.MaxItems),
			MaxRules:          getEnvInt("ANALYSIS_MAX_RULES", analysis.MaxRules),
			ForecastModel:     getEnvString("ANALYSIS_FORECAST_MODEL", analysis.ForecastModel),
			ForecastTestRatio: getEnvFloat("ANALYSIS_FORECAST_TEST_RATIO", analysis.ForecastTestRatio),
		},
		Store: StoreConfig{
			Driver: getEnvString("STORE_DRIVER", ""),
			DSN:    getEnvString("STORE_DSN", "runs.db"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadAnalysisFile overlays the YAML file at path onto cfg. Keys missing from
// the file keep their current value.
func loadAnalysisFile(path string, cfg *AnalysisConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read analysis config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse analysis config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	validDrivers := []string{"", "sqlite3", "postgres"}
	if !contains(validDrivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver %q, must be one of: sqlite3, postgres or empty", c.Store.Driver)
	}

	return c.Analysis.Validate()
}

func (a AnalysisConfig) Validate() error {
	if a.TopN <= 0 {
		return fmt.Errorf("analysis top N must be positive")
	}
	if a.ChurnDays <= 0 {
		return fmt.Errorf("churn threshold must be a positive number of days")
	}
	if a.MinChurnCustomers < 2 {
		return fmt.Errorf("minimum churn customers must be at least 2, got %d", a.MinChurnCustomers)
	}
	if a.Clusters <= 0 || a.KMeansIterations <= 0 {
		return fmt.Errorf("clusters and k-means iterations must be positive")
	}
	if a.ForestTrees <= 0 || a.ForestDepth <= 0 {
		return fmt.Errorf("forest trees and depth must be positive")
	}
	if a.TestRatio <= 0 || a.TestRatio >= 1 {
		return fmt.Errorf("test ratio must be in (0, 1), got %g", a.TestRatio)
	}
	if a.MinSupport <= 0 || a.MinSupport > 1 {
		return fmt.Errorf("min support must be in (0, 1], got %g", a.MinSupport)
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0, 1], got %g", a.MinConfidence)
	}
	if a.MaxItemsetSize < 1 || a.MaxItemsetSize > 16 {
		return fmt.Errorf("max itemset size must be between 1 and 16, got %d", a.MaxItemsetSize)
	}
	if a.MaxItems <= 0 || a.MaxRules <= 0 {
		return fmt.Errorf("max items and max rules must be positive")
	}
	validModels := []string{"linear", "naive"}
	if !contains(validModels, a.ForecastModel) {
		return fmt.Errorf("invalid forecast model %q, must be one of: %s", a.ForecastModel, strings.Join(validModels, ", "))
	}
	if a.ForecastTestRatio <= 0 || a.ForecastTestRatio >= 1 {
		return fmt.Errorf("forecast test ratio must be in (0, 1), got %g", a.ForecastTestRatio)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
