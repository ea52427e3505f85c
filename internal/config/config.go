package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/dsrank/internal/domain"
)

// Config holds the dsrank configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Registry  RegistryConfig  `yaml:"registry"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Tuning    TuningConfig    `yaml:"tuning"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// RegistryConfig holds dataset registry (OpenML) settings for the scraper.
type RegistryConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	PageSize          int           `yaml:"page_size"`
	MaxDatasets       int           `yaml:"max_datasets"` // 0 = all
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	TimeoutSec        int           `yaml:"timeout_sec"`
	Output            string        `yaml:"output"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings. FailureRatio 0 disables the breaker.
type BreakerConfig struct {
	FailureRatio float64 `yaml:"failure_ratio"`
	MinRequests  uint32  `yaml:"min_requests"`
	CooldownSec  int     `yaml:"cooldown_sec"`
}

// EmbeddingConfig holds embedding provider and adapter settings.
type EmbeddingConfig struct {
	Provider        string                   `yaml:"provider"` // openai (any OpenAI-compatible server)
	APIKey          string                   `yaml:"api_key"`
	BaseURL         string                   `yaml:"base_url"`
	TimeoutSec      int                      `yaml:"timeout_sec"`
	Dimensions      int                      `yaml:"dimensions"` // 0 = model default
	BatchSize       int                      `yaml:"batch_size"`
	MaxAPIBatchSize int                      `yaml:"max_api_batch_size"`
	ProgressEvery   int                      `yaml:"progress_every"`
	QueryMaxTokens  int                      `yaml:"query_max_tokens"`
	Adapters        map[string]AdapterConfig `yaml:"adapters"` // keyed by field: title, details, feature_summary
}

// AdapterConfig holds one field adapter.
type AdapterConfig struct {
	Model             string `yaml:"model"`
	DocumentMaxTokens int    `yaml:"document_max_tokens"`
}

// CacheConfig holds the embedding cache store settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // none, memory, badger, valkey, redis (default: none)
	Dir              string   `yaml:"dir"`    // badger database directory
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// RankingConfig holds ranking inputs, outputs and weights.
type RankingConfig struct {
	Input       string          `yaml:"input"`
	Output      string          `yaml:"output"`
	Default     *domain.Weights `yaml:"default_weights"`
	Unavailable *domain.Weights `yaml:"unavailable_weights"`
}

// TuningConfig holds hill-climbing settings.
type TuningConfig struct {
	Initial                    *domain.Weights `yaml:"initial_weights"`
	StepSize                   float64         `yaml:"step_size"`
	MaxIters                   int             `yaml:"max_iters"`
	TopK                       int             `yaml:"top_k"`
	RespectUnavailableOverride bool            `yaml:"respect_unavailable_override"`
}

// MetricsConfig holds the admin endpoint settings. Empty Addr disables it.
type MetricsConfig struct {
	Addr    string   `yaml:"addr"`
	APIKeys []string `yaml:"api_keys"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.Registry.applyDefaults()
	c.Embedding.applyDefaults()
	c.Cache.applyDefaults()

	if c.Ranking.Input == "" {
		c.Ranking.Input = "data/final_valid.json"
	}
	if c.Ranking.Output == "" {
		c.Ranking.Output = "data/partial_rep_rankings_val.json"
	}
	if c.Ranking.Default == nil {
		w := domain.DefaultWeights
		c.Ranking.Default = &w
	}
	if c.Ranking.Unavailable == nil {
		w := domain.UnavailableWeights
		c.Ranking.Unavailable = &w
	}

	if c.Tuning.Initial == nil {
		w := domain.DefaultWeights
		c.Tuning.Initial = &w
	}
	if c.Tuning.StepSize <= 0 {
		c.Tuning.StepSize = 0.05
	}
	if c.Tuning.MaxIters <= 0 {
		c.Tuning.MaxIters = 100
	}
	if c.Tuning.TopK <= 0 {
		c.Tuning.TopK = 10
	}
}

func (r *RegistryConfig) applyDefaults() {
	if r.BaseURL == "" {
		r.BaseURL = "https://www.openml.org/api/v1/json"
	}
	if r.PageSize <= 0 {
		r.PageSize = 1000
	}
	if r.RequestsPerSecond <= 0 {
		r.RequestsPerSecond = 5
	}
	if r.Burst <= 0 {
		r.Burst = 1
	}
	if r.TimeoutSec <= 0 {
		r.TimeoutSec = 30
	}
	if r.Output == "" {
		r.Output = "dataset_descriptions.json"
	}
	if r.Breaker.FailureRatio > 0 {
		if r.Breaker.MinRequests == 0 {
			r.Breaker.MinRequests = 10
		}
		if r.Breaker.CooldownSec <= 0 {
			r.Breaker.CooldownSec = 30
		}
	}
}

func (e *EmbeddingConfig) applyDefaults() {
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 60
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 32
	}
	if e.MaxAPIBatchSize <= 0 {
		e.MaxAPIBatchSize = 256
	}
	if e.ProgressEvery <= 0 {
		e.ProgressEvery = 100
	}
	if e.QueryMaxTokens <= 0 {
		e.QueryMaxTokens = 128
	}
	if e.Adapters == nil {
		e.Adapters = make(map[string]AdapterConfig, len(domain.Fields))
	}
	for _, f := range domain.Fields {
		a := e.Adapters[f.String()]
		if a.Model == "" {
			a.Model = "specter2-" + f.String()
		}
		if a.DocumentMaxTokens <= 0 {
			a.DocumentMaxTokens = defaultDocumentMaxTokens(f)
		}
		e.Adapters[f.String()] = a
	}
}

func defaultDocumentMaxTokens(f domain.Field) int {
	if f == domain.FieldTitle {
		return 128
	}
	return 512
}

func (c *CacheConfig) applyDefaults() {
	if c.Driver == "" {
		c.Driver = "none"
	}
	if c.ReadinessTimeout <= 0 {
		c.ReadinessTimeout = 10
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "dsrank:"
	}
	if c.Driver == "badger" && c.Dir == "" {
		c.Dir = "data/embcache"
	}
}

// Adapter returns the adapter settings of field f.
func (e *EmbeddingConfig) Adapter(f domain.Field) AdapterConfig {
	return e.Adapters[f.String()]
}

// Timeout returns the embedding request timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// Timeout returns the registry request timeout.
func (r *RegistryConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSec) * time.Second
}

// Cooldown returns how long an open breaker rejects calls.
func (b BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSec) * time.Second
}

// TTL returns the cache entry lifetime. Zero means no expiry.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// Readiness returns how long to wait for the cache store on startup.
func (c *CacheConfig) Readiness() time.Duration {
	return time.Duration(c.ReadinessTimeout) * time.Second
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "none", "memory", "badger":
	case "valkey", "redis":
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for driver %q", c.Cache.Driver)
		}
	default:
		return fmt.Errorf("cache.driver must be one of none, memory, badger, valkey, redis, got %q", c.Cache.Driver)
	}

	if c.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be \"openai\", got %q", c.Embedding.Provider)
	}
	for name := range c.Embedding.Adapters {
		if _, err := domain.ParseField(name); err != nil {
			return fmt.Errorf("embedding.adapters: %w", err)
		}
	}

	if err := validateWeights("ranking.default_weights", c.Ranking.Default); err != nil {
		return err
	}
	if err := validateWeights("ranking.unavailable_weights", c.Ranking.Unavailable); err != nil {
		return err
	}
	if err := validateWeights("tuning.initial_weights", c.Tuning.Initial); err != nil {
		return err
	}

	if c.Registry.Breaker.FailureRatio < 0 || c.Registry.Breaker.FailureRatio > 1 {
		return fmt.Errorf("registry.breaker.failure_ratio must be between 0 and 1, got %v",
			c.Registry.Breaker.FailureRatio)
	}
	return nil
}

func validateWeights(name string, w *domain.Weights) error {
	if w == nil {
		return fmt.Errorf("%s is required", name)
	}
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if *w == (domain.Weights{}) {
		return fmt.Errorf("%s: all components are zero: %w", name, domain.ErrInvalidWeights)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
