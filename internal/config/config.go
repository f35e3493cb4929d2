package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/roadsafe/internal/domain"
)

// Config holds the roadsafe service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the optional Valkey connection used for the
// embedding cache. No addrs means no cache.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return len(d.Addrs) > 0 }

// EmbeddingConfig holds embedding settings. An empty Provider disables the
// vector strategy.
type EmbeddingConfig struct {
	Provider            string                    `yaml:"provider"`
	Providers           map[string]ProviderConfig `yaml:"providers"`
	Model               string                    `yaml:"model"`
	Dimensions          int                       `yaml:"dimensions"`
	DocumentInstruction string                    `yaml:"document_instruction"`
	QueryInstruction    string                    `yaml:"query_instruction"`
	TimeoutSec          int                       `yaml:"timeout_sec"`
	BatchSize           int                       `yaml:"batch_size"`
	CacheTTLSec         int                       `yaml:"cache_ttl_sec"` // 0 = no expiry
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// CatalogConfig holds catalog loading settings.
type CatalogConfig struct {
	Path            string  `yaml:"path"`
	Dimensions      int     `yaml:"dimensions"` // 0 = first valid record
	MaxRejectRatio  float64 `yaml:"max_reject_ratio"`
	EmbedMissing    bool    `yaml:"embed_missing"`
	BackfillWorkers int     `yaml:"backfill_workers"`
}

// SearchConfig holds orchestrator settings.
type SearchConfig struct {
	RRFK             int `yaml:"rrf_k"`
	DefaultMaxResult int `yaml:"default_max_results"`
	MaxResultsLimit  int `yaml:"max_results_limit"`
	CandidatePool    int `yaml:"candidate_pool"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	TTLSec           int `yaml:"ttl_sec"`
	DegradedTTLSec   int `yaml:"degraded_ttl_sec"`
	MaxEntries       int `yaml:"max_entries"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"` // 0 disables the sweeper
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references, applying
// defaults and validating the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	// Sweep interval defaults to one minute unless set, including to 0.
	cfg := Config{Cache: CacheConfig{SweepIntervalSec: -1}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	vec := domain.DefaultVectorConfig()
	if c.Embedding.Model == "" {
		c.Embedding.Model = vec.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vec.Dimensions
	}
	if c.Embedding.DocumentInstruction == "" {
		c.Embedding.DocumentInstruction = vec.DocumentInstruction
	}
	if c.Embedding.QueryInstruction == "" {
		c.Embedding.QueryInstruction = vec.QueryInstruction
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 15
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 256
	}

	if c.Catalog.Path == "" {
		c.Catalog.Path = "data/interventions.json"
	}

	if c.Search.RRFK <= 0 {
		c.Search.RRFK = 60
	}
	if c.Search.DefaultMaxResult <= 0 {
		c.Search.DefaultMaxResult = 5
	}
	if c.Search.MaxResultsLimit <= 0 {
		c.Search.MaxResultsLimit = 50
	}
	if c.Search.CandidatePool <= 0 {
		c.Search.CandidatePool = 10
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 600
	}
	if c.Cache.DegradedTTLSec <= 0 {
		c.Cache.DegradedTTLSec = 60
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Cache.SweepIntervalSec < 0 {
		c.Cache.SweepIntervalSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Embedding.Provider != "" {
		p, ok := c.Embedding.Providers[c.Embedding.Provider]
		if !ok {
			return fmt.Errorf("embedding.provider %q has no entry in embedding.providers", c.Embedding.Provider)
		}
		if p.APIKey == "" {
			return fmt.Errorf("embedding.providers.%s.api_key is required", c.Embedding.Provider)
		}
	}
	if c.Catalog.EmbedMissing && c.Embedding.Provider == "" {
		return fmt.Errorf("catalog.embed_missing requires embedding.provider")
	}
	if r := c.Catalog.MaxRejectRatio; math.IsNaN(r) || r < 0 || r > 1 {
		return fmt.Errorf("catalog.max_reject_ratio must be between 0 and 1, got %v", r)
	}
	if c.Catalog.Dimensions < 0 {
		return fmt.Errorf("catalog.dimensions must not be negative, got %d", c.Catalog.Dimensions)
	}
	if c.Search.DefaultMaxResult > c.Search.MaxResultsLimit {
		return fmt.Errorf("search.default_max_results (%d) exceeds search.max_results_limit (%d)",
			c.Search.DefaultMaxResult, c.Search.MaxResultsLimit)
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
