package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	AI        AI        `mapstructure:"ai"`
	Search    Search    `mapstructure:"search"`
	Queries   Queries   `mapstructure:"queries"`
	Feeds     Feeds     `mapstructure:"feeds"`
	Fetch     Fetch     `mapstructure:"fetch"`
	Selection Selection `mapstructure:"selection"`
	Logging   Logging   `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	DataDir  string `mapstructure:"data_dir"`
	CacheDir string `mapstructure:"cache_dir"`
	Timezone string `mapstructure:"timezone"`
}

// AI holds LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// Search holds search backend configuration
type Search struct {
	Provider      string             `mapstructure:"provider"`
	MaxCandidates int                `mapstructure:"max_candidates"`
	ResultsPerQry int                `mapstructure:"results_per_query"`
	QueryDelay    string             `mapstructure:"query_delay"`
	Timeout       string             `mapstructure:"timeout"`
	Google        GoogleSearchConfig `mapstructure:"google"`
}

// GoogleSearchConfig holds Google Custom Search configuration
type GoogleSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	SearchID string `mapstructure:"search_id"`
}

// Queries holds Query Director configuration
type Queries struct {
	BaseFile   string `mapstructure:"base_file"`
	PolicyFile string `mapstructure:"policy_file"`
	DeltaCount int    `mapstructure:"delta_count"`
}

// Feeds holds RSS discovery configuration
type Feeds struct {
	Enabled         bool   `mapstructure:"enabled"`
	File            string `mapstructure:"file"`
	Timeout         string `mapstructure:"timeout"`
	MaxItemsPerFeed int    `mapstructure:"max_items_per_feed"`
	UserAgent       string `mapstructure:"user_agent"`
}

// Fetch holds fetch/extract configuration
type Fetch struct {
	ConnectTimeout string  `mapstructure:"connect_timeout"`
	TotalTimeout   string  `mapstructure:"total_timeout"`
	ArticleBudget  string  `mapstructure:"article_budget"`
	RequestDelay   string  `mapstructure:"request_delay"`
	MinWordCount   int     `mapstructure:"min_word_count"`
	MinContentLen  int     `mapstructure:"min_content_len"`
	ASCIIRatio     float64 `mapstructure:"ascii_ratio"`
	UserAgent      string  `mapstructure:"user_agent"`
}

// Selection holds ranking and selection configuration
type Selection struct {
	SelectTop        int `mapstructure:"select_top"`
	RankBatchMax     int `mapstructure:"rank_batch_max"`
	DomainCap        int `mapstructure:"domain_cap"`
	DomainCapRelaxed int `mapstructure:"domain_cap_relaxed"`
	PaywallMax       int `mapstructure:"paywall_max"`
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load loads the configuration from .env, config file, environment and
// defaults, in ascending precedence of environment over file.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newscurator")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", "data")
	viper.SetDefault("app.cache_dir", ".newscurator-cache")
	viper.SetDefault("app.timezone", "Europe/Amsterdam")

	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.timeout", "60s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.2)

	viper.SetDefault("search.provider", "google")
	viper.SetDefault("search.max_candidates", 200)
	viper.SetDefault("search.results_per_query", 10)
	viper.SetDefault("search.query_delay", "1s")
	viper.SetDefault("search.timeout", "15s")

	viper.SetDefault("queries.base_file", "config/base-queries.json")
	viper.SetDefault("queries.policy_file", "config/policy.yaml")
	viper.SetDefault("queries.delta_count", 3)

	viper.SetDefault("feeds.enabled", false)
	viper.SetDefault("feeds.file", "config/feeds.yaml")
	viper.SetDefault("feeds.timeout", "20s")
	viper.SetDefault("feeds.max_items_per_feed", 25)
	viper.SetDefault("feeds.user_agent", "newscurator/1.0")

	viper.SetDefault("fetch.connect_timeout", "10s")
	viper.SetDefault("fetch.total_timeout", "30s")
	viper.SetDefault("fetch.article_budget", "45s")
	viper.SetDefault("fetch.request_delay", "500ms")
	viper.SetDefault("fetch.min_word_count", 120)
	viper.SetDefault("fetch.min_content_len", 400)
	viper.SetDefault("fetch.ascii_ratio", 0.85)
	viper.SetDefault("fetch.user_agent", "newscurator/1.0")

	viper.SetDefault("selection.select_top", 20)
	viper.SetDefault("selection.rank_batch_max", 40)
	viper.SetDefault("selection.domain_cap", 2)
	viper.SetDefault("selection.domain_cap_relaxed", 3)
	viper.SetDefault("selection.paywall_max", 5)

	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("search.google.api_key", []string{
		"GOOGLE_CUSTOM_SEARCH_API_KEY",
		"GOOGLE_CSE_API_KEY",
	})

	bindEnvKeys("search.google.search_id", []string{
		"GOOGLE_CUSTOM_SEARCH_ID",
		"GOOGLE_CSE_ID",
	})

	bindEnvKeys("search.provider", []string{
		"SEARCH_PROVIDER",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"NEWSCURATOR_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig expands paths and validates duration strings.
func postProcessConfig(config *Config) error {
	config.App.DataDir = expandPath(config.App.DataDir)
	config.App.CacheDir = expandPath(config.App.CacheDir)

	durations := map[string]string{
		"ai.gemini.timeout":     config.AI.Gemini.Timeout,
		"search.query_delay":    config.Search.QueryDelay,
		"search.timeout":        config.Search.Timeout,
		"feeds.timeout":         config.Feeds.Timeout,
		"fetch.connect_timeout": config.Fetch.ConnectTimeout,
		"fetch.total_timeout":   config.Fetch.TotalTimeout,
		"fetch.article_budget":  config.Fetch.ArticleBudget,
		"fetch.request_delay":   config.Fetch.RequestDelay,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// ValidateForRun ensures credentials required by a live discovery run are
// present. This is deliberately not part of Load: commands that only read
// stored artifacts (report, cache) work without API keys.
func ValidateForRun(config *Config) error {
	var errs []string

	if config.AI.Gemini.APIKey == "" {
		errs = append(errs, "Gemini API key is required. Set GEMINI_API_KEY or ai.gemini.api_key in the config file")
	}

	switch config.Search.Provider {
	case "google":
		if config.Search.Google.APIKey == "" || config.Search.Google.SearchID == "" {
			errs = append(errs, "Google Custom Search requires both API key and Search ID. Set GOOGLE_CUSTOM_SEARCH_API_KEY and GOOGLE_CUSTOM_SEARCH_ID")
		}
	case "mock":
		// No credentials needed.
	default:
		errs = append(errs, fmt.Sprintf("Unknown search provider: %s. Supported: google, mock", config.Search.Provider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Duration parses a configured duration string, falling back to def when the
// value is empty or malformed.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// Convenience getters for frequently accessed values
func GetGeminiAPIKey() string { return Get().AI.Gemini.APIKey }
func GetGeminiModel() string  { return Get().AI.Gemini.Model }
func GetDataDir() string      { return Get().App.DataDir }
func GetCacheDir() string     { return Get().App.CacheDir }
func IsDebugMode() bool       { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
