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
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Store    Store    `mapstructure:"store"`
	Storage  Storage  `mapstructure:"storage"`
	Trends   Trends   `mapstructure:"trends"`
	Research Research `mapstructure:"research"`
	Refine   Refine   `mapstructure:"refine"`
	Metadata Metadata `mapstructure:"metadata"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Schedule Schedule `mapstructure:"schedule"`
	Server   Server   `mapstructure:"server"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug  bool   `mapstructure:"debug"`
	Author string `mapstructure:"author"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	ResearchModel string  `mapstructure:"research_model"`
	ImageModel    string  `mapstructure:"image_model"`
	Timeout       string  `mapstructure:"timeout"`
	MaxTokens     int32   `mapstructure:"max_tokens"`
	Temperature   float32 `mapstructure:"temperature"`
}

// Store holds content store configuration
type Store struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Timeout    string `mapstructure:"timeout"`
}

// Storage holds object storage configuration for cover images
type Storage struct {
	Provider      string `mapstructure:"provider"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	LocalDir      string `mapstructure:"local_dir"`
}

// Trends holds trend feed configuration
type Trends struct {
	Feeds           []string `mapstructure:"feeds"`
	MaxItemsPerFeed int      `mapstructure:"max_items_per_feed"`
	Timeout         string   `mapstructure:"timeout"`
	CacheTTL        string   `mapstructure:"cache_ttl"`
	UserAgent       string   `mapstructure:"user_agent"`
}

// Research holds grounded research configuration
type Research struct {
	MaxPoints int `mapstructure:"max_points"`
}

// Refine holds refinement loop configuration
type Refine struct {
	SatisfactionThreshold int `mapstructure:"satisfaction_threshold"`
}

// Metadata holds metadata extraction configuration
type Metadata struct {
	MaxDraftChars  int `mapstructure:"max_draft_chars"`
	WordsPerMinute int `mapstructure:"words_per_minute"`
}

// Pipeline holds orchestrator configuration
type Pipeline struct {
	StageTimeout string `mapstructure:"stage_timeout"`
	ToolCategory string `mapstructure:"tool_category"`
}

// Schedule holds scheduled run configuration
type Schedule struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
	Kind    string `mapstructure:"kind"`
}

// Server holds HTTP server configuration
type Server struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	AdminAPIKey string   `mapstructure:"admin_api_key"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".aiblog")
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

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
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
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.author", "AI Blog Bot")

	// AI defaults
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.research_model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.image_model", "gemini-2.0-flash-preview-image-generation")
	viper.SetDefault("ai.gemini.timeout", "120s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.7)

	// Content store defaults
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("store.sqlite_path", ".aiblog/aiblog.db")
	viper.SetDefault("store.timeout", "10s")

	// Object storage defaults
	viper.SetDefault("storage.provider", "s3")
	viper.SetDefault("storage.bucket", "blog-images")
	viper.SetDefault("storage.prefix", "")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.local_dir", ".aiblog/images")

	// Trends defaults
	viper.SetDefault("trends.feeds", []string{
		"https://hnrss.org/frontpage",
		"https://techcrunch.com/feed/",
		"https://www.theverge.com/rss/index.xml",
	})
	viper.SetDefault("trends.max_items_per_feed", 10)
	viper.SetDefault("trends.timeout", "15s")
	viper.SetDefault("trends.cache_ttl", "30m")
	viper.SetDefault("trends.user_agent", "aiblog/1.0")

	// Stage defaults
	viper.SetDefault("research.max_points", 0)
	viper.SetDefault("refine.satisfaction_threshold", 8)
	viper.SetDefault("metadata.max_draft_chars", 12000)
	viper.SetDefault("metadata.words_per_minute", 200)

	// Pipeline defaults
	viper.SetDefault("pipeline.stage_timeout", "10m")
	viper.SetDefault("pipeline.tool_category", "AI Tool of the Day")

	// Schedule defaults
	viper.SetDefault("schedule.enabled", false)
	viper.SetDefault("schedule.cron", "0 6 * * *")
	viper.SetDefault("schedule.kind", "general")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("store.dsn", []string{
		"DATABASE_URL",
		"SUPABASE_DB_URL",
	})

	// Supabase exposes its storage through the S3 protocol
	bindEnvKeys("storage.endpoint", []string{
		"SUPABASE_S3_ENDPOINT",
		"S3_ENDPOINT",
	})

	bindEnvKeys("storage.access_key", []string{
		"SUPABASE_S3_ACCESS_KEY_ID",
		"AWS_ACCESS_KEY_ID",
	})

	bindEnvKeys("storage.secret_key", []string{
		"SUPABASE_S3_SECRET_ACCESS_KEY",
		"AWS_SECRET_ACCESS_KEY",
	})

	bindEnvKeys("storage.public_base_url", []string{
		"SUPABASE_PUBLIC_STORAGE_URL",
		"STORAGE_PUBLIC_BASE_URL",
	})

	bindEnvKeys("server.admin_api_key", []string{
		"ADMIN_API_KEY",
		"AIBLOG_ADMIN_API_KEY",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"AIBLOG_DEBUG",
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

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.Store.SQLitePath != "" {
		config.Store.SQLitePath = expandPath(config.Store.SQLitePath)
	}
	if config.Storage.LocalDir != "" {
		config.Storage.LocalDir = expandPath(config.Storage.LocalDir)
	}
	config.Storage.PublicBaseURL = strings.TrimRight(config.Storage.PublicBaseURL, "/")
	config.Store.Driver = strings.ToLower(strings.TrimSpace(config.Store.Driver))
	config.Storage.Provider = strings.ToLower(strings.TrimSpace(config.Storage.Provider))

	// Validate durations
	durations := map[string]string{
		"ai.gemini.timeout":      config.AI.Gemini.Timeout,
		"store.timeout":          config.Store.Timeout,
		"trends.timeout":         config.Trends.Timeout,
		"trends.cache_ttl":       config.Trends.CacheTTL,
		"pipeline.stage_timeout": config.Pipeline.StageTimeout,
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

// validateConfig ensures the configured backends are coherent. The Gemini key
// is checked when the LLM client is built so that migrate works without it.
func validateConfig(config *Config) error {
	var errors []string

	switch config.Store.Driver {
	case "postgres":
		if config.Store.DSN == "" {
			errors = append(errors, "Postgres store requires a DSN. Set DATABASE_URL or store.dsn in config file.")
		}
	case "sqlite":
		if config.Store.SQLitePath == "" {
			errors = append(errors, "SQLite store requires store.sqlite_path")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown store driver: %s. Supported: postgres, sqlite", config.Store.Driver))
	}

	switch config.Storage.Provider {
	case "s3":
		if config.Storage.Bucket == "" {
			errors = append(errors, "S3 storage requires storage.bucket")
		}
	case "local":
		if config.Storage.LocalDir == "" {
			errors = append(errors, "Local storage requires storage.local_dir")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown storage provider: %s. Supported: s3, local", config.Storage.Provider))
	}

	if config.Refine.SatisfactionThreshold < 1 || config.Refine.SatisfactionThreshold > 10 {
		errors = append(errors, fmt.Sprintf("refine.satisfaction_threshold must be between 1 and 10, got %d", config.Refine.SatisfactionThreshold))
	}

	switch config.Schedule.Kind {
	case "general", "tool":
	default:
		errors = append(errors, fmt.Sprintf("Unknown schedule kind: %s. Supported: general, tool", config.Schedule.Kind))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Duration parses a duration already validated by postProcessConfig,
// falling back when the value is empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetApp() App           { return Get().App }
func GetAI() AI             { return Get().AI }
func GetStore() Store       { return Get().Store }
func GetStorage() Storage   { return Get().Storage }
func GetTrends() Trends     { return Get().Trends }
func GetPipeline() Pipeline { return Get().Pipeline }
func GetLogging() Logging   { return Get().Logging }
func GetServer() Server     { return Get().Server }

// Specific convenience getters for frequently accessed values
func GetGeminiAPIKey() string { return Get().AI.Gemini.APIKey }
func GetGeminiModel() string  { return Get().AI.Gemini.Model }
func IsDebugMode() bool       { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
