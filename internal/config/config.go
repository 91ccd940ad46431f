package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendRedis  = "redis"
)

type Config struct {
	CSVPath      string `mapstructure:"csv_path"`
	SystemPrompt string `mapstructure:"system_prompt"`
	HTTPAddr     string `mapstructure:"http_addr"`

	// AI provider
	AIProvider        string `mapstructure:"ai_provider"`
	OllamaBaseURL     string `mapstructure:"ollama_base_url"`
	OllamaModel       string `mapstructure:"ollama_model"`
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url"`
	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key"`
	OpenRouterModel   string `mapstructure:"openrouter_model"`
	OpenRouterSiteURL string `mapstructure:"openrouter_site_url"`
	OpenRouterAppName string `mapstructure:"openrouter_app_name"`

	// session history
	SessionBackend        string        `mapstructure:"session_backend"`
	ChatContextWindowSize int           `mapstructure:"chat_context_window_size"`
	DBDriver              string        `mapstructure:"db_driver"`
	DBDSN                 string        `mapstructure:"db_dsn"`
	RedisAddr             string        `mapstructure:"redis_addr"`
	RedisPassword         string        `mapstructure:"redis_password"`
	RedisDB               int           `mapstructure:"redis_db"`
	RedisHistoryTTL       time.Duration `mapstructure:"redis_history_ttl"`

	// rabbitMQ
	RabbitURL         string `mapstructure:"rabbit_url"`
	RabbitQueue       string `mapstructure:"rabbit_queue"`
	WorkerConcurrency int    `mapstructure:"worker_concurrency"`
	WorkerEmbedded    bool   `mapstructure:"worker_embedded"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"csv_path":      "students.csv",
	"system_prompt": "",
	"http_addr":     ":8000",

	"ai_provider":         "openrouter",
	"ollama_base_url":     "http://localhost:11434",
	"ollama_model":        "llama3.1:latest",
	"openrouter_base_url": "https://openrouter.ai/api/v1",
	"openrouter_api_key":  "",
	"openrouter_model":    "openai/gpt-oss-20b:free",
	"openrouter_site_url": "",
	"openrouter_app_name": "csv-agent",

	"session_backend":          BackendMemory,
	"chat_context_window_size": 0,
	"db_driver":                "sqlite",
	"db_dsn":                   "file::memory:?cache=shared",
	"redis_addr":               "127.0.0.1:6379",
	"redis_password":           "",
	"redis_db":                 0,
	"redis_history_ttl":        "0s",

	"rabbit_url":         "",
	"rabbit_queue":       "chat_jobs",
	"worker_concurrency": 2,
	"worker_embedded":    true,

	"log_level":  "info",
	"log_format": "json",
}

// Load reads configuration from the environment. Values in a dotenv file
// (CONFIG_FILE, or ./.env when present) are used where the environment is unset.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.AIProvider = strings.ToLower(strings.TrimSpace(c.AIProvider))
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.ChatContextWindowSize < 0 {
		c.ChatContextWindowSize = 0
	}
}

// AsyncEnabled reports whether async chat jobs can be queued.
func (c Config) AsyncEnabled() bool { return c.RabbitURL != "" }

func (c Config) Validate() error {
	if strings.TrimSpace(c.CSVPath) == "" {
		return errors.New("CSV_PATH is required")
	}
	switch c.AIProvider {
	case "openrouter":
		if strings.TrimSpace(c.OpenRouterAPIKey) == "" {
			return errors.New("OPENROUTER_API_KEY is required when AI_PROVIDER=openrouter")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown AI_PROVIDER=%q", c.AIProvider)
	}
	switch c.SessionBackend {
	case BackendMemory, BackendSQL, BackendRedis:
	default:
		return fmt.Errorf("unknown SESSION_BACKEND=%q", c.SessionBackend)
	}
	return nil
}
