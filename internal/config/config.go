// Package config loads loom's configuration from ~/.loom/config.yaml
// with LOOM_* environment overrides. A missing file is created with
// defaults on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge" yaml:"knowledge"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// EngineConfig controls plan execution.
type EngineConfig struct {
	// FailurePolicy is "fail_fast" or "best_effort".
	FailurePolicy string `mapstructure:"failure_policy" yaml:"failure_policy"`

	// MaxAdaptations caps replanner-triggered plan growth.
	MaxAdaptations int `mapstructure:"max_adaptations" yaml:"max_adaptations"`

	// CallTimeoutSeconds bounds a single tool call.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`

	// RetryAttempts is the bounded retry count for network tools.
	RetryAttempts int `mapstructure:"retry_attempts" yaml:"retry_attempts"`

	// RetryBackoffMs is the base backoff between retries.
	RetryBackoffMs int `mapstructure:"retry_backoff_ms" yaml:"retry_backoff_ms"`

	// ProfilesPath points to optional tool profile overrides.
	ProfilesPath string `mapstructure:"profiles_path" yaml:"profiles_path"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	CacheSize       int    `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// GitHubConfig configures the repository and issue tracker tools.
type GitHubConfig struct {
	Token   string `mapstructure:"token" yaml:"token"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// KnowledgeConfig configures the local knowledge store.
type KnowledgeConfig struct {
	DataDir  string  `mapstructure:"data_dir" yaml:"data_dir"`
	MinScore float64 `mapstructure:"min_score" yaml:"min_score"`

	// UseEmbeddings enables the semantic retrieval tier backed by the
	// LLM endpoint's embedding model.
	UseEmbeddings bool   `mapstructure:"use_embeddings" yaml:"use_embeddings"`
	EmbedModel    string `mapstructure:"embed_model" yaml:"embed_model"`
}

// LLMConfig configures the synthesis provider.
type LLMConfig struct {
	// Provider is "ollama" or "none".
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// ServerConfig configures loom serve.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is trace, debug, info, warn, or error.
	Level string `mapstructure:"level" yaml:"level"`

	// Pretty enables the human console writer instead of JSON.
	Pretty bool `mapstructure:"pretty" yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			FailurePolicy:      "fail_fast",
			MaxAdaptations:     3,
			CallTimeoutSeconds: 30,
			RetryAttempts:      0,
			RetryBackoffMs:     500,
		},
		Search: SearchConfig{
			CacheSize:       100,
			CacheTTLMinutes: 5,
		},
		Knowledge: KnowledgeConfig{
			DataDir:       "~/.loom",
			MinScore:      0.1,
			UseEmbeddings: false,
			EmbedModel:    "nomic-embed-text",
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			Model:       "llama3",
			MaxTokens:   2048,
			Temperature: 0.3,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8396,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads ~/.loom/config.yaml, creating it with defaults first if
// absent.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".loom", "config.yaml"))
}

// LoadFromPath reads configuration from path, merging LOOM_*
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	path = ExpandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: LOOM_SEARCH_API_KEY, LOOM_GITHUB_TOKEN.
	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Knowledge.DataDir = ExpandPath(cfg.Knowledge.DataDir)
	cfg.Engine.ProfilesPath = ExpandPath(cfg.Engine.ProfilesPath)
	return &cfg, nil
}

// SaveToPath writes the configuration to path.
func (c *Config) SaveToPath(path string) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := "# loom configuration\n# Environment overrides use the LOOM_ prefix, e.g. LOOM_SEARCH_API_KEY.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}

// ExpandPath resolves a leading tilde against the home directory.
func ExpandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return homeDir
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~/"))
}
