package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Host       string `json:"host"`
		Port       int    `json:"port"`
		TrustProxy bool   `json:"trustProxy"` // honour X-Forwarded-For / X-Real-IP
	} `json:"server"`
	MongoDB struct {
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"mongodb"`
	Frontend struct {
		URL string `json:"url"`
	} `json:"frontend"`
	Riot struct {
		APIKey           string `json:"apiKey"`
		TimeoutSeconds   int    `json:"timeoutSeconds"`
		MaxRetries       *int   `json:"maxRetries"` // unset means 3; 0 disables retries
		MatchPageSize    int    `json:"matchPageSize"`
		FetchConcurrency int    `json:"fetchConcurrency"`
		BaseURL          string `json:"baseUrl,omitempty"` // overrides https://{routing}.api.riotgames.com, for local stubs
	} `json:"riot"`
	Store struct {
		Driver string `json:"driver"` // "mongo" or "memory"
	} `json:"store"`
	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"` // "text" or "json"
	} `json:"log"`
	RateLimit struct {
		RequestsPerMinute int `json:"requestsPerMinute"`
		Burst             int `json:"burst"`
	} `json:"rateLimit"`
}

// Load reads configs/config.<env>.json, expanding ${VAR} references from the
// environment. A .env file is loaded into the environment first when present.
func Load(env string) (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		// Default to configs directory relative to working directory
		configDir = "configs"
	}

	filename := fmt.Sprintf("config.%s.json", env)
	configPath := filepath.Join(configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Environment = env
	return cfg, nil
}

// Parse decodes a config document, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	configStr := expandEnvVars(string(data))

	var cfg Config
	if err := json.Unmarshal([]byte(configStr), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultMaxRetries = 3

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = "opgg"
	}
	if c.Riot.TimeoutSeconds <= 0 {
		c.Riot.TimeoutSeconds = 10
	}
	if c.Riot.MaxRetries == nil {
		retries := defaultMaxRetries
		c.Riot.MaxRetries = &retries
	} else if *c.Riot.MaxRetries < 0 {
		retries := 0
		c.Riot.MaxRetries = &retries
	}
	if c.Riot.MatchPageSize <= 0 {
		c.Riot.MatchPageSize = 20
	}
	if c.Riot.FetchConcurrency <= 0 {
		c.Riot.FetchConcurrency = 4
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverMongo
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
}

func (c *Config) validate() error {
	if c.Riot.APIKey == "" {
		return errors.New("riot.apiKey is required (set RIOT_API_KEY)")
	}
	switch c.Store.Driver {
	case StoreDriverMongo:
		if c.MongoDB.URI == "" {
			return errors.New("mongodb.uri is required when store.driver is mongo")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Riot.MatchPageSize > 100 {
		return errors.New("riot.matchPageSize must be at most 100")
	}
	return nil
}

// RiotMaxRetries is how many times a failed upstream request is retried.
func (c *Config) RiotMaxRetries() int {
	if c.Riot.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *c.Riot.MaxRetries
}

// RiotTimeout is the per-request timeout for upstream calls.
func (c *Config) RiotTimeout() time.Duration {
	return time.Duration(c.Riot.TimeoutSeconds) * time.Second
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func GetEnv() string {
	env := os.Getenv("TRACKER_ENV")
	if env == "" {
		return "dev"
	}
	return env
}
