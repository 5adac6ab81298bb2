package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	EngineLive      = "live"
	EngineSimulated = "simulated"
)

// Config holds the application configuration.
type Config struct {
	ServerPort         int      `mapstructure:"PORT"`
	DatabasePath       string   `mapstructure:"DATABASE_PATH"`
	StoreDir           string   `mapstructure:"DIRBACK_STORE_DIR"` // Base path for target metadata and archives
	EngineMode         string   `mapstructure:"DIRBACK_ENGINE"`    // "live" or "simulated", fixed for the process
	SimulatedSeed      int64    `mapstructure:"DIRBACK_SIM_SEED"`
	CompressionLevel   int      `mapstructure:"DIRBACK_GZIP_LEVEL"`
	JWTSecret          string   `mapstructure:"JWT_SECRET"` // Empty disables API authentication
	LogLevel           string   `mapstructure:"LOG_LEVEL"`
	LogPretty          bool     `mapstructure:"LOG_PRETTY"`
	AllowedOrigins     []string `mapstructure:"CORS_ORIGINS"`
	StorageWarnPercent float64  `mapstructure:"STORAGE_WARN_PERCENT"`
}

var defaults = map[string]any{
	"PORT":                 8080,
	"DATABASE_PATH":        "./dirback.db",
	"DIRBACK_STORE_DIR":    "./dirback-data",
	"DIRBACK_ENGINE":       EngineLive,
	"DIRBACK_SIM_SEED":     1,
	"DIRBACK_GZIP_LEVEL":   0,
	"JWT_SECRET":           "",
	"LOG_LEVEL":            "info",
	"LOG_PRETTY":           true,
	"CORS_ORIGINS":         []string{"http://localhost:3000"},
	"STORAGE_WARN_PERCENT": 90.0,
}

// Load loads configuration from environment variables, an optional YAML file
// named by DIRBACK_CONFIG, or defaults.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	if path := os.Getenv("DIRBACK_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	// Env values arrive as one comma-separated string.
	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		cfg.AllowedOrigins = strings.Split(cfg.AllowedOrigins[0], ",")
	}
	cfg.EngineMode = strings.ToLower(strings.TrimSpace(cfg.EngineMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	switch c.EngineMode {
	case EngineLive, EngineSimulated:
	default:
		return fmt.Errorf("unknown engine mode %q (want %q or %q)", c.EngineMode, EngineLive, EngineSimulated)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid port %d", c.ServerPort)
	}
	if c.StoreDir == "" {
		return fmt.Errorf("store directory must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	return nil
}
