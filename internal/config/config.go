package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Defaults match the documented add-on configuration.
const (
	DefaultZ2MSlug            = "45df7312_zigbee2mqtt"
	DefaultZ2MFetchCap        = 20000
	DefaultLinesDefault       = 1000
	DefaultLinesMax           = 1000
	DefaultConfigDir          = "/config"
	DefaultAllAddonConfigsDir = "/all_addon_configs"
	DefaultSupervisorURL      = "http://supervisor"
	DefaultListenAddr         = "0.0.0.0:8099"
	DefaultMetricsAddr        = "127.0.0.1:9109"

	minZ2MFetchCap = 1000
)

// Config holds the gateway's startup configuration. It is built once from
// the environment and never mutated afterwards; every component receives it
// by value or as a shared read-only pointer.
type Config struct {
	Token           string // gateway bearer token
	SupervisorToken string // token for the Supervisor API

	Z2MSlug     string
	Z2MFetchCap int

	LinesDefault int
	LinesMax     int
	NoColors     bool

	ConfigDir          string
	AllAddonConfigsDir string
	SupervisorURL      string

	ListenAddr  string
	MetricsAddr string
	LogLevel    string
	LogFormat   string

	// EnvFile is the .env file that was loaded, if any; the watcher
	// observes it for changes.
	EnvFile string
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored for development overrides, the real
// deployment injects everything through the container environment.
func Load() (*Config, error) {
	envFile := ""
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Warn().Err(err).Msg("Failed to load .env file")
		} else {
			envFile = ".env"
			log.Info().Msg("Loaded configuration overrides from .env")
		}
	}

	cfg := &Config{
		Z2MSlug:            DefaultZ2MSlug,
		Z2MFetchCap:        DefaultZ2MFetchCap,
		LinesDefault:       DefaultLinesDefault,
		LinesMax:           DefaultLinesMax,
		NoColors:           true,
		ConfigDir:          DefaultConfigDir,
		AllAddonConfigsDir: DefaultAllAddonConfigsDir,
		SupervisorURL:      DefaultSupervisorURL,
		ListenAddr:         DefaultListenAddr,
		MetricsAddr:        DefaultMetricsAddr,
		LogLevel:           "info",
		LogFormat:          "auto",
		EnvFile:            envFile,
	}

	cfg.Token = strings.TrimSpace(os.Getenv("LOGGW_TOKEN"))
	cfg.SupervisorToken = strings.TrimSpace(os.Getenv("SUPERVISOR_TOKEN"))

	if slug := strings.TrimSpace(os.Getenv("LOGGW_Z2M_SLUG")); slug != "" {
		cfg.Z2MSlug = slug
	}
	var err error
	if cfg.Z2MFetchCap, err = intEnv("LOGGW_Z2M_FETCH_CAP", cfg.Z2MFetchCap); err != nil {
		return nil, err
	}
	if cfg.LinesDefault, err = intEnv("LOGGW_LINES_DEFAULT", cfg.LinesDefault); err != nil {
		return nil, err
	}
	if cfg.LinesMax, err = intEnv("LOGGW_LINES_MAX", cfg.LinesMax); err != nil {
		return nil, err
	}
	if cfg.NoColors, err = boolEnv("LOGGW_NO_COLORS", cfg.NoColors); err != nil {
		return nil, err
	}

	if dir := os.Getenv("LOGGW_CONFIG_DIR"); dir != "" {
		cfg.ConfigDir = dir
	}
	if dir := os.Getenv("LOGGW_ALL_ADDON_CONFIGS_DIR"); dir != "" {
		cfg.AllAddonConfigsDir = dir
	}
	if u := os.Getenv("LOGGW_SUPERVISOR_URL"); u != "" {
		cfg.SupervisorURL = strings.TrimSuffix(u, "/")
	}
	if addr := os.Getenv("LOGGW_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if addr, ok := os.LookupEnv("LOGGW_METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(addr)
	}
	if level := os.Getenv("LOGGW_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("LOGGW_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup invariants. A missing token is fatal here,
// before the server ever listens, never a per-request failure.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("LOGGW_TOKEN is required")
	}
	if c.SupervisorToken == "" {
		return fmt.Errorf("SUPERVISOR_TOKEN is required")
	}
	if strings.TrimSpace(c.Z2MSlug) == "" {
		return fmt.Errorf("LOGGW_Z2M_SLUG cannot be empty")
	}
	if c.LinesDefault <= 0 {
		return fmt.Errorf("LOGGW_LINES_DEFAULT must be positive, got %d", c.LinesDefault)
	}
	if c.LinesMax <= 0 {
		return fmt.Errorf("LOGGW_LINES_MAX must be positive, got %d", c.LinesMax)
	}
	if c.LinesMax < c.LinesDefault {
		return fmt.Errorf("LOGGW_LINES_MAX (%d) must be >= LOGGW_LINES_DEFAULT (%d)", c.LinesMax, c.LinesDefault)
	}
	if c.Z2MFetchCap < minZ2MFetchCap {
		return fmt.Errorf("LOGGW_Z2M_FETCH_CAP must be >= %d, got %d", minZ2MFetchCap, c.Z2MFetchCap)
	}
	return nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	return v, nil
}
