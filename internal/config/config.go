// Package config loads bmtree settings from a YAML file, BMTREE_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/nikbrunner/bmtree/internal/tree"
)

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Config holds application configuration.
type Config struct {
	Backend       string `mapstructure:"backend"`
	DatabasePath  string `mapstructure:"database_path"`
	JSONPath      string `mapstructure:"json_path"`
	ToolbarRootID string `mapstructure:"toolbar_root_id"`
	OtherRootID   string `mapstructure:"other_root_id"`
	OtherRootName string `mapstructure:"other_root_name"`
	LogLevel      string `mapstructure:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	dir := configDir()
	return Config{
		Backend:       BackendSQLite,
		DatabasePath:  filepath.Join(dir, "bookmarks.db"),
		JSONPath:      filepath.Join(dir, "bookmarks.json"),
		ToolbarRootID: "1",
		OtherRootID:   "2",
		OtherRootName: "Other Bookmarks",
		LogLevel:      "warn",
	}
}

// Roles returns the root roles for tree snapshots.
func (c Config) Roles() tree.Roles {
	return tree.Roles{ToolbarID: c.ToolbarRootID, OtherID: c.OtherRootID}
}

// Level returns the configured log level.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}

// DefaultConfigFilePath returns the default config path: ~/.config/bmtree/config.yaml
func DefaultConfigFilePath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "bmtree")
	}
	return filepath.Join(home, ".config", "bmtree")
}

// Load reads the configuration. An explicit path must exist; without one the
// default location is tried and a missing file just yields the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BMTREE")
	v.AutomaticEnv()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("database_path", defaults.DatabasePath)
	v.SetDefault("json_path", defaults.JSONPath)
	v.SetDefault("toolbar_root_id", defaults.ToolbarRootID)
	v.SetDefault("other_root_id", defaults.OtherRootID)
	v.SetDefault("other_root_name", defaults.OtherRootName)
	v.SetDefault("log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.DatabasePath = expandHome(cfg.DatabasePath)
	cfg.JSONPath = expandHome(cfg.JSONPath)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendJSON:
	default:
		return fmt.Errorf("backend %q: must be %q or %q", c.Backend, BackendSQLite, BackendJSON)
	}
	if c.ToolbarRootID == "" || c.OtherRootID == "" {
		return errors.New("toolbar_root_id and other_root_id must be set")
	}
	if c.ToolbarRootID == c.OtherRootID {
		return fmt.Errorf("toolbar_root_id and other_root_id are both %q", c.ToolbarRootID)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
