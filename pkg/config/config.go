// Package config loads tabd's configuration, layered with Viper:
// built-in defaults, then $HOME/.tabd/config.yaml, then TABD_* env vars.
// Command flags are not bound into Config. This matches the teacher's
// env-var-first style but goes
// through the library the rest of the example pack reaches for instead
// of hand-rolled os.Getenv/strconv.Atoi helpers.
package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config is tabd's resolved runtime configuration.
type Config struct {
	Author       string `mapstructure:"author"`
	Layout       string `mapstructure:"layout"` // "repository" | "homeDirectory" | "vcs-notes"
	WorkspaceRoot string `mapstructure:"workspace_root"`
	GitBin       string `mapstructure:"git_bin"`
	IndexPath    string `mapstructure:"index_path"`
	ListenAddr   string `mapstructure:"listen_addr"`
	BroadcastBufferSize int `mapstructure:"broadcast_buffer_size"`
	LogLevel     string `mapstructure:"log_level"`
}

// Load reads configuration from $HOME/.tabd/config.yaml (if present),
// TABD_* environment variables, and viper defaults, in that precedence
// order (env overrides file, defaults fill gaps).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TABD")
	v.AutomaticEnv()

	v.SetDefault("author", "")
	v.SetDefault("layout", "repository")
	v.SetDefault("workspace_root", ".")
	v.SetDefault("git_bin", "git")
	v.SetDefault("index_path", defaultIndexPath())
	v.SetDefault("listen_addr", ":4546")
	v.SetDefault("broadcast_buffer_size", 16)
	v.SetDefault("log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".tabd"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func defaultIndexPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tabd-index.db"
	}
	return filepath.Join(home, ".tabd", "index.db")
}
