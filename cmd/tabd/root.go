package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tabd/tabd/pkg/config"
	"github.com/tabd/tabd/pkg/tlog"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tabd",
		Short: "positional-tracking and provenance engine",
	}

	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newInspectCmd())

	return cmd
}

func loadConfigOrDie() (*config.Config, tlog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{Layout: "repository", WorkspaceRoot: "."}
	}
	if cfg.LogLevel != "" {
		os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	return cfg, tlog.New()
}
