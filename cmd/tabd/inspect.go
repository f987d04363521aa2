package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/tabd/tabd/pkg/config"
	"github.com/tabd/tabd/pkg/merge"
	"github.com/tabd/tabd/pkg/persist"
	"github.com/tabd/tabd/pkg/tlog"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <relative-path>",
		Short: "load the persisted log for a file and print the merged store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := loadConfigOrDie()
			relPath := args[0]

			store, err := storeForLayout(cfg)
			if err != nil {
				return err
			}

			rec, err := store.Load(context.Background(), cfg.WorkspaceRoot, relPath)
			if err != nil {
				return errors.Wrapf(err, "load log for %s", relPath)
			}

			items, err := persist.FromRecord(*rec)
			if err != nil {
				return errors.Wrap(err, "decode record")
			}
			merged := merge.MergeSequentially(nil, items)

			out, err := persist.MarshalRecord(persist.ToRecord(merged, ""))
			if err != nil {
				return errors.Wrap(err, "marshal result")
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}

func storeForLayout(cfg *config.Config) (persist.Store, error) {
	log := tlog.New()
	switch cfg.Layout {
	case "homeDirectory":
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolve home directory")
		}
		return persist.NewHomeDirectoryStore(home, log), nil
	case "vcs-notes":
		return persist.NewVCSNotesStore(cfg.GitBin, log), nil
	default:
		return persist.NewRepositoryStore(log), nil
	}
}

// persistenceForLayout builds the session.Persistence a Coordinator
// should use for cfg: the configured Store wrapped in a SessionAdapter,
// with the SQLite freshness index (cfg.IndexPath) attached so onActivate
// can short-circuit a reload (SPEC_FULL.md §4.6). Index failures degrade
// to no freshness cache rather than failing the command — the index is
// advisory.
func persistenceForLayout(cfg *config.Config) (*persist.SessionAdapter, error) {
	store, err := storeForLayout(cfg)
	if err != nil {
		return nil, err
	}
	adapter := &persist.SessionAdapter{Store: store, WorkspaceRoot: cfg.WorkspaceRoot}

	if cfg.IndexPath != "" {
		idx, err := persist.OpenIndex(cfg.IndexPath)
		if err != nil {
			tlog.New().Warn("persistence: freshness index unavailable at %s: %s", cfg.IndexPath, err)
		} else {
			adapter.Index = idx
		}
	}
	return adapter, nil
}
