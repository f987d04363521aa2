package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/tabd/tabd/internal/testrope"
	"github.com/tabd/tabd/pkg/classify"
	"github.com/tabd/tabd/pkg/persist"
	"github.com/tabd/tabd/pkg/position"
	"github.com/tabd/tabd/pkg/session"
)

// fixture is the JSON shape `tabd apply` reads: one or more edit
// batches to fold through a Session Coordinator in order.
type fixture struct {
	Text    string       `json:"text"`
	Batches []editBatch  `json:"batches"`
}

type editBatch struct {
	Reason string     `json:"reason"`
	Edits  []editJSON `json:"edits"`
}

type editJSON struct {
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
	EndLine     int    `json:"endLine"`
	EndColumn   int    `json:"endColumn"`
	Text        string `json:"text"`
}

func newApplyCmd() *cobra.Command {
	var textFlag string
	var fileFlag string

	cmd := &cobra.Command{
		Use:   "apply <edits.json>",
		Short: "apply an edit-batch fixture through the engine and print the resulting record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfigOrDie()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "read fixture %s", args[0])
			}
			var fx fixture
			if err := json.Unmarshal(data, &fx); err != nil {
				return errors.Wrap(err, "parse fixture json")
			}

			text := fx.Text
			if fileFlag != "" {
				b, err := os.ReadFile(fileFlag)
				if err != nil {
					return errors.Wrapf(err, "read --file %s", fileFlag)
				}
				text = string(b)
			} else if textFlag != "" {
				text = textFlag
			}

			persistence, err := persistenceForLayout(cfg)
			if err != nil {
				return errors.Wrap(err, "build persistence")
			}

			doc := testrope.New("file://fixture", text)
			coord := session.New(cfg.Author, persistence, nil, log, nil)

			ctx := context.Background()
			if err := coord.OnActivate(ctx, doc); err != nil {
				return errors.Wrap(err, "activate")
			}

			for _, batch := range fx.Batches {
				edits := make([]position.Edit, 0, len(batch.Edits))
				for _, e := range batch.Edits {
					edits = append(edits, position.Edit{
						Range: position.Range{
							Start: position.Position{Line: e.StartLine, Column: e.StartColumn},
							End:   position.Position{Line: e.EndLine, Column: e.EndColumn},
						},
						Replacement: e.Text,
					})
					doc.SetText(doc.Apply(position.Edit{
						Range: position.Range{
							Start: position.Position{Line: e.StartLine, Column: e.StartColumn},
							End:   position.Position{Line: e.EndLine, Column: e.EndColumn},
						},
						Replacement: e.Text,
					}))
				}
				reason := classify.Reason(batch.Reason)
				if reason == "" {
					reason = classify.ReasonNone
				}
				if err := coord.OnEditBatch(doc, edits, reason); err != nil {
					log.Warn("apply: edit batch failed: %s", err)
				}
			}

			items := coord.Snapshot(doc.URI())
			rec := persist.ToRecord(items, "")
			out, err := persist.MarshalRecord(rec)
			if err != nil {
				return errors.Wrap(err, "marshal result")
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&textFlag, "text", "", "initial document text")
	cmd.Flags().StringVar(&fileFlag, "file", "", "read initial document text from this path")
	return cmd
}
