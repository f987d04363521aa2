package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/tabd/tabd/pkg/broadcast"
	"github.com/tabd/tabd/pkg/persist"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the decoration-transport WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfigOrDie()

			b := broadcast.New(cfg.BroadcastBufferSize)
			relay := broadcast.NewRelay(b, log)

			mux := http.NewServeMux()
			mux.Handle("/api/decorations/", relay)
			mux.HandleFunc("/api/records/", recordIngestHandler(b, log))

			log.Info("tabd serve: listening on %s", cfg.ListenAddr)
			return http.ListenAndServe(cfg.ListenAddr, mux)
		},
	}
	return cmd
}

// recordIngestHandler accepts a POST'd §6 JSON record for testing and
// re-publishes it through the broadcaster under the uri named by the
// path suffix, so `tabd serve` is self-contained without a real editor
// host attached.
func recordIngestHandler(b *broadcast.Broadcaster, log interface{ Warn(string, ...interface{}) }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		uri := r.URL.Path[len("/api/records/"):]
		if uri == "" {
			http.Error(w, "missing document uri", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, errors.Wrap(err, "read body").Error(), http.StatusBadRequest)
			return
		}
		var rec persist.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			http.Error(w, errors.Wrap(err, "parse record").Error(), http.StatusBadRequest)
			return
		}
		items, err := persist.FromRecord(rec)
		if err != nil {
			log.Warn("serve: malformed record for %s: %s", uri, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		b.Publish(uri, items)
		w.WriteHeader(http.StatusAccepted)
	}
}
