package broadcast

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tabd/tabd/pkg/persist"
	"github.com/tabd/tabd/pkg/tlog"
)

// Relay accepts renderer connections at /api/decorations/{doc} and
// relays Broadcaster output, JSON-encoded in the same wire shape as the
// persisted record's "changes" array (SPEC_FULL.md §4.7) — this is the
// attachment point for a decoration-rendering host, which is explicitly
// out of scope for the core itself.
type Relay struct {
	b   *Broadcaster
	log tlog.Logger
}

// NewRelay wraps b as an http.Handler.
func NewRelay(b *Broadcaster, log tlog.Logger) *Relay {
	if log == nil {
		log = tlog.Nop()
	}
	return &Relay{b: b, log: log}
}

const decorationsPrefix = "/api/decorations/"

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, decorationsPrefix) {
		http.NotFound(w, r)
		return
	}
	uri := strings.TrimPrefix(r.URL.Path, decorationsPrefix)
	if uri == "" {
		http.Error(w, "missing document uri", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		rl.log.Warn("broadcast: accept failed for %s: %s", uri, err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	updates, id := rl.b.Subscribe(uri)
	defer rl.b.Unsubscribe(uri, id)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case upd, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			rec := persist.ToRecord(upd.Items, "")
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, rec)
			cancel()
			if err != nil {
				rl.log.Warn("broadcast: write failed for %s: %s", uri, err)
				return
			}
		}
	}
}
