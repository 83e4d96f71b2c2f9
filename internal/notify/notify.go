// Package notify delivers sync digests to operator channels.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/podlens/podlens/internal/ingest"
)

// Notifier delivers one formatted digest to a channel.
type Notifier interface {
	SendDigest(ctx context.Context, text string) error
}

// Digest formats a sync result for operators.
func Digest(r ingest.Result) string {
	var b strings.Builder
	if r.OK() {
		fmt.Fprintf(&b, "Sync pass (%s) completed in %s\n", r.Trigger, r.FinishedAt.Sub(r.StartedAt).Round(1e9))
	} else {
		fmt.Fprintf(&b, ":warning: Sync pass (%s) finished with failures\n", r.Trigger)
	}
	for _, t := range r.Tables {
		switch t.Status {
		case ingest.StatusSuccess:
			fmt.Fprintf(&b, "  %s: %d rows\n", t.Table, t.RowsSynced)
		case ingest.StatusSkipped:
			fmt.Fprintf(&b, "  %s: skipped\n", t.Table)
		default:
			fmt.Fprintf(&b, "  %s: FAILED (%s)\n", t.Table, t.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Broadcast sends the digest of a failed pass to every notifier. Successful
// passes are not announced. Delivery errors are logged, never raised: a
// down notifier must not fail the sync path.
func Broadcast(ctx context.Context, notifiers []Notifier, r ingest.Result) {
	if r.OK() || len(notifiers) == 0 {
		return
	}
	text := Digest(r)
	for _, n := range notifiers {
		if err := n.SendDigest(ctx, text); err != nil {
			log.Printf("notify: send digest: %v", err)
		}
	}
}
