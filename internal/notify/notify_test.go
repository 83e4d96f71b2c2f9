package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/podlens/podlens/internal/ingest"
)

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) SendDigest(ctx context.Context, text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

func failedResult() ingest.Result {
	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return ingest.Result{
		Trigger:    ingest.TriggerSchedule,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Tables: []ingest.TableResult{
			{Table: ingest.TableContributors, Status: ingest.StatusSuccess, RowsSynced: 12},
			{Table: ingest.TableTasks, Status: ingest.StatusFailed, Error: "connection refused"},
			{Table: ingest.TableReviews, Status: ingest.StatusSkipped},
		},
	}
}

func TestDigest(t *testing.T) {
	got := Digest(failedResult())
	for _, want := range []string{
		"finished with failures",
		"contributors: 12 rows",
		"tasks: FAILED (connection refused)",
		"reviews: skipped",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Digest() missing %q:\n%s", want, got)
		}
	}

	ok := ingest.Result{
		Trigger:    ingest.TriggerManual,
		StartedAt:  time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 20, 12, 0, 2, 0, time.UTC),
		Tables:     []ingest.TableResult{{Table: ingest.TableTasks, Status: ingest.StatusSuccess, RowsSynced: 4}},
	}
	got = Digest(ok)
	if !strings.Contains(got, "completed in 2s") {
		t.Errorf("Digest() for a clean pass = %q", got)
	}
}

func TestBroadcast_OnlyOnFailure(t *testing.T) {
	n := &fakeNotifier{}
	ok := ingest.Result{Tables: []ingest.TableResult{{Table: ingest.TableTasks, Status: ingest.StatusSuccess}}}
	Broadcast(context.Background(), []Notifier{n}, ok)
	if len(n.sent) != 0 {
		t.Error("Broadcast() announced a successful pass")
	}

	Broadcast(context.Background(), []Notifier{n}, failedResult())
	if len(n.sent) != 1 {
		t.Fatalf("Broadcast() sent %d digests, want 1", len(n.sent))
	}
}

func TestBroadcast_DeliveryErrorsDoNotStopOthers(t *testing.T) {
	bad := &fakeNotifier{err: errors.New("channel_not_found")}
	good := &fakeNotifier{}
	Broadcast(context.Background(), []Notifier{bad, good}, failedResult())
	if len(bad.sent) != 1 || len(good.sent) != 1 {
		t.Errorf("Broadcast() deliveries = %d/%d, want 1/1", len(bad.sent), len(good.sent))
	}
}
