package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRunCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(ResearchRuns.WithLabelValues("moderate", "ok"))
	ObserveRun("moderate", "ok", 3*time.Second, 8, 0.18)
	after := testutil.ToFloat64(ResearchRuns.WithLabelValues("moderate", "ok"))
	if after != before+1 {
		t.Fatalf("run counter = %f, want %f", after, before+1)
	}
}

func TestObserveAdapterCountsStatus(t *testing.T) {
	before := testutil.ToFloat64(AdapterRequests.WithLabelValues("hackernews", "timed-out"))
	ObserveAdapter("hackernews", "timed-out", 4*time.Second)
	after := testutil.ToFloat64(AdapterRequests.WithLabelValues("hackernews", "timed-out"))
	if after != before+1 {
		t.Fatalf("adapter counter = %f, want %f", after, before+1)
	}
}
