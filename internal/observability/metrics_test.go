package observability

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/provisionctl/internal/provision"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSuccessfulRun(t *testing.T) {
	m := NewRunMetrics()
	finished := time.Unix(1_760_000_000, 0)
	m.Record(provision.Report{
		Outcomes: []provision.Outcome{
			{Name: "go", Status: provision.StatusSkipped},
			{Name: "gomobile", Status: provision.StatusInstalled},
		},
		PathAdditions: []string{"/home/dev/go/bin"},
	}, 1500*time.Millisecond, finished)

	if got := testutil.ToFloat64(m.runSuccess); got != 1 {
		t.Fatalf("unexpected success gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.runDuration); got != 1.5 {
		t.Fatalf("unexpected duration gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.lastRun); got != float64(finished.Unix()) {
		t.Fatalf("unexpected timestamp gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.pathAdditions); got != 1 {
		t.Fatalf("unexpected path additions gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.requirementStatus.WithLabelValues("gomobile", "installed")); got != 1 {
		t.Fatalf("unexpected requirement gauge: %v", got)
	}
	if got := testutil.CollectAndCount(m.requirementStatus); got != 2 {
		t.Fatalf("unexpected series count: %d", got)
	}
}

func TestRecordResetsPreviousRun(t *testing.T) {
	m := NewRunMetrics()
	m.Record(provision.Report{Outcomes: []provision.Outcome{
		{Name: "flutter", Status: provision.StatusInstalled},
	}}, time.Second, time.Now())
	m.Record(provision.Report{Outcomes: []provision.Outcome{
		{Name: "flutter", Status: provision.StatusFailed, Err: errors.New("boom")},
	}}, time.Second, time.Now())

	if got := testutil.ToFloat64(m.runSuccess); got != 0 {
		t.Fatalf("expected failed run, got %v", got)
	}
	if got := testutil.CollectAndCount(m.requirementStatus); got != 1 {
		t.Fatalf("expected stale series dropped, got %d", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewRunMetrics()
	m.Record(provision.Report{Outcomes: []provision.Outcome{
		{Name: "go", Status: provision.StatusSkipped},
	}}, time.Second, time.Now())

	path := filepath.Join(t.TempDir(), "provisionctl.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `provisionctl_requirement_status{status="skipped",tool="go"} 1`) {
		t.Fatalf("missing requirement series:\n%s", out)
	}
	if !strings.Contains(out, "provisionctl_run_success 1") {
		t.Fatalf("missing success series:\n%s", out)
	}
}
