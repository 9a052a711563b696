package observ

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	if r := tm.Report(); r.TotalMS != 0 || len(r.Steps) != 0 {
		t.Fatalf("empty timer report = %+v", r)
	}

	idx := tm.Begin("load")
	time.Sleep(2 * time.Millisecond)
	tm.End(idx, "lsbridge.toml")
	tm.End(42, "ignored")

	boom := errors.New("boom")
	if err := tm.Measure("encode", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("Measure should return the step error, got %v", err)
	}

	r := tm.Report()
	if len(r.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %+v", r.Steps)
	}
	if r.Steps[0].Name != "load" || r.Steps[0].Note != "lsbridge.toml" || r.Steps[0].DurationMS <= 0 {
		t.Fatalf("unexpected first step %+v", r.Steps[0])
	}
	if r.Steps[1].Note != "failed" {
		t.Fatalf("failed step should be noted, got %+v", r.Steps[1])
	}
	if r.TotalMS < r.Steps[0].DurationMS {
		t.Fatalf("total %v below first step %v", r.TotalMS, r.Steps[0].DurationMS)
	}

	summary := tm.Summary()
	for _, want := range []string{"timings:", "load", "// lsbridge.toml", "encode", "total"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}
