// Package observ measures the steps of a command run.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Step records the duration and note of one measured step.
type Step struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks several steps. It is safe for concurrent use.
type Timer struct {
	mu    sync.Mutex
	steps []Step
}

// NewTimer creates an empty Timer.
func NewTimer() *Timer { return &Timer{steps: make([]Step, 0, 8)} }

// Begin starts a step and returns its index.
func (t *Timer) Begin(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, Step{Name: name, Start: time.Now()})
	return len(t.steps) - 1
}

// End finishes the step at idx. Unknown indexes are ignored.
func (t *Timer) End(idx int, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.steps) {
		return
	}
	s := &t.steps[idx]
	s.Dur = time.Since(s.Start)
	s.Note = note
}

// Measure runs fn as a named step.
func (t *Timer) Measure(name string, fn func() (note string, err error)) error {
	idx := t.Begin(name)
	note, err := fn()
	if err != nil && note == "" {
		note = "failed"
	}
	t.End(idx, note)
	return err
}

// StepReport is one step of a Report.
type StepReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report is the serializable form of a Timer.
type Report struct {
	TotalMS float64      `json:"total_ms"`
	Steps   []StepReport `json:"steps"`
}

// Report lists the steps in start order with their total.
func (t *Timer) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.steps) == 0 {
		return Report{}
	}
	report := Report{Steps: make([]StepReport, len(t.steps))}
	var total time.Duration
	for i, s := range t.steps {
		total += s.Dur
		report.Steps[i] = StepReport{
			Name:       s.Name,
			DurationMS: durationToMillis(s.Dur),
			Note:       s.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

// Summary renders the report as aligned text.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, s := range report.Steps {
		fmt.Fprintf(&sb, "  %-20s %7.2f ms", s.Name, s.DurationMS)
		if s.Note != "" {
			sb.WriteString("  // " + s.Note)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "  %-20s %7.2f ms\n", "total", report.TotalMS)
	return sb.String()
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
