package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory so that they can be
// dumped after a failure.
type RingTracer struct {
	mu      sync.RWMutex
	buf     []Event
	written uint64 // total events ever stored
	level   Level
}

// NewRingTracer returns a ring holding up to capacity events. A
// non-positive capacity selects 4096.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev, overwriting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if !shouldStore(t.level, ev) {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	t.buf[t.written%uint64(len(t.buf))] = stored
	t.written++
	t.mu.Unlock()
}

// Len returns the number of events currently held.
func (t *RingTracer) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lenLocked()
}

func (t *RingTracer) lenLocked() int {
	if t.written < uint64(len(t.buf)) {
		return int(t.written)
	}
	return len(t.buf)
}

// Snapshot returns the held events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	return t.Filter(nil)
}

// Filter returns the held events accepted by keep, oldest first. A nil keep
// accepts everything.
func (t *RingTracer) Filter(keep func(*Event) bool) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.lenLocked()
	out := make([]Event, 0, n)
	start := t.written - uint64(n)
	for i := range uint64(n) {
		ev := &t.buf[(start+i)%uint64(len(t.buf))]
		if keep == nil || keep(ev) {
			out = append(out, *ev)
		}
	}
	return out
}

// Dump writes every held event to w, oldest first.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	return writeEvents(w, t.Snapshot(), format)
}

func writeEvents(w io.Writer, events []Event, format Format) error {
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op.
func (t *RingTracer) Flush() error { return nil }

// Close is a no-op.
func (t *RingTracer) Close() error { return nil }

// Level returns the ring's level.
func (t *RingTracer) Level() Level { return t.level }

// Enabled reports whether the ring stores anything.
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
