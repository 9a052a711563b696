package trace

import "errors"

// MultiTracer fans every event out to several sinks, typically a stream for
// live output and a ring for post-mortem dumps.
type MultiTracer struct {
	sinks []Tracer
	level Level
}

// NewMultiTracer combines sinks under one level. Nil sinks are skipped.
func NewMultiTracer(level Level, sinks ...Tracer) *MultiTracer {
	kept := make([]Tracer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiTracer{sinks: kept, level: level}
}

// Emit hands each sink its own copy; sinks stamp their own sequence numbers.
func (t *MultiTracer) Emit(ev *Event) {
	for _, s := range t.sinks {
		cp := *ev
		s.Emit(&cp)
	}
}

// Flush flushes every sink and joins their errors.
func (t *MultiTracer) Flush() error {
	var errs []error
	for _, s := range t.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (t *MultiTracer) Close() error {
	var errs []error
	for _, s := range t.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Level returns the combined level.
func (t *MultiTracer) Level() Level { return t.level }

// Enabled reports whether any level above off is set.
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }

// Ring returns the first ring sink, or nil.
func (t *MultiTracer) Ring() *RingTracer {
	for _, s := range t.sinks {
		if r, ok := s.(*RingTracer); ok {
			return r
		}
	}
	return nil
}
