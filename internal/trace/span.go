package trace

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

var (
	globalSeq    uint64
	globalSpans  uint64
	openRequests int64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 {
	return atomic.AddUint64(&globalSeq, 1)
}

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 {
	return atomic.AddUint64(&globalSpans, 1)
}

// getGoroutineID extracts the current goroutine ID using runtime.Stack.
// This is a lightweight approach that doesn't require linkname or unsafe.
func getGoroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	// Stack format: "goroutine 123 [running]:\n..."
	// Extract the number between "goroutine " and " ["
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}

	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}

	gid, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}

// OpenRequests returns the number of request spans that have begun but not
// ended.
func OpenRequests() int64 {
	return atomic.LoadInt64(&openRequests)
}

// Span provides a convenient RAII-style span tracking.
type Span struct {
	tracer   Tracer
	id       uint64
	parentID uint64
	gid      uint64
	scope    Scope
	name     string
	request  string
	started  time.Time
	extra    map[string]string
	ended    atomic.Bool
}

// Begin starts a new span and emits SpanBegin event.
// parent is the parent span ID (0 if root).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	return begin(t, scope, name, parent, "")
}

func begin(t Tracer, scope Scope, name string, parent uint64, request string) *Span {
	if t == nil || !t.Enabled() {
		return &Span{tracer: Nop}
	}

	// Check if we should emit at this scope
	if !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}

	id := NextSpanID()
	gid := getGoroutineID()
	now := time.Now()

	t.Emit(&Event{
		Time:     now,
		Seq:      NextSeq(),
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   id,
		ParentID: parent,
		GID:      gid,
		Request:  request,
		Name:     name,
	})
	if scope == ScopeRequest {
		atomic.AddInt64(&openRequests, 1)
	}

	return &Span{
		tracer:   t,
		id:       id,
		parentID: parent,
		gid:      gid,
		scope:    scope,
		name:     name,
		request:  request,
		started:  now,
	}
}

// End emits SpanEnd event and returns the duration. Only the first call
// emits.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return 0
	}
	if !s.ended.CompareAndSwap(false, true) {
		return 0
	}
	if s.scope == ScopeRequest {
		atomic.AddInt64(&openRequests, -1)
	}

	dur := time.Since(s.started)

	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		GID:      s.gid,
		Request:  s.request,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})

	return dur
}

// WithExtra adds a key-value pair to the end event.
// Returns the span for method chaining.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return s
	}

	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Start begins a span under the span carried by ctx, using the tracer from
// ctx, and returns a context that carries the new span.
func Start(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	f := current(ctx)
	span := begin(FromContext(ctx), scope, name, f.span, f.request)
	if span.id == 0 {
		return span, ctx
	}
	return span, withSpan(ctx, span.id)
}

// Point emits an instant event under the span carried by ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: SpanID(ctx),
		GID:      getGoroutineID(),
		Request:  RequestID(ctx),
		Name:     name,
		Detail:   detail,
	})
}

// Error emits a failure event. Failures are kept at every level except off.
func Error(ctx context.Context, name string, err error) {
	t := FromContext(ctx)
	if !t.Enabled() || err == nil {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindError,
		Scope:    ScopeRequest,
		ParentID: SpanID(ctx),
		GID:      getGoroutineID(),
		Request:  RequestID(ctx),
		Name:     name,
		Detail:   err.Error(),
	})
}
