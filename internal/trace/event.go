package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	KindHeartbeat // periodic liveness signal
	KindError     // failure, emitted at every level above off
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent coarser events.
type Scope uint8

const (
	// ScopeServer covers connection lifecycle: initialize, shutdown, transport.
	ScopeServer Scope = iota + 1
	// ScopeRequest covers one JSON-RPC request or notification.
	ScopeRequest
	// ScopeProvider covers one provider's contribution to a request.
	ScopeProvider
	ScopeItem // individual results and partial batches
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeServer:
		return "server"
	case ScopeRequest:
		return "request"
	case ScopeProvider:
		return "provider"
	case ScopeItem:
		return "item"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	GID      uint64            // goroutine ID (for concurrent spans)
	Request  string            // JSON-RPC id of the enclosing request, if any
	Name     string            // e.g. "textDocument/definition", "provider.references"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
