package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff      Level = iota // no tracing
	LevelError                 // failed requests only
	LevelRequest               // server lifecycle + request boundaries
	LevelProvider              // per-provider spans
	LevelDebug                 // everything including individual items
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelRequest:
		return "request"
	case LevelProvider:
		return "provider"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "request":
		return LevelRequest, nil
	case "provider":
		return LevelProvider, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|request|provider|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return false // failures are emitted as points regardless of scope
	case LevelRequest:
		return scope <= ScopeRequest
	case LevelProvider:
		return scope <= ScopeProvider
	case LevelDebug:
		return true
	}
	return false
}
