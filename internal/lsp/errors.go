package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lsbridge/internal/address"
)

// JSON-RPC and LSP error codes.
const (
	codeParseError           = -32700
	codeInvalidRequest       = -32600
	codeMethodNotFound       = -32601
	codeInvalidParams        = -32602
	codeInternalError        = -32603
	codeServerNotInitialized = -32002
	codeRequestCancelled     = -32800
)

var errInvalidParams = errors.New("invalid params")

func decodeParams[P any](raw []byte) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return p, nil
}

// errorCode maps a handler failure to its JSON-RPC error. Provider failures
// and anything unexpected are internal errors.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return codeRequestCancelled, "request cancelled"
	case errors.Is(err, errInvalidParams), errors.Is(err, address.ErrMalformedAddress):
		return codeInvalidParams, err.Error()
	default:
		return codeInternalError, err.Error()
	}
}
