package lsp

import (
	"context"
	"encoding/json"

	"lsbridge/internal/protocol"
)

func (s *Server) didChangeConfiguration(_ context.Context, params protocol.DidChangeConfigurationParams) error {
	s.applySettings(params.Settings)
	return nil
}

// applySettings reads {"lsbridge": {...}}. Unknown or malformed settings are
// ignored.
func (s *Server) applySettings(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.LSBridge.Trace != nil {
		s.traceLSP = *settings.LSBridge.Trace
	}
}
