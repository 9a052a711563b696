package lsp

import (
	"context"
	"encoding/json"

	"lsbridge/internal/feature"
	"lsbridge/internal/protocol"
)

type requestHandler func(ctx context.Context, s *Server, svc *feature.Service, raw json.RawMessage) (any, error)

func request[P, R any](fn func(ctx context.Context, s *Server, svc *feature.Service, params P) (R, error)) requestHandler {
	return func(ctx context.Context, s *Server, svc *feature.Service, raw json.RawMessage) (any, error) {
		params, err := decodeParams[P](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, s, svc, params)
	}
}

// requests is the dispatch table for requests that run concurrently.
var requests = map[string]requestHandler{
	"textDocument/definition": request(func(ctx context.Context, s *Server, svc *feature.Service, p protocol.DefinitionParams) ([]protocol.Location, error) {
		return svc.Definition(ctx, p, s)
	}),
	"textDocument/typeDefinition": request(func(ctx context.Context, s *Server, svc *feature.Service, p protocol.DefinitionParams) ([]protocol.Location, error) {
		return svc.TypeDefinition(ctx, p, s)
	}),
	"textDocument/implementation": request(func(ctx context.Context, s *Server, svc *feature.Service, p protocol.DefinitionParams) ([]protocol.Location, error) {
		return svc.Implementation(ctx, p, s)
	}),
	"textDocument/references": request(func(ctx context.Context, s *Server, svc *feature.Service, p protocol.ReferenceParams) ([]protocol.Location, error) {
		return svc.References(ctx, p, s)
	}),
	"textDocument/documentSymbol": request(func(ctx context.Context, s *Server, svc *feature.Service, p protocol.DocumentSymbolParams) ([]protocol.DocumentSymbol, error) {
		return svc.DocumentSymbol(ctx, p, s)
	}),
	"workspace/symbol": request(func(ctx context.Context, s *Server, svc *feature.Service, p protocol.WorkspaceSymbolParams) ([]protocol.WorkspaceSymbol, error) {
		return svc.WorkspaceSymbol(ctx, p, s)
	}),
	"textDocument/diagnostic": request(func(ctx context.Context, _ *Server, svc *feature.Service, p protocol.DocumentDiagnosticParams) (protocol.FullDocumentDiagnosticReport, error) {
		return svc.Diagnostic(ctx, p)
	}),
	"textDocument/hover": request(func(ctx context.Context, _ *Server, svc *feature.Service, p protocol.HoverParams) (*protocol.Hover, error) {
		return svc.Hover(ctx, p)
	}),
	"textDocument/completion": request(func(ctx context.Context, _ *Server, svc *feature.Service, p protocol.CompletionParams) (protocol.CompletionList, error) {
		return svc.Completion(ctx, p)
	}),
	"textDocument/semanticTokens/full": request(func(ctx context.Context, _ *Server, svc *feature.Service, p protocol.SemanticTokensParams) (protocol.SemanticTokens, error) {
		return svc.SemanticTokensFull(ctx, p)
	}),
	"textDocument/semanticTokens/range": request(func(ctx context.Context, _ *Server, svc *feature.Service, p protocol.SemanticTokensRangeParams) (protocol.SemanticTokens, error) {
		return svc.SemanticTokensRange(ctx, p)
	}),
}

type notificationHandler func(s *Server, raw json.RawMessage) error

// notifications are applied on the read loop, in order.
var notifications = map[string]notificationHandler{
	"textDocument/didOpen":                notification((*Server).didOpen),
	"textDocument/didChange":              notification((*Server).didChange),
	"textDocument/didSave":                notification((*Server).didSave),
	"textDocument/didClose":               notification((*Server).didClose),
	"workspace/didChangeWorkspaceFolders": notification((*Server).didChangeWorkspaceFolders),
	"workspace/didChangeConfiguration":    notification((*Server).didChangeConfiguration),
	"$/setTrace":                          func(*Server, json.RawMessage) error { return nil },
}

func notification[P any](fn func(s *Server, ctx context.Context, params P) error) notificationHandler {
	return func(s *Server, raw json.RawMessage) error {
		params, err := decodeParams[P](raw)
		if err != nil {
			return err
		}
		return fn(s, s.baseCtx, params)
	}
}
