package feature

import (
	"context"

	"lsbridge/internal/aggregate"
	"lsbridge/internal/protocol"
	"lsbridge/internal/semtok"
)

// DefinitionProvider answers textDocument/definition.
type DefinitionProvider interface {
	Entry
	Definitions(params protocol.DefinitionParams) aggregate.Seq[protocol.Location]
}

// TypeDefinitionProvider answers textDocument/typeDefinition.
type TypeDefinitionProvider interface {
	Entry
	TypeDefinitions(params protocol.DefinitionParams) aggregate.Seq[protocol.Location]
}

// ImplementationProvider answers textDocument/implementation.
type ImplementationProvider interface {
	Entry
	Implementations(params protocol.DefinitionParams) aggregate.Seq[protocol.Location]
}

// ReferencesProvider answers textDocument/references.
type ReferencesProvider interface {
	Entry
	References(params protocol.ReferenceParams) aggregate.Seq[protocol.Location]
}

// DocumentSymbolProvider answers textDocument/documentSymbol.
type DocumentSymbolProvider interface {
	Entry
	DocumentSymbols(params protocol.DocumentSymbolParams) aggregate.Seq[protocol.DocumentSymbol]
}

// WorkspaceSymbolProvider answers workspace/symbol. Every registered one is
// asked, whatever its languages.
type WorkspaceSymbolProvider interface {
	Entry
	WorkspaceSymbols(params protocol.WorkspaceSymbolParams) aggregate.Seq[protocol.WorkspaceSymbol]
}

// DiagnosticProvider answers textDocument/diagnostic.
type DiagnosticProvider interface {
	Entry
	Diagnostics(params protocol.DocumentDiagnosticParams) aggregate.Seq[protocol.Diagnostic]
}

// HoverProvider answers textDocument/hover. A nil Hover means no opinion.
type HoverProvider interface {
	Entry
	Hover(ctx context.Context, params protocol.HoverParams) (*protocol.Hover, error)
}

// CompletionProvider answers textDocument/completion.
type CompletionProvider interface {
	Entry
	Completion(ctx context.Context, params protocol.CompletionParams) (*protocol.CompletionList, error)
}

// SemanticTokensProvider produces unencoded semantic tokens. Registry is
// called once per session, when the legend is built.
type SemanticTokensProvider interface {
	Entry
	Registry() *semtok.Registry
	Full(ctx context.Context, params protocol.SemanticTokensParams) ([]semtok.TokenWithRange, error)
	Range(ctx context.Context, params protocol.SemanticTokensRangeParams) ([]semtok.TokenWithRange, error)
}
