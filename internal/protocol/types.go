// Package protocol holds the LSP wire structures exchanged with editors.
package protocol

import "encoding/json"

// Position is a zero-based line and UTF-16 character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Less orders positions by line, then by character.
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location points into a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// TextDocumentIdentifier names a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier names a document at a specific version.
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// TextDocumentItem carries the full content of an opened document.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// PartialResultParams carries the optional partial result token of a request.
type PartialResultParams struct {
	PartialResultToken json.RawMessage `json:"partialResultToken,omitempty"`
}

// TextDocumentPositionParams addresses a position inside a document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// DefinitionParams is used by definition, typeDefinition and implementation.
type DefinitionParams struct {
	TextDocumentPositionParams
	PartialResultParams
}

// ReferenceContext controls whether the declaration is part of the result.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// ReferenceParams is the textDocument/references request.
type ReferenceParams struct {
	TextDocumentPositionParams
	PartialResultParams
	Context ReferenceContext `json:"context"`
}

// DocumentSymbolParams is the textDocument/documentSymbol request.
type DocumentSymbolParams struct {
	PartialResultParams
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// WorkspaceSymbolParams is the workspace/symbol request.
type WorkspaceSymbolParams struct {
	PartialResultParams
	Query string `json:"query"`
}

// DocumentDiagnosticParams is the textDocument/diagnostic request.
type DocumentDiagnosticParams struct {
	PartialResultParams
	TextDocument     TextDocumentIdentifier `json:"textDocument"`
	Identifier       string                 `json:"identifier,omitempty"`
	PreviousResultID string                 `json:"previousResultId,omitempty"`
}

// HoverParams is the textDocument/hover request.
type HoverParams struct {
	TextDocumentPositionParams
}

// CompletionParams is the textDocument/completion request.
type CompletionParams struct {
	TextDocumentPositionParams
	PartialResultParams
}

// SemanticTokensParams is the textDocument/semanticTokens/full request.
type SemanticTokensParams struct {
	PartialResultParams
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// SemanticTokensRangeParams is the textDocument/semanticTokens/range request.
type SemanticTokensRangeParams struct {
	PartialResultParams
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
}

// SymbolKind enumerates LSP symbol kinds.
type SymbolKind int

const (
	SymbolFile SymbolKind = iota + 1
	SymbolModule
	SymbolNamespace
	SymbolPackage
	SymbolClass
	SymbolMethod
	SymbolProperty
	SymbolField
	SymbolConstructor
	SymbolEnum
	SymbolInterface
	SymbolFunction
	SymbolVariable
	SymbolConstant
)

// DocumentSymbol is a hierarchical symbol inside one document.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// WorkspaceSymbol is a symbol found by a workspace-wide query.
type WorkspaceSymbol struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	ContainerName string     `json:"containerName,omitempty"`
	Location      Location   `json:"location"`
}

// DiagnosticSeverity enumerates LSP severities.
type DiagnosticSeverity int

const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Diagnostic is a problem reported for a range.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     string             `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// FullDocumentDiagnosticReport is the result of textDocument/diagnostic.
type FullDocumentDiagnosticReport struct {
	Kind     string       `json:"kind"`
	ResultID string       `json:"resultId,omitempty"`
	Items    []Diagnostic `json:"items"`
}

// MarkupContent is formatted documentation.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Markup kinds.
const (
	MarkupPlainText = "plaintext"
	MarkupMarkdown  = "markdown"
)

// Hover is the textDocument/hover result.
type Hover struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// CompletionItemKind enumerates LSP completion kinds.
type CompletionItemKind int

const (
	CompletionText     CompletionItemKind = 1
	CompletionFunction CompletionItemKind = 3
	CompletionVariable CompletionItemKind = 6
	CompletionKeyword  CompletionItemKind = 14
	CompletionSnippet  CompletionItemKind = 15
)

// CompletionItem is one completion proposal.
type CompletionItem struct {
	Label      string             `json:"label"`
	Kind       CompletionItemKind `json:"kind,omitempty"`
	Detail     string             `json:"detail,omitempty"`
	SortText   string             `json:"sortText,omitempty"`
	InsertText string             `json:"insertText,omitempty"`
}

// CompletionList is the textDocument/completion result.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// SemanticTokensLegend names the token types and modifiers by index.
type SemanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

// SemanticTokens is the encoded result of a semantic tokens request.
type SemanticTokens struct {
	ResultID string   `json:"resultId,omitempty"`
	Data     []uint32 `json:"data"`
}

// ProgressParams is the payload of $/progress.
type ProgressParams struct {
	Token json.RawMessage `json:"token"`
	Value json.RawMessage `json:"value"`
}

// CancelParams is the payload of $/cancelRequest.
type CancelParams struct {
	ID json.RawMessage `json:"id"`
}

// WorkspaceFolder is a root folder opened by the editor.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// InitializeParams is the initialize request.
type InitializeParams struct {
	ProcessID        *int              `json:"processId,omitempty"`
	RootURI          string            `json:"rootUri,omitempty"`
	RootPath         string            `json:"rootPath,omitempty"`
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
	ClientInfo       *ClientInfo       `json:"clientInfo,omitempty"`
}

// ClientInfo identifies the editor.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerInfo identifies this server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// TextDocumentSyncOptions describes document synchronization.
type TextDocumentSyncOptions struct {
	OpenClose bool        `json:"openClose"`
	Change    int         `json:"change"`
	Save      SaveOptions `json:"save,omitempty"`
}

// SaveOptions describes didSave behavior.
type SaveOptions struct {
	IncludeText bool `json:"includeText,omitempty"`
}

// CompletionOptions describes completion support.
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// SemanticTokensOptions describes semantic token support.
type SemanticTokensOptions struct {
	Legend SemanticTokensLegend `json:"legend"`
	Range  bool                 `json:"range"`
	Full   bool                 `json:"full"`
}

// DiagnosticOptions describes pull diagnostics support.
type DiagnosticOptions struct {
	InterFileDependencies bool `json:"interFileDependencies"`
	WorkspaceDiagnostics  bool `json:"workspaceDiagnostics"`
}

// WorkspaceFoldersServerCapabilities describes workspace folder support.
type WorkspaceFoldersServerCapabilities struct {
	Supported           bool `json:"supported"`
	ChangeNotifications bool `json:"changeNotifications"`
}

// WorkspaceServerCapabilities groups workspace capabilities.
type WorkspaceServerCapabilities struct {
	WorkspaceFolders WorkspaceFoldersServerCapabilities `json:"workspaceFolders"`
}

// ServerCapabilities is the capability set announced at initialize.
type ServerCapabilities struct {
	TextDocumentSync        TextDocumentSyncOptions      `json:"textDocumentSync"`
	HoverProvider           bool                         `json:"hoverProvider,omitempty"`
	DefinitionProvider      bool                         `json:"definitionProvider,omitempty"`
	TypeDefinitionProvider  bool                         `json:"typeDefinitionProvider,omitempty"`
	ImplementationProvider  bool                         `json:"implementationProvider,omitempty"`
	ReferencesProvider      bool                         `json:"referencesProvider,omitempty"`
	DocumentSymbolProvider  bool                         `json:"documentSymbolProvider,omitempty"`
	WorkspaceSymbolProvider bool                         `json:"workspaceSymbolProvider,omitempty"`
	CompletionProvider      *CompletionOptions           `json:"completionProvider,omitempty"`
	SemanticTokensProvider  *SemanticTokensOptions       `json:"semanticTokensProvider,omitempty"`
	DiagnosticProvider      *DiagnosticOptions           `json:"diagnosticProvider,omitempty"`
	Workspace               *WorkspaceServerCapabilities `json:"workspace,omitempty"`
}

// InitializeResult is the initialize response.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// TextDocumentContentChangeEvent is one incremental or full edit.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// DidOpenTextDocumentParams is textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams is textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidSaveTextDocumentParams is textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

// DidCloseTextDocumentParams is textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// WorkspaceFoldersChangeEvent lists added and removed folders.
type WorkspaceFoldersChangeEvent struct {
	Added   []WorkspaceFolder `json:"added"`
	Removed []WorkspaceFolder `json:"removed"`
}

// DidChangeWorkspaceFoldersParams is workspace/didChangeWorkspaceFolders.
type DidChangeWorkspaceFoldersParams struct {
	Event WorkspaceFoldersChangeEvent `json:"event"`
}

// DidChangeConfigurationParams is workspace/didChangeConfiguration.
type DidChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}
