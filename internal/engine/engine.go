// Package engine declares what the language server needs from the analysis
// engine behind it. Every address crossing this boundary is an internal
// address as produced by package address.
package engine

import (
	"context"
	"errors"

	"lsbridge/internal/protocol"
)

var (
	// ErrUnknownDocument is returned for edits to a document that is not open.
	ErrUnknownDocument = errors.New("document is not open")
	// ErrStaleVersion is returned when an edit carries an older version than the store.
	ErrStaleVersion = errors.New("stale document version")
)

// Documents tracks the editor's open documents.
type Documents interface {
	Open(ctx context.Context, addr, languageID string, version int, text string) error
	Change(ctx context.Context, addr string, version int, changes []protocol.TextDocumentContentChangeEvent) error
	Save(ctx context.Context, addr string) error
	Close(ctx context.Context, addr string) error
}

// Folder is a workspace root.
type Folder struct {
	Address string
	Name    string
}

// Workspace tracks the workspace roots.
type Workspace interface {
	AddFolders(ctx context.Context, folders []Folder) error
	RemoveFolders(ctx context.Context, folders []Folder) error
	Folders() []Folder
}

// TextSource exposes document contents.
type TextSource interface {
	// Text returns the current text and version of addr.
	Text(addr string) (text string, version int, ok bool)
}

// Snapshot is a consistent view of the engine state for one analysis.
type Snapshot interface {
	TextSource
	Documents() []string
}

// Analysis hands out analysis contexts. fn sees a snapshot that later
// document edits do not change.
type Analysis interface {
	WithAnalysis(ctx context.Context, fn func(ctx context.Context, snap Snapshot) error) error
}

// Engine is the full capability set the server drives.
type Engine interface {
	Documents
	Workspace
	Analysis
	TextSource
}
