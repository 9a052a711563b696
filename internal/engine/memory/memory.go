// Package memory is an engine kept entirely in process memory. It stores
// open documents and workspace folders and serves them to providers.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"lsbridge/internal/engine"
	"lsbridge/internal/protocol"
	"lsbridge/internal/trace"
)

type document struct {
	languageID string
	version    int
	text       string
}

// docs is never mutated after publication; writers swap in a copy.
type docs map[string]document

// Engine implements engine.Engine.
type Engine struct {
	mu      sync.Mutex
	current docs
	folders []engine.Folder
}

var _ engine.Engine = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{current: docs{}}
}

func (e *Engine) update(fn func(next docs) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := make(docs, len(e.current)+1)
	for k, v := range e.current {
		next[k] = v
	}
	if err := fn(next); err != nil {
		return err
	}
	e.current = next
	return nil
}

func (e *Engine) load() docs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Open implements engine.Documents.
func (e *Engine) Open(ctx context.Context, addr, languageID string, version int, text string) error {
	trace.Point(ctx, trace.ScopeItem, "engine.open", addr)
	return e.update(func(next docs) error {
		next[addr] = document{languageID: languageID, version: version, text: text}
		return nil
	})
}

// Change implements engine.Documents.
func (e *Engine) Change(ctx context.Context, addr string, version int, changes []protocol.TextDocumentContentChangeEvent) error {
	trace.Point(ctx, trace.ScopeItem, "engine.change", addr)
	return e.update(func(next docs) error {
		doc, ok := next[addr]
		if !ok {
			return fmt.Errorf("%s: %w", addr, engine.ErrUnknownDocument)
		}
		if version < doc.version {
			return fmt.Errorf("%s: version %d < %d: %w", addr, version, doc.version, engine.ErrStaleVersion)
		}
		doc.text = applyChanges(doc.text, changes)
		doc.version = version
		next[addr] = doc
		return nil
	})
}

// Save implements engine.Documents.
func (e *Engine) Save(ctx context.Context, addr string) error {
	if _, ok := e.load()[addr]; !ok {
		return fmt.Errorf("%s: %w", addr, engine.ErrUnknownDocument)
	}
	trace.Point(ctx, trace.ScopeItem, "engine.save", addr)
	return nil
}

// Close implements engine.Documents.
func (e *Engine) Close(ctx context.Context, addr string) error {
	trace.Point(ctx, trace.ScopeItem, "engine.close", addr)
	return e.update(func(next docs) error {
		delete(next, addr)
		return nil
	})
}

// Text implements engine.TextSource.
func (e *Engine) Text(addr string) (string, int, bool) {
	return e.load().text(addr)
}

func (d docs) text(addr string) (string, int, bool) {
	doc, ok := d[addr]
	return doc.text, doc.version, ok
}

// AddFolders implements engine.Workspace. Folders already present are ignored.
func (e *Engine) AddFolders(ctx context.Context, folders []engine.Folder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range folders {
		if slices.ContainsFunc(e.folders, func(have engine.Folder) bool { return have.Address == f.Address }) {
			continue
		}
		trace.Point(ctx, trace.ScopeItem, "engine.folder.add", f.Address)
		e.folders = append(e.folders, f)
	}
	return nil
}

// RemoveFolders implements engine.Workspace.
func (e *Engine) RemoveFolders(ctx context.Context, folders []engine.Folder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range folders {
		trace.Point(ctx, trace.ScopeItem, "engine.folder.remove", f.Address)
		e.folders = slices.DeleteFunc(e.folders, func(have engine.Folder) bool { return have.Address == f.Address })
	}
	return nil
}

// Folders implements engine.Workspace.
func (e *Engine) Folders() []engine.Folder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.folders)
}

// WithAnalysis implements engine.Analysis.
func (e *Engine) WithAnalysis(ctx context.Context, fn func(ctx context.Context, snap engine.Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, snapshot{docs: e.load()})
}

type snapshot struct {
	docs docs
}

func (s snapshot) Text(addr string) (string, int, bool) {
	return s.docs.text(addr)
}

func (s snapshot) Documents() []string {
	out := make([]string, 0, len(s.docs))
	for addr := range s.docs {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
