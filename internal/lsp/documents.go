package lsp

import (
	"context"
	"fmt"

	"lsbridge/internal/protocol"
	"lsbridge/internal/trace"
)

func (s *Server) toInternal(uri string) (string, error) {
	addr, err := s.opts.Converter.ExternalToInternal(uri)
	if err != nil {
		return "", fmt.Errorf("textDocument.uri: %w", err)
	}
	return addr, nil
}

func (s *Server) tracing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traceLSP
}

func (s *Server) didOpen(ctx context.Context, params protocol.DidOpenTextDocumentParams) error {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if s.tracing() {
		s.logf("didOpen: uri=%s address=%s version=%d", params.TextDocument.URI, addr, params.TextDocument.Version)
	}
	trace.Point(ctx, trace.ScopeRequest, "textDocument/didOpen", addr)
	if s.opts.Engine == nil {
		return nil
	}
	doc := params.TextDocument
	return s.opts.Engine.Open(ctx, addr, doc.LanguageID, doc.Version, doc.Text)
}

func (s *Server) didChange(ctx context.Context, params protocol.DidChangeTextDocumentParams) error {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if s.tracing() {
		s.logf("didChange: uri=%s version=%d changes=%d", params.TextDocument.URI, params.TextDocument.Version, len(params.ContentChanges))
	}
	trace.Point(ctx, trace.ScopeRequest, "textDocument/didChange", addr)
	if s.opts.Engine == nil {
		return nil
	}
	return s.opts.Engine.Change(ctx, addr, params.TextDocument.Version, params.ContentChanges)
}

func (s *Server) didSave(ctx context.Context, params protocol.DidSaveTextDocumentParams) error {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return err
	}
	trace.Point(ctx, trace.ScopeRequest, "textDocument/didSave", addr)
	if s.opts.Engine == nil {
		return nil
	}
	return s.opts.Engine.Save(ctx, addr)
}

func (s *Server) didClose(ctx context.Context, params protocol.DidCloseTextDocumentParams) error {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if s.tracing() {
		s.logf("didClose: uri=%s", params.TextDocument.URI)
	}
	trace.Point(ctx, trace.ScopeRequest, "textDocument/didClose", addr)
	s.opts.Tokens.Forget(addr)
	if s.opts.Engine == nil {
		return nil
	}
	return s.opts.Engine.Close(ctx, addr)
}

func (s *Server) didChangeWorkspaceFolders(ctx context.Context, params protocol.DidChangeWorkspaceFoldersParams) error {
	if s.opts.Engine == nil {
		return nil
	}
	if err := s.opts.Engine.RemoveFolders(ctx, s.engineFolders(params.Event.Removed)); err != nil {
		return err
	}
	return s.opts.Engine.AddFolders(ctx, s.engineFolders(params.Event.Added))
}
