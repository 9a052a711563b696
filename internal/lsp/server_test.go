package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"lsbridge/internal/address"
	"lsbridge/internal/aggregate"
	"lsbridge/internal/engine/memory"
	"lsbridge/internal/feature"
	"lsbridge/internal/feature/keywords"
	"lsbridge/internal/protocol"
)

const docURI = "file:///work/my%20file.toy"

// testProvider blocks on definition, streams type definitions and fails
// references.
type testProvider struct {
	once    sync.Once
	started chan struct{}
}

func (p *testProvider) Name() string        { return "test" }
func (p *testProvider) Languages() []string { return []string{"toy"} }

func (p *testProvider) Definitions(protocol.DefinitionParams) aggregate.Seq[protocol.Location] {
	return func(ctx context.Context, _ func(protocol.Location) error) error {
		p.once.Do(func() { close(p.started) })
		<-ctx.Done()
		return ctx.Err()
	}
}

func (p *testProvider) TypeDefinitions(params protocol.DefinitionParams) aggregate.Seq[protocol.Location] {
	return func(ctx context.Context, yield func(protocol.Location) error) error {
		for line := range 3 {
			time.Sleep(2 * time.Millisecond)
			loc := protocol.Location{URI: params.TextDocument.URI, Range: protocol.Range{Start: protocol.Position{Line: line}}}
			if err := yield(loc); err != nil {
				return err
			}
		}
		return nil
	}
}

func (p *testProvider) References(protocol.ReferenceParams) aggregate.Seq[protocol.Location] {
	return func(context.Context, func(protocol.Location) error) error {
		return errors.New("index unavailable")
	}
}

type testClient struct {
	t     *testing.T
	w     *io.PipeWriter
	msgs  chan rpcMessage
	done  chan error
	notes []rpcMessage
	eng   *memory.Engine
	prov  *testProvider
}

func startServer(t *testing.T) *testClient {
	t.Helper()
	eng := memory.New()
	prov := &testProvider{started: make(chan struct{})}
	kw := keywords.New("toy", keywords.Syntax{Keywords: []string{"let"}, LineComment: "#"}, eng)
	cfg, err := feature.NewConfiguration([]feature.Language{{Name: "toy", Extensions: []string{"toy"}}}, []feature.Entry{kw, prov})
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	srv := NewServer(inR, outW, ServerOptions{
		Config:    cfg,
		Engine:    eng,
		Converter: address.Converter{Style: address.StylePosix},
		Version:   "test",
		Log:       io.Discard,
	})
	c := &testClient{t: t, w: inW, msgs: make(chan rpcMessage, 64), done: make(chan error, 1), eng: eng, prov: prov}
	go func() {
		c.done <- srv.Run(context.Background())
		_ = outW.Close()
	}()
	go func() {
		r := bufio.NewReader(outR)
		for {
			payload, err := readMessage(r)
			if err != nil {
				close(c.msgs)
				return
			}
			var msg rpcMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				t.Errorf("decode server message: %v", err)
				continue
			}
			c.msgs <- msg
		}
	}()
	t.Cleanup(func() { _ = inW.Close() })
	return c
}

func (c *testClient) send(id any, method string, params any) {
	c.t.Helper()
	msg := map[string]any{"jsonrpc": "2.0", "method": method}
	if id != nil {
		msg["id"] = id
	}
	if params != nil {
		msg["params"] = params
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	if err := writeMessage(c.w, payload); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// response waits for the reply to id, keeping notifications seen on the way.
func (c *testClient) response(id string) rpcMessage {
	c.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatalf("server closed the stream before replying to %s", id)
			}
			if msg.Method != "" {
				c.notes = append(c.notes, msg)
				continue
			}
			if string(msg.ID) != id {
				c.t.Fatalf("unexpected reply to %s while waiting for %s", msg.ID, id)
			}
			return msg
		case <-timeout:
			c.t.Fatalf("timed out waiting for reply to %s", id)
		}
	}
}

func (c *testClient) initialize() protocol.InitializeResult {
	c.t.Helper()
	c.send(1, "initialize", protocol.InitializeParams{
		WorkspaceFolders: []protocol.WorkspaceFolder{{URI: "file:///work/a%20b", Name: "ab"}},
	})
	msg := c.response("1")
	if msg.Error != nil {
		c.t.Fatalf("initialize failed: %+v", msg.Error)
	}
	var result protocol.InitializeResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		c.t.Fatalf("decode initialize result: %v", err)
	}
	c.send(nil, "initialized", struct{}{})
	return result
}

func expectError(t *testing.T, msg rpcMessage, code int) {
	t.Helper()
	if msg.Error == nil {
		t.Fatalf("expected error %d, got result %s", code, msg.Result)
	}
	if msg.Error.Code != code {
		t.Fatalf("expected error %d, got %d (%s)", code, msg.Error.Code, msg.Error.Message)
	}
}

func position(line, char int) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
		Position:     protocol.Position{Line: line, Character: char},
	}
}

func TestRequestBeforeInitialize(t *testing.T) {
	c := startServer(t)
	c.send(1, "textDocument/hover", protocol.HoverParams{TextDocumentPositionParams: position(0, 0)})
	expectError(t, c.response("1"), codeServerNotInitialized)
}

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	c := startServer(t)
	result := c.initialize()
	caps := result.Capabilities
	if caps.SemanticTokensProvider == nil {
		t.Fatal("expected semantic tokens capability")
	}
	want := []string{"keyword", "comment", "string", "number"}
	got := caps.SemanticTokensProvider.Legend.TokenTypes
	if len(got) != len(want) {
		t.Fatalf("legend = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("legend = %v, want %v", got, want)
		}
	}
	if !caps.DefinitionProvider || !caps.ReferencesProvider || caps.CompletionProvider == nil || caps.DocumentSymbolProvider {
		t.Fatalf("unexpected capabilities: %+v", caps)
	}
	if result.ServerInfo == nil || result.ServerInfo.Name != "lsbridge" || result.ServerInfo.Version != "test" {
		t.Fatalf("unexpected server info: %+v", result.ServerInfo)
	}
	folders := c.eng.Folders()
	if len(folders) != 1 || folders[0].Address != "file:///work/a b" {
		t.Fatalf("workspace folders = %+v", folders)
	}

	c.send(2, "initialize", protocol.InitializeParams{})
	expectError(t, c.response("2"), codeInvalidRequest)
}

func TestDocumentSyncAndSemanticTokens(t *testing.T) {
	c := startServer(t)
	c.initialize()
	c.send(nil, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{TextDocument: protocol.TextDocumentItem{
		URI: docURI, LanguageID: "toy", Version: 1, Text: "let x # note",
	}})
	doc := protocol.TextDocumentIdentifier{URI: docURI}
	c.send(2, "textDocument/semanticTokens/full", protocol.SemanticTokensParams{TextDocument: doc})
	msg := c.response("2")
	var tokens protocol.SemanticTokens
	if err := json.Unmarshal(msg.Result, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	want := []uint32{0, 0, 3, 0, 0, 0, 6, 6, 1, 0}
	if len(tokens.Data) != len(want) {
		t.Fatalf("data = %v, want %v", tokens.Data, want)
	}
	for i := range want {
		if tokens.Data[i] != want[i] {
			t.Fatalf("data = %v, want %v", tokens.Data, want)
		}
	}

	if text, _, ok := c.eng.Text("file:///work/my file.toy"); !ok || text != "let x # note" {
		t.Fatalf("engine did not receive the internal address: %q %v", text, ok)
	}
	c.send(nil, "textDocument/didChange", protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{URI: docURI, Version: 2},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{
			Range: &protocol.Range{Start: protocol.Position{Character: 5}, End: protocol.Position{Character: 12}},
			Text:  "",
		}},
	})
	c.send(3, "textDocument/semanticTokens/full", protocol.SemanticTokensParams{TextDocument: doc})
	msg = c.response("3")
	if err := json.Unmarshal(msg.Result, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if len(tokens.Data) != 5 {
		t.Fatalf("expected only the keyword after the edit, got %v", tokens.Data)
	}

	c.send(4, "textDocument/completion", protocol.CompletionParams{TextDocumentPositionParams: position(0, 1)})
	var list protocol.CompletionList
	if err := json.Unmarshal(c.response("4").Result, &list); err != nil {
		t.Fatalf("decode completion: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Label != "let" {
		t.Fatalf("unexpected completion: %+v", list)
	}

	c.send(nil, "textDocument/didClose", protocol.DidCloseTextDocumentParams{TextDocument: doc})
	c.send(5, "textDocument/hover", protocol.HoverParams{TextDocumentPositionParams: position(0, 1)})
	if msg := c.response("5"); msg.Error != nil || string(msg.Result) != "null" {
		t.Fatalf("hover on a closed document: %+v %s", msg.Error, msg.Result)
	}
}

func TestCancelRequest(t *testing.T) {
	c := startServer(t)
	c.initialize()
	c.send(7, "textDocument/definition", protocol.DefinitionParams{TextDocumentPositionParams: position(0, 0)})
	select {
	case <-c.prov.started:
	case <-time.After(5 * time.Second):
		t.Fatal("definition provider never started")
	}
	c.send(nil, "$/cancelRequest", protocol.CancelParams{ID: json.RawMessage("7")})
	expectError(t, c.response("7"), codeRequestCancelled)
}

func TestPartialResultsUseProgress(t *testing.T) {
	c := startServer(t)
	c.initialize()
	c.send(2, "textDocument/typeDefinition", protocol.DefinitionParams{
		TextDocumentPositionParams: position(0, 0),
		PartialResultParams:        protocol.PartialResultParams{PartialResultToken: json.RawMessage(`"p-1"`)},
	})
	msg := c.response("2")
	var final []protocol.Location
	if err := json.Unmarshal(msg.Result, &final); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(final) != 3 {
		t.Fatalf("expected 3 locations, got %v", final)
	}
	streamed := 0
	for _, note := range c.notes {
		if note.Method != "$/progress" {
			continue
		}
		var p protocol.ProgressParams
		if err := json.Unmarshal(note.Params, &p); err != nil {
			t.Fatalf("decode progress: %v", err)
		}
		if string(p.Token) != `"p-1"` {
			t.Fatalf("unexpected token %s", p.Token)
		}
		var batch []protocol.Location
		if err := json.Unmarshal(p.Value, &batch); err != nil {
			t.Fatalf("decode batch: %v", err)
		}
		for _, loc := range batch {
			if loc.URI != docURI {
				t.Fatalf("partial result carries %q, want the external URI", loc.URI)
			}
		}
		streamed += len(batch)
	}
	if streamed != 3 {
		t.Fatalf("expected 3 streamed locations, got %d", streamed)
	}
}

func TestErrorCodes(t *testing.T) {
	c := startServer(t)
	c.initialize()

	c.send(2, "textDocument/references", protocol.ReferenceParams{TextDocumentPositionParams: position(0, 0)})
	expectError(t, c.response("2"), codeInternalError)

	c.send(3, "textDocument/unknown", struct{}{})
	expectError(t, c.response("3"), codeMethodNotFound)

	c.send(4, "textDocument/definition", "not an object")
	expectError(t, c.response("4"), codeInvalidParams)

	c.send(5, "textDocument/hover", protocol.HoverParams{TextDocumentPositionParams: protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "relative/path.toy"},
	}})
	expectError(t, c.response("5"), codeInvalidParams)

	c.send(nil, "custom/notification", struct{}{})
	c.send(6, "shutdown", nil)
	if msg := c.response("6"); msg.Error != nil {
		t.Fatalf("shutdown failed: %+v", msg.Error)
	}
	c.send(7, "textDocument/hover", protocol.HoverParams{TextDocumentPositionParams: position(0, 0)})
	expectError(t, c.response("7"), codeInvalidRequest)

	c.send(nil, "exit", nil)
	select {
	case err := <-c.done:
		if !errors.Is(err, ErrExit) {
			t.Fatalf("expected ErrExit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit")
	}
}

func TestExitWithoutShutdown(t *testing.T) {
	c := startServer(t)
	c.send(nil, "exit", nil)
	select {
	case err := <-c.done:
		if !errors.Is(err, ErrExitWithoutShutdown) {
			t.Fatalf("expected ErrExitWithoutShutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit")
	}
}

func TestWorkspaceFolderChanges(t *testing.T) {
	c := startServer(t)
	c.initialize()
	c.send(nil, "workspace/didChangeWorkspaceFolders", protocol.DidChangeWorkspaceFoldersParams{Event: protocol.WorkspaceFoldersChangeEvent{
		Added:   []protocol.WorkspaceFolder{{URI: "file:///work/c", Name: "c"}},
		Removed: []protocol.WorkspaceFolder{{URI: "file:///work/a%20b"}},
	}})
	// a request round trip orders the notification before the check
	c.send(2, "shutdown", nil)
	c.response("2")
	folders := c.eng.Folders()
	if len(folders) != 1 || folders[0].Address != "file:///work/c" {
		t.Fatalf("workspace folders = %+v", folders)
	}
}

func TestApplySettings(t *testing.T) {
	s := NewServer(nil, io.Discard, ServerOptions{Log: io.Discard})
	s.applySettings(json.RawMessage(`{"lsbridge":{"trace":true}}`))
	if !s.tracing() {
		t.Fatal("expected trace to be enabled")
	}
	s.applySettings(json.RawMessage(`{"other":{}}`))
	if !s.tracing() {
		t.Fatal("unrelated settings must not reset trace")
	}
	s.applySettings(json.RawMessage(`not json`))
	s.applySettings(json.RawMessage(`{"lsbridge":{"trace":false}}`))
	if s.tracing() {
		t.Fatal("expected trace to be disabled")
	}
}
