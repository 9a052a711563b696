package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"lsbridge/internal/address"
	"lsbridge/internal/aggregate"
	"lsbridge/internal/cache"
	"lsbridge/internal/engine"
	"lsbridge/internal/feature"
	"lsbridge/internal/protocol"
	"lsbridge/internal/trace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures one client session.
type ServerOptions struct {
	Config    *feature.Configuration
	Engine    engine.Engine
	Converter address.Converter
	// Tokens caches encoded semantic tokens; nil disables it.
	Tokens *cache.Tokens
	// Name and Version are reported as serverInfo.
	Name    string
	Version string
	// Log receives operational messages. Defaults to stderr.
	Log io.Writer
}

// Server handles JSON-RPC for one LSP client. Requests run concurrently;
// notifications are applied in arrival order.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	logMu  sync.Mutex
	mu     sync.Mutex

	opts     ServerOptions
	log      io.Writer
	svc      *feature.Service
	inflight map[string]context.CancelFunc
	requests sync.WaitGroup
	baseCtx  context.Context

	shutdownRequested bool
	traceLSP          bool
}

func (o ServerOptions) logWriter() io.Writer {
	if o.Log == nil {
		return os.Stderr
	}
	return o.Log
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	log := opts.logWriter()
	if opts.Name == "" {
		opts.Name = "lsbridge"
	}
	return &Server{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		opts:     opts,
		log:      log,
		inflight: make(map[string]context.CancelFunc),
		baseCtx:  context.Background(),
	}
}

// Run serves LSP messages until the input ends or the client exits. Requests
// still running when it returns are cancelled and awaited.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.requests.Wait()
	}()
	s.baseCtx = ctx
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			if sendErr := s.sendError(json.RawMessage("null"), codeParseError, "parse error"); sendErr != nil {
				return sendErr
			}
			continue
		}
		if msg.Method == "" {
			// a response to a server-initiated request; none are sent
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "$/cancelRequest":
		return s.handleCancel(msg)
	}

	s.mu.Lock()
	initialized := s.svc != nil
	shutdown := s.shutdownRequested
	s.mu.Unlock()

	isRequest := len(msg.ID) > 0
	if !initialized {
		if isRequest {
			return s.sendError(msg.ID, codeServerNotInitialized, "server not initialized")
		}
		return nil
	}
	if isRequest && shutdown {
		return s.sendError(msg.ID, codeInvalidRequest, "server is shutting down")
	}

	if n, ok := notifications[msg.Method]; ok {
		if err := n(s, msg.Params); err != nil {
			s.logf("%s: %v", msg.Method, err)
		}
		return nil
	}
	if h, ok := requests[msg.Method]; ok && isRequest {
		s.startRequest(msg, h)
		return nil
	}
	if isRequest {
		return s.sendError(msg.ID, codeMethodNotFound, "method not found")
	}
	return nil
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	params, err := decodeParams[protocol.InitializeParams](msg.Params)
	if err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	s.mu.Lock()
	already := s.svc != nil
	s.mu.Unlock()
	if already {
		return s.sendError(msg.ID, codeInvalidRequest, "server already initialized")
	}

	ctx := s.baseCtx
	span, ctx := trace.Start(ctx, trace.ScopeRequest, "initialize")
	defer span.End("")
	if params.ClientInfo != nil {
		span.WithExtra("client", params.ClientInfo.Name)
	}

	cfg := s.opts.Config
	if cfg == nil {
		cfg, _ = feature.NewConfiguration(nil, nil)
	}
	svc, err := feature.NewService(cfg, feature.Options{
		Converter: s.opts.Converter,
		Tokens:    s.opts.Tokens,
		Text:      s.opts.Engine,
	})
	if err != nil {
		trace.Error(ctx, "initialize", err)
		return s.sendError(msg.ID, codeInternalError, err.Error())
	}

	folders := params.WorkspaceFolders
	if len(folders) == 0 && params.RootURI != "" {
		folders = []protocol.WorkspaceFolder{{URI: params.RootURI}}
	}
	if len(folders) == 0 && params.RootPath != "" {
		if uri, err := s.opts.Converter.LocalAbsolutePathToExternal(params.RootPath); err == nil {
			folders = []protocol.WorkspaceFolder{{URI: uri, Name: params.RootPath}}
		}
	}
	if s.opts.Engine != nil {
		if err := s.opts.Engine.AddFolders(ctx, s.engineFolders(folders)); err != nil {
			s.logf("initialize: %v", err)
		}
	}

	s.mu.Lock()
	s.svc = svc
	s.mu.Unlock()

	return s.sendResponse(msg.ID, protocol.InitializeResult{
		Capabilities: svc.Capabilities(),
		ServerInfo:   &protocol.ServerInfo{Name: s.opts.Name, Version: s.opts.Version},
	})
}

func (s *Server) engineFolders(folders []protocol.WorkspaceFolder) []engine.Folder {
	out := make([]engine.Folder, 0, len(folders))
	for _, f := range folders {
		addr, err := s.opts.Converter.ExternalToInternal(f.URI)
		if err != nil {
			s.logf("skipping workspace folder %q: %v", f.URI, err)
			continue
		}
		out = append(out, engine.Folder{Address: addr, Name: f.Name})
	}
	return out
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleCancel(msg *rpcMessage) error {
	params, err := decodeParams[protocol.CancelParams](msg.Params)
	if err != nil || len(params.ID) == 0 {
		return nil
	}
	s.mu.Lock()
	cancel, ok := s.inflight[string(params.ID)]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// startRequest runs h on its own goroutine. The request is registered before
// the next message is read, so a following $/cancelRequest always finds it.
func (s *Server) startRequest(msg *rpcMessage, h requestHandler) {
	key := string(msg.ID)
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.inflight[key] = cancel
	svc := s.svc
	s.mu.Unlock()

	s.requests.Add(1)
	go func() {
		defer s.requests.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
			cancel()
		}()

		ctx := trace.WithRequest(ctx, strings.Trim(string(msg.ID), `"`))
		span, ctx := trace.Start(ctx, trace.ScopeRequest, msg.Method)
		result, err := h(ctx, s, svc, msg.Params)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			code, text := errorCode(err)
			if code != codeRequestCancelled {
				trace.Error(ctx, msg.Method, err)
			}
			span.End(text)
			if sendErr := s.sendError(msg.ID, code, text); sendErr != nil {
				s.logf("%s: failed to send error: %v", msg.Method, sendErr)
			}
			return
		}
		span.End("ok")
		if sendErr := s.sendResponse(msg.ID, result); sendErr != nil {
			s.logf("%s: failed to send response: %v", msg.Method, sendErr)
		}
	}()
}

// NotifyPartialResult implements aggregate.Transport with $/progress.
func (s *Server) NotifyPartialResult(ctx context.Context, token aggregate.Token, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trace.Point(ctx, trace.ScopeItem, "partialResult", string(token))
	return s.sendNotification("$/progress", protocol.ProgressParams{Token: token, Value: value})
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	fmt.Fprintf(s.log, "lsp: "+format+"\n", args...)
}
