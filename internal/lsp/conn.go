package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"lsbridge/internal/trace"
)

// SessionFunc builds the options of a new client session.
type SessionFunc func() (ServerOptions, error)

// ServeConn runs one session over rw and closes it when the session ends.
// A clean exit is reported as nil.
func ServeConn(ctx context.Context, rw io.ReadWriteCloser, opts ServerOptions) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = rw.Close()
		case <-done:
		}
	}()
	err := NewServer(rw, rw, opts).Run(ctx)
	if closeErr := rw.Close(); closeErr != nil && err == nil && !errors.Is(closeErr, net.ErrClosed) {
		err = closeErr
	}
	if errors.Is(err, ErrExit) || ctx.Err() != nil {
		return nil
	}
	return err
}

// Serve accepts clients on ln. With multi unset it serves the first client
// and returns when that session ends; otherwise it keeps accepting until ctx
// is cancelled.
func Serve(ctx context.Context, ln net.Listener, multi bool, session SessionFunc) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		opts, err := session()
		if err != nil {
			_ = conn.Close()
			return err
		}
		trace.Point(ctx, trace.ScopeServer, "accept", conn.RemoteAddr().String())
		if !multi {
			return ServeConn(ctx, conn, opts)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ServeConn(ctx, conn, opts); err != nil {
				trace.Error(ctx, "session", err)
				fmt.Fprintf(opts.logWriter(), "lsp: session %s: %v\n", conn.RemoteAddr(), err)
			}
		}()
	}
}

// Listen opens a TCP listener on addr and serves it.
func Listen(ctx context.Context, addr string, multi bool, session SessionFunc) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	trace.Point(ctx, trace.ScopeServer, "listen", ln.Addr().String())
	return Serve(ctx, ln, multi, session)
}

// Dial connects to an editor listening on addr and serves that connection.
func Dial(ctx context.Context, addr string, session SessionFunc) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	opts, err := session()
	if err != nil {
		_ = conn.Close()
		return err
	}
	trace.Point(ctx, trace.ScopeServer, "connect", addr)
	return ServeConn(ctx, conn, opts)
}
