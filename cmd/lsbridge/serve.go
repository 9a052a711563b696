package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"lsbridge/internal/address"
	"lsbridge/internal/cache"
	"lsbridge/internal/config"
	"lsbridge/internal/engine/memory"
	"lsbridge/internal/feature"
	"lsbridge/internal/feature/keywords"
	"lsbridge/internal/lsp"
	"lsbridge/internal/prof"
	"lsbridge/internal/trace"
	"lsbridge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server",
	Long: `Run the language server over stdio (default) or a TCP socket.

In socket mode lsbridge listens for editors on --socket. With --client it
connects to an editor listening there instead.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	registerServeFlags(serveCmd)
}

func registerServeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("mode", "", "transport (stdio|socket)")
	flags.String("socket", "", "TCP address for socket mode (default "+config.DefaultSocket+")")
	flags.Bool("client", false, "connect to the editor instead of listening")
	flags.Bool("multi-client", false, "keep accepting editors after the first one")
	flags.String("system-path", "", "directory for persistent server data")
	flags.String("path-style", "native", "path convention for file addresses (posix|windows|native)")
	flags.Bool("no-cache", false, "disable the semantic token cache")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
}

func profileOptions(cmd *cobra.Command) prof.Options {
	flags := cmd.Flags()
	var opts prof.Options
	opts.CPU, _ = flags.GetString("cpu-profile")
	opts.Mem, _ = flags.GetString("mem-profile")
	opts.Trace, _ = flags.GetString("runtime-trace")
	return opts
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit, err := stringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Resolve(explicit, cwd)
}

// serverOverrides applies the serve flags that were set on top of cfg.
func serverOverrides(cmd *cobra.Command, cfg *config.Server) error {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("socket") {
		cfg.Socket, _ = flags.GetString("socket")
		if !flags.Changed("mode") {
			cfg.Mode = config.ModeSocket
		}
	}
	if flags.Changed("client") {
		cfg.Client, _ = flags.GetBool("client")
	}
	if flags.Changed("multi-client") {
		cfg.MultiClient, _ = flags.GetBool("multi-client")
	}
	if flags.Changed("system-path") {
		cfg.SystemPath, _ = flags.GetString("system-path")
	}
	if cfg.Mode == "" {
		cfg.Mode = config.ModeStdio
	}
	if cfg.Mode == config.ModeSocket && cfg.Socket == "" {
		cfg.Socket = config.DefaultSocket
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := serverOverrides(cmd, &cfg.Server); err != nil {
		return err
	}
	styleName, err := cmd.Flags().GetString("path-style")
	if err != nil {
		return fmt.Errorf("failed to get path-style flag: %w", err)
	}
	style, err := address.ParseStyle(styleName)
	if err != nil {
		return err
	}

	settings, err := traceSettings(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, settings)
	if err != nil {
		return err
	}
	defer func() { cleanup(err) }()

	if popts := profileOptions(cmd); popts.Enabled() {
		session, perr := prof.Start(popts)
		if perr != nil {
			return perr
		}
		defer func() {
			if perr := session.Stop(); perr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "lsbridge: %v\n", perr)
			}
		}()
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	var tokens *cache.Tokens
	if !noCache {
		var cacheErr error
		if tokens, cacheErr = openTokenCache(cfg.Server.SystemPath); cacheErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "lsbridge: semantic token cache disabled: %v\n", cacheErr)
		}
	}

	session := func() (lsp.ServerOptions, error) {
		eng := memory.New()
		langs, entries := keywords.FromConfig(cfg, eng)
		fc, err := feature.NewConfiguration(langs, entries)
		if err != nil {
			return lsp.ServerOptions{}, err
		}
		return lsp.ServerOptions{
			Config:    fc,
			Engine:    eng,
			Converter: address.Converter{Style: style},
			Tokens:    tokens,
			Version:   version.Version,
			Log:       cmd.ErrOrStderr(),
		}, nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	trace.Point(ctx, trace.ScopeServer, "serve", cfg.Server.Mode)

	srv := cfg.Server
	switch {
	case srv.Mode == config.ModeStdio:
		return serveStdio(ctx, session)
	case srv.Client:
		return lsp.Dial(ctx, srv.Socket, session)
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "lsbridge: listening on %s\n", srv.Socket)
		return lsp.Listen(ctx, srv.Socket, srv.MultiClient, session)
	}
}

func serveStdio(ctx context.Context, session lsp.SessionFunc) error {
	opts, err := session()
	if err != nil {
		return err
	}
	server := lsp.NewServer(os.Stdin, os.Stdout, opts)
	if err := server.Run(ctx); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}

// openTokenCache opens the persistent semantic token cache under systemPath,
// or under the user cache directory when it is empty.
func openTokenCache(systemPath string) (*cache.Tokens, error) {
	disk, err := openDiskCache(systemPath)
	if err != nil {
		return nil, err
	}
	return cache.NewTokens(disk), nil
}

func openDiskCache(systemPath string) (*cache.DiskCache, error) {
	dir := ""
	if systemPath != "" {
		dir = filepath.Join(systemPath, "cache")
	}
	return cache.OpenDiskCache(dir, "lsbridge")
}
