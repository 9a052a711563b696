package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lsbridge/internal/config"
	"lsbridge/internal/trace"
)

// traceSettings merges the [trace] section of the configuration file with
// the --trace* flags. Flags set on the command line win.
func traceSettings(cmd *cobra.Command, file config.Trace) (config.Trace, error) {
	flags := cmd.InheritedFlags()
	out := file

	if flags.Changed("trace") {
		v, err := flags.GetString("trace")
		if err != nil {
			return out, fmt.Errorf("failed to get trace flag: %w", err)
		}
		out.Output = v
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"trace-level", &out.Level},
		{"trace-mode", &out.Mode},
		{"trace-format", &out.Format},
	} {
		if !flags.Changed(f.name) && *f.dst != "" {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return out, fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
		*f.dst = v
	}
	if flags.Changed("trace-ring-size") || out.RingSize <= 0 {
		v, err := flags.GetInt("trace-ring-size")
		if err != nil {
			return out, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		out.RingSize = v
	}
	if flags.Changed("trace-heartbeat") {
		v, err := flags.GetDuration("trace-heartbeat")
		if err != nil {
			return out, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
		out.Heartbeat = v
	}
	return out, nil
}

// setupTracing initializes the tracer from settings and attaches it to the
// command context. The returned cleanup takes the command's final error;
// when it is non-nil and events were kept in a ring, they are dumped to
// stderr.
func setupTracing(cmd *cobra.Command, settings config.Trace) (func(error), error) {
	level, err := trace.ParseLevel(settings.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}

	// If level is off and no output specified, skip tracing
	if level == trace.LevelOff && settings.Output == "" {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func(error) {}, nil
	}
	if level == trace.LevelOff {
		level = trace.LevelError
	}

	mode, err := trace.ParseMode(settings.Mode)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(settings.Format)
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: settings.Output,
		RingSize:   settings.RingSize,
		Heartbeat:  settings.Heartbeat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if settings.Heartbeat > 0 {
		heartbeat = trace.StartHeartbeat(tracer, settings.Heartbeat)
	}

	errOut := cmd.ErrOrStderr()
	cleanup := func(runErr error) {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if runErr != nil {
			dumpRing(errOut, tracer)
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(errOut, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(errOut, "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}

func dumpRing(w io.Writer, tracer trace.Tracer) {
	var ring *trace.RingTracer
	switch t := tracer.(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring = t.Ring()
	}
	if ring == nil || ring.Len() == 0 {
		return
	}
	fmt.Fprintf(w, "trace: last %d events\n", ring.Len())
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}
