package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lsbridge/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "lsbridge",
	Short: "Language server protocol bridge",
	Long: `lsbridge speaks the Language Server Protocol to editors and converts
addresses, semantic tokens and partial results for the analysis engine behind it`,
	SilenceUsage: true,
}

// main registers subcommands and persistent flags and executes the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(uriCmd)
	rootCmd.AddCommand(newTokensCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(versionCmd)

	registerRootFlags(rootCmd)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return applyColor(cmd)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "path to lsbridge.toml (default: nearest one above the working directory)")
	flags.String("color", "auto", "colorize output (auto|on|off)")

	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|request|provider|debug)")
	flags.String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	flags.Int("trace-ring-size", 4096, "ring buffer capacity for ring mode")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")
}

// applyColor resolves --color against the terminal state of stdout.
func applyColor(cmd *cobra.Command) error {
	value, err := stringFlag(cmd, "color")
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return nil
}

// stringFlag reads a flag from the command or any of its parents.
func stringFlag(cmd *cobra.Command, name string) (string, error) {
	f := cmd.Flag(name)
	if f == nil {
		return "", fmt.Errorf("failed to get %s flag: not defined", name)
	}
	return f.Value.String(), nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
