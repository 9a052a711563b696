package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"lsbridge/internal/address"
	"lsbridge/internal/config"
	"lsbridge/internal/engine/memory"
	"lsbridge/internal/feature"
	"lsbridge/internal/feature/keywords"
	"lsbridge/internal/observ"
	"lsbridge/internal/protocol"
	"lsbridge/internal/semtok"
)

// newTokensCmd builds the tokens command tree. Every call returns fresh
// commands so that flag state never leaks between executions.
func newTokensCmd() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect semantic token streams",
	}

	decodeCmd := &cobra.Command{
		Use:   "decode [DATA...]",
		Short: "Decode an encoded semantic token stream",
		Long: `Decode a semantic token stream into a table.

The stream is read from the arguments, from --file, or from stdin. It may be
a JSON array, a SemanticTokens JSON object or plain integers separated by
commas or spaces.`,
		RunE: runTokensDecode,
	}
	decodeCmd.Flags().StringSlice("types", nil, "legend token types (default: the predefined LSP types)")
	decodeCmd.Flags().StringSlice("modifiers", nil, "legend token modifiers (default: the predefined LSP modifiers)")
	decodeCmd.Flags().String("file", "", "read the stream from a file")
	decodeCmd.Flags().String("source", "", "source file to show the text of every token")

	showCmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Highlight a file with the configured languages",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokensShow,
	}
	showCmd.Flags().Bool("raw", false, "print the encoded stream instead of a table")
	showCmd.Flags().Bool("timings", false, "print how long each step took to stderr")

	tokensCmd.AddCommand(decodeCmd)
	tokensCmd.AddCommand(showCmd)
	return tokensCmd
}

func runTokensDecode(cmd *cobra.Command, args []string) error {
	reg, err := legendRegistry(cmd)
	if err != nil {
		return err
	}

	var input string
	file, _ := cmd.Flags().GetString("file")
	switch {
	case len(args) > 0:
		input = strings.Join(args, " ")
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		input = string(b)
	default:
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = string(b)
	}

	data, err := parseTokenData(input)
	if err != nil {
		return err
	}
	tokens, err := semtok.Decode(data, reg)
	if err != nil {
		return err
	}

	var lines []string
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		b, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", source, err)
		}
		lines = splitSourceLines(string(b))
	}
	renderTokens(cmd.OutOrStdout(), tokens, lines)
	return nil
}

func runTokensShow(cmd *cobra.Command, args []string) error {
	timer := observ.NewTimer()
	if timings, _ := cmd.Flags().GetBool("timings"); timings {
		defer func() { fmt.Fprint(cmd.ErrOrStderr(), timer.Summary()) }()
	}

	var cfg *config.Config
	err := timer.Measure("config", func() (string, error) {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return "", err
		}
		if cfg.Path == "" {
			return "defaults", nil
		}
		return cfg.Path, nil
	})
	if err != nil {
		return err
	}

	path := args[0]
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	conv := address.Native
	uri, err := conv.LocalAbsolutePathToExternal(absPath(path))
	if err != nil {
		return err
	}
	addr, err := conv.ExternalToInternal(uri)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng := memory.New()
	langs, entries := keywords.FromConfig(cfg, eng)
	fc, err := feature.NewConfiguration(langs, entries)
	if err != nil {
		return err
	}
	lang, ok := fc.LanguageFor(addr)
	if !ok {
		return fmt.Errorf("%s: no configured language for this file (known: %s)", path, strings.Join(fc.LanguageNames(), ", "))
	}
	if err := eng.Open(ctx, addr, lang.Name, 1, string(text)); err != nil {
		return err
	}
	svc, err := feature.NewService(fc, feature.Options{Converter: conv})
	if err != nil {
		return err
	}

	var result protocol.SemanticTokens
	err = timer.Measure("semantic tokens", func() (string, error) {
		var err error
		result, err = svc.SemanticTokensFull(ctx, protocol.SemanticTokensParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		})
		return fmt.Sprintf("%d tokens", len(result.Data)/5), err
	})
	if err != nil {
		return err
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}
	var tokens []semtok.TokenWithRange
	err = timer.Measure("decode", func() (string, error) {
		var err error
		tokens, err = semtok.Decode(result.Data, svc.Registry())
		return "", err
	})
	if err != nil {
		return err
	}
	renderTokens(cmd.OutOrStdout(), tokens, splitSourceLines(string(text)))
	return nil
}

func legendRegistry(cmd *cobra.Command) (*semtok.Registry, error) {
	typeNames, _ := cmd.Flags().GetStringSlice("types")
	modNames, _ := cmd.Flags().GetStringSlice("modifiers")
	types := semtok.PredefinedTypes
	if len(typeNames) > 0 {
		types = make([]semtok.TokenType, len(typeNames))
		for i, n := range typeNames {
			types[i] = semtok.TokenType(strings.TrimSpace(n))
		}
	}
	mods := semtok.PredefinedModifiers
	if len(modNames) > 0 {
		mods = make([]semtok.TokenModifier, len(modNames))
		for i, n := range modNames {
			mods[i] = semtok.TokenModifier(strings.TrimSpace(n))
		}
	}
	return semtok.NewRegistry(types, mods)
}

// parseTokenData accepts a JSON array, a JSON object with a "data" field or
// integers separated by commas and whitespace.
func parseTokenData(input string) ([]uint32, error) {
	input = strings.TrimSpace(input)
	switch {
	case strings.HasPrefix(input, "["):
		var data []uint32
		if err := json.Unmarshal([]byte(input), &data); err != nil {
			return nil, fmt.Errorf("invalid token array: %w", err)
		}
		return data, nil
	case strings.HasPrefix(input, "{"):
		var result protocol.SemanticTokens
		if err := json.Unmarshal([]byte(input), &result); err != nil {
			return nil, fmt.Errorf("invalid semantic tokens object: %w", err)
		}
		return result.Data, nil
	}
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	data := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token integer %q: %w", f, err)
		}
		data = append(data, uint32(v))
	}
	return data, nil
}

var tokenColors = map[semtok.TokenType]*color.Color{
	semtok.TypeKeyword:  color.New(color.FgMagenta, color.Bold),
	semtok.TypeComment:  color.New(color.FgHiBlack),
	semtok.TypeString:   color.New(color.FgGreen),
	semtok.TypeNumber:   color.New(color.FgCyan),
	semtok.TypeFunction: color.New(color.FgYellow),
	semtok.TypeMethod:   color.New(color.FgYellow),
	semtok.TypeType:     color.New(color.FgBlue),
	semtok.TypeClass:    color.New(color.FgBlue),
}

var tokenHeader = color.New(color.Bold)

// renderTokens prints one row per token. Columns are padded by display
// width so that wide characters in the text column stay aligned.
func renderTokens(out io.Writer, tokens []semtok.TokenWithRange, lines []string) {
	header := []string{"LINE", "CHAR", "LEN", "TYPE", "MODIFIERS"}
	if lines != nil {
		header = append(header, "TEXT")
	}
	rows := make([][]string, 0, len(tokens))
	for _, tok := range tokens {
		r := tok.Range
		mods := make([]string, len(tok.Modifiers))
		for i, m := range tok.Modifiers {
			mods[i] = string(m)
		}
		row := []string{
			strconv.Itoa(r.Start.Line),
			strconv.Itoa(r.Start.Character),
			strconv.Itoa(r.End.Character - r.Start.Character),
			string(tok.Type),
			strings.Join(mods, ","),
		}
		if lines != nil {
			row = append(row, tokenText(lines, r))
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	last := len(header) - 1
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = tokenHeader.Sprint(pad(h, widths[i], i == last))
	}
	fmt.Fprintln(out, strings.Join(cells, "  "))
	for ri, row := range rows {
		for i, cell := range row {
			cell = pad(cell, widths[i], i == last)
			if i == 3 {
				if c, ok := tokenColors[tokens[ri].Type]; ok {
					cell = c.Sprint(cell)
				}
			}
			cells[i] = cell
		}
		fmt.Fprintln(out, strings.Join(cells, "  "))
	}
}

func pad(s string, width int, last bool) string {
	if last {
		return s
	}
	return runewidth.FillRight(s, width)
}

func splitSourceLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// tokenText returns the text covered by r on its start line. Characters are
// UTF-16 code units.
func tokenText(lines []string, r protocol.Range) string {
	if r.Start.Line < 0 || r.Start.Line >= len(lines) {
		return ""
	}
	units := utf16.Encode([]rune(lines[r.Start.Line]))
	start := min(max(r.Start.Character, 0), len(units))
	end := len(units)
	if r.End.Line == r.Start.Line {
		end = min(max(r.End.Character, start), len(units))
	}
	return string(utf16.Decode(units[start:end]))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
