package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lsbridge/internal/protocol"
)

const toyConfig = `
[[language]]
name = "toy"
extensions = ["toy"]
keywords = ["let", "fn"]
line_comment = "#"
string_quotes = ["\""]
`

func runTokensCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	root := &cobra.Command{Use: "lsbridge", SilenceUsage: true, SilenceErrors: true}
	registerRootFlags(root)
	root.AddCommand(newTokensCmd())

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestTokensShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lsbridge.toml")
	if err := os.WriteFile(cfgPath, []byte(toyConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	src := filepath.Join(dir, "main.toy")
	if err := os.WriteFile(src, []byte("let s = \"hi\" # 1\nfn"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, errOut, err := runTokensCommand(t, "--config", cfgPath, "tokens", "show", "--timings", src)
	if err != nil {
		t.Fatalf("tokens show: %v", err)
	}
	rows := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(rows) != 5 {
		t.Fatalf("expected header and 4 tokens, got:\n%s", out)
	}
	for i, want := range []string{
		"0 0 3 keyword let",
		`0 8 4 string "hi"`,
		"0 13 3 comment # 1",
		"1 0 2 keyword fn",
	} {
		if got := strings.Join(strings.Fields(rows[i+1]), " "); got != want {
			t.Fatalf("row %d = %q, want %q", i+1, got, want)
		}
	}
	if !strings.Contains(errOut, "semantic tokens") || !strings.Contains(errOut, "4 tokens") {
		t.Fatalf("expected timings on stderr, got %q", errOut)
	}

	out, _, err = runTokensCommand(t, "--config", cfgPath, "tokens", "show", "--raw", src)
	if err != nil {
		t.Fatalf("tokens show --raw: %v", err)
	}
	var result protocol.SemanticTokens
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode raw output: %v", err)
	}
	if len(result.Data) != 20 {
		t.Fatalf("expected 20 integers, got %v", result.Data)
	}

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("let"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := runTokensCommand(t, "--config", cfgPath, "tokens", "show", other); err == nil || !strings.Contains(err.Error(), "toy") {
		t.Fatalf("expected an unknown language error naming toy, got %v", err)
	}
}

func TestTokensDecode(t *testing.T) {
	out, _, err := runTokensCommand(t, "tokens", "decode", "--types", "keyword,string", "--modifiers", "readonly", "0,0,3,0,0", "1,2,4,1,1")
	if err != nil {
		t.Fatalf("tokens decode: %v", err)
	}
	rows := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got:\n%s", out)
	}
	if got := strings.Join(strings.Fields(rows[2]), " "); got != "1 2 4 string readonly" {
		t.Fatalf("unexpected row %q", got)
	}

	if _, _, err := runTokensCommand(t, "tokens", "decode", "--types", "keyword", "0,0,3,4,0"); err == nil {
		t.Fatal("expected an error for a type index outside the legend")
	}
}
