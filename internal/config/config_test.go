package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[server]
mode = "socket"
socket = "127.0.0.1:7000"
multi_client = true

[trace]
level = "provider"
mode = "ring"
ring_size = 128
heartbeat = "2s"

[[language]]
name = "toy"
extensions = ["toy", ".ty"]
keywords = ["let", "fn"]
line_comment = "//"
block_comment = ["/*", "*/"]
string_quotes = ["\""]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Mode != ModeSocket || cfg.Server.Socket != "127.0.0.1:7000" || !cfg.Server.MultiClient {
		t.Fatalf("unexpected server section: %+v", cfg.Server)
	}
	if cfg.Trace.Level != "provider" || cfg.Trace.Mode != "ring" || cfg.Trace.RingSize != 128 || cfg.Trace.Heartbeat != 2*time.Second {
		t.Fatalf("unexpected trace section: %+v", cfg.Trace)
	}
	if len(cfg.Languages) != 1 {
		t.Fatalf("expected 1 language, got %d", len(cfg.Languages))
	}
	lang := cfg.Languages[0]
	if lang.Extensions[0] != ".toy" || lang.Extensions[1] != ".ty" {
		t.Fatalf("extensions not normalized: %v", lang.Extensions)
	}
	if lang.BlockComment != [2]string{"/*", "*/"} {
		t.Fatalf("unexpected block comment: %v", lang.BlockComment)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[trace]\nlevel = \"request\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Server.Mode != def.Server.Mode || cfg.Server.Socket != def.Server.Socket {
		t.Fatalf("server defaults lost: %+v", cfg.Server)
	}
	if cfg.Trace.RingSize != def.Trace.RingSize || cfg.Trace.Mode != def.Trace.Mode {
		t.Fatalf("trace defaults lost: %+v", cfg.Trace)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[server]\nmod = \"stdio\"\n")
	if _, err := Load(path); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestLoadRejectsBadSections(t *testing.T) {
	cases := map[string]struct {
		content string
		want    error
	}{
		"mode":          {"[server]\nmode = \"pipe\"\n", ErrInvalidServer},
		"exclusive":     {"[server]\nclient = true\nmulti_client = true\n", ErrInvalidServer},
		"no name":       {"[[language]]\nextensions = [\"x\"]\n", ErrInvalidLanguage},
		"no extensions": {"[[language]]\nname = \"x\"\n", ErrInvalidLanguage},
		"duplicate":     {"[[language]]\nname = \"x\"\nextensions = [\"x\"]\n[[language]]\nname = \"x\"\nextensions = [\"y\"]\n", ErrInvalidLanguage},
		"block comment": {"[[language]]\nname = \"x\"\nextensions = [\"x\"]\nblock_comment = [\"/*\"]\n", ErrInvalidLanguage},
	}
	for name, tc := range cases {
		path := writeConfig(t, t.TempDir(), tc.content)
		if _, err := Load(path); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}
}

func TestLoadBadHeartbeat(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[trace]\nheartbeat = \"soon\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected heartbeat parse error")
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("Find = %q, want %q", got, want)
	}
}

func TestResolveWithoutFile(t *testing.T) {
	dir := t.TempDir()
	if _, ok, _ := Find(dir); ok {
		t.Skip("a lsbridge.toml exists above the temp directory")
	}
	cfg, err := Resolve("", dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Path != "" || cfg.Server.Mode != ModeStdio {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
