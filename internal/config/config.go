// Package config loads lsbridge.toml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up from the working directory.
const FileName = "lsbridge.toml"

// DefaultSocket is the TCP address used when none is configured.
const DefaultSocket = "127.0.0.1:9999"

var (
	// ErrUnknownKey indicates a key that no section understands.
	ErrUnknownKey = errors.New("unknown configuration key")
	// ErrInvalidLanguage indicates a [[language]] entry that cannot be used.
	ErrInvalidLanguage = errors.New("invalid [[language]] entry")
	// ErrInvalidServer indicates an unusable [server] section.
	ErrInvalidServer = errors.New("invalid [server] section")
)

// Transport modes.
const (
	ModeStdio  = "stdio"
	ModeSocket = "socket"
)

// Server selects how the language server talks to the editor.
type Server struct {
	Mode        string
	Socket      string
	Client      bool
	MultiClient bool
	SystemPath  string
}

// Trace mirrors the --trace* flags.
type Trace struct {
	Level     string
	Mode      string
	Output    string
	Format    string
	RingSize  int
	Heartbeat time.Duration
}

// Language declares the built-in lexical support for one language.
type Language struct {
	Name         string
	Extensions   []string
	Keywords     []string
	LineComment  string
	BlockComment [2]string // zero when the language has no block comments
	StringQuotes []string
}

// Config is the parsed configuration file.
type Config struct {
	Path      string
	Server    Server
	Trace     Trace
	Languages []Language
}

type fileConfig struct {
	Server struct {
		Mode        string `toml:"mode"`
		Socket      string `toml:"socket"`
		Client      bool   `toml:"client"`
		MultiClient bool   `toml:"multi_client"`
		SystemPath  string `toml:"system_path"`
	} `toml:"server"`
	Trace struct {
		Level     string `toml:"level"`
		Mode      string `toml:"mode"`
		Output    string `toml:"output"`
		Format    string `toml:"format"`
		RingSize  int    `toml:"ring_size"`
		Heartbeat string `toml:"heartbeat"`
	} `toml:"trace"`
	Language []struct {
		Name         string   `toml:"name"`
		Extensions   []string `toml:"extensions"`
		Keywords     []string `toml:"keywords"`
		LineComment  string   `toml:"line_comment"`
		BlockComment []string `toml:"block_comment"`
		StringQuotes []string `toml:"string_quotes"`
	} `toml:"language"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Mode:   ModeStdio,
			Socket: DefaultSocket,
		},
		Trace: Trace{
			Level:    "off",
			Mode:     "stream",
			RingSize: 4096,
		},
	}
}

// Load parses a configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: %w: %s", path, ErrUnknownKey, strings.Join(keys, ", "))
	}

	cfg := Default()
	cfg.Path = path

	if meta.IsDefined("server", "mode") {
		cfg.Server.Mode = strings.ToLower(strings.TrimSpace(raw.Server.Mode))
	}
	if meta.IsDefined("server", "socket") {
		cfg.Server.Socket = strings.TrimSpace(raw.Server.Socket)
	}
	cfg.Server.Client = raw.Server.Client
	cfg.Server.MultiClient = raw.Server.MultiClient
	cfg.Server.SystemPath = strings.TrimSpace(raw.Server.SystemPath)
	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if meta.IsDefined("trace", "level") {
		cfg.Trace.Level = raw.Trace.Level
	}
	if meta.IsDefined("trace", "mode") {
		cfg.Trace.Mode = raw.Trace.Mode
	}
	if meta.IsDefined("trace", "ring_size") {
		cfg.Trace.RingSize = raw.Trace.RingSize
	}
	cfg.Trace.Output = raw.Trace.Output
	cfg.Trace.Format = raw.Trace.Format
	if meta.IsDefined("trace", "heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Trace.Heartbeat))
		if err != nil {
			return nil, fmt.Errorf("%s: invalid [trace].heartbeat: %w", path, err)
		}
		cfg.Trace.Heartbeat = d
	}

	seen := make(map[string]struct{}, len(raw.Language))
	for i, l := range raw.Language {
		lang := Language{
			Name:         strings.TrimSpace(l.Name),
			Extensions:   normalizeExtensions(l.Extensions),
			Keywords:     l.Keywords,
			LineComment:  l.LineComment,
			StringQuotes: l.StringQuotes,
		}
		if lang.Name == "" {
			return nil, fmt.Errorf("%s: %w #%d: missing name", path, ErrInvalidLanguage, i+1)
		}
		if _, dup := seen[lang.Name]; dup {
			return nil, fmt.Errorf("%s: %w %q: declared twice", path, ErrInvalidLanguage, lang.Name)
		}
		seen[lang.Name] = struct{}{}
		if len(lang.Extensions) == 0 {
			return nil, fmt.Errorf("%s: %w %q: no extensions", path, ErrInvalidLanguage, lang.Name)
		}
		switch len(l.BlockComment) {
		case 0:
		case 2:
			lang.BlockComment = [2]string{l.BlockComment[0], l.BlockComment[1]}
			if l.BlockComment[0] == "" || l.BlockComment[1] == "" {
				return nil, fmt.Errorf("%s: %w %q: empty block_comment delimiter", path, ErrInvalidLanguage, lang.Name)
			}
		default:
			return nil, fmt.Errorf("%s: %w %q: block_comment needs an opening and a closing delimiter", path, ErrInvalidLanguage, lang.Name)
		}
		cfg.Languages = append(cfg.Languages, lang)
	}
	return cfg, nil
}

// Validate checks the transport settings.
func (s Server) Validate() error {
	switch s.Mode {
	case ModeStdio:
	case ModeSocket:
		if s.Socket == "" {
			return fmt.Errorf("%w: socket mode needs an address", ErrInvalidServer)
		}
	default:
		return fmt.Errorf("%w: mode %q (expected: stdio|socket)", ErrInvalidServer, s.Mode)
	}
	if s.Client && s.MultiClient {
		return fmt.Errorf("%w: client and multi_client are exclusive", ErrInvalidServer)
	}
	return nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
