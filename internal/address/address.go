// Package address converts document addresses between the editor-facing URI
// form and the internal form used by analysis engines.
//
// External URIs follow RFC 3986: path components are percent-encoded and a
// Windows drive is rendered as "/C%3A/...". Internal addresses are never
// encoded, always use forward slashes, and address archive members with a
// "!/" separator:
//
//	file:///home/user/a.txt
//	file://c:/Users/a.txt
//	jar:///libs/app.jar!/com/example/Main.class
//	jrt:///jdk!/java.base/java/lang/String.class
//
// Converting an external URI to internal and back may change its spelling
// once; a second round trip is a fixed point.
package address

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
)

var (
	// ErrMalformedAddress reports an address that cannot be parsed or converted.
	ErrMalformedAddress = errors.New("malformed address")
	// ErrNotLocal reports an address that does not name a local file.
	ErrNotLocal = errors.New("address is not a local file")
)

const (
	schemeFile = "file"
	schemeJar  = "jar"
	schemeJrt  = "jrt"

	archiveSep = "!/"
	jarExt     = ".jar"
)

// Style selects the path convention used when normalizing drive letters and
// local path separators.
type Style uint8

const (
	// StylePosix keeps a leading slash on every path.
	StylePosix Style = iota
	// StyleWindows recognizes single-letter drives and backslash separators.
	StyleWindows
)

// String returns the flag spelling of the style.
func (s Style) String() string {
	switch s {
	case StylePosix:
		return "posix"
	case StyleWindows:
		return "windows"
	default:
		return "unknown"
	}
}

// ParseStyle converts a flag value into a Style.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "posix", "unix":
		return StylePosix, nil
	case "windows", "win":
		return StyleWindows, nil
	case "", "native":
		return Native.Style, nil
	default:
		return StylePosix, fmt.Errorf("invalid path style: %q (expected: posix|windows|native)", s)
	}
}

// Converter performs address conversions for one path style.
// The zero value uses POSIX conventions.
type Converter struct {
	Style Style
}

// Native is the converter for the running platform.
var Native = Converter{Style: nativeStyle()}

func nativeStyle() Style {
	if runtime.GOOS == "windows" {
		return StyleWindows
	}
	return StylePosix
}

// ExternalToInternal converts an editor URI with the native converter.
func ExternalToInternal(uri string) (string, error) {
	return Native.ExternalToInternal(uri)
}

// InternalToExternal converts an internal address with the native converter.
func InternalToExternal(addr string) (string, error) {
	return Native.InternalToExternal(addr)
}

// LocalAbsolutePathToExternal converts a local path with the native converter.
func LocalAbsolutePathToExternal(path string) (string, error) {
	return Native.LocalAbsolutePathToExternal(path)
}

// LocalAbsolutePathToInternal converts a local path with the native converter.
func LocalAbsolutePathToInternal(path string) (string, error) {
	return Native.LocalAbsolutePathToInternal(path)
}

// ExternalToLocalPath resolves a file URI with the native converter.
func ExternalToLocalPath(uri string) (string, error) {
	return Native.ExternalToLocalPath(uri)
}

// ExternalToInternal converts an editor URI into an internal address.
// URIs with schemes other than file, jar and jrt are returned unchanged.
func (c Converter) ExternalToInternal(uri string) (string, error) {
	scheme, rest, ok := splitScheme(uri)
	if !ok {
		return "", fmt.Errorf("%w: %q: missing scheme", ErrMalformedAddress, uri)
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	switch scheme {
	case schemeFile:
		path, err := c.decodeLocation(rest)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrMalformedAddress, uri, err)
		}
		return fileAddress(path), nil

	case schemeJar, schemeJrt:
		archive, entry, hasEntry := strings.Cut(rest, "!")
		archive = strings.TrimPrefix(archive, schemeFile+":")
		path, err := c.decodeLocation(archive)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrMalformedAddress, uri, err)
		}
		if !hasEntry && path == "/" {
			return scheme + ":///", nil
		}
		if strings.Contains(entry, archiveSep) {
			return "", fmt.Errorf("%w: %q: nested archives are not supported", ErrMalformedAddress, uri)
		}
		member, err := url.PathUnescape(entry)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrMalformedAddress, uri, err)
		}
		member = strings.TrimPrefix(member, "/")
		return scheme + "://" + path + archiveSep + member, nil

	default:
		return uri, nil
	}
}

// InternalToExternal converts an internal address into an editor URI.
// Each side of an archive separator is encoded independently. Addresses with
// other schemes are returned unchanged.
func (c Converter) InternalToExternal(addr string) (string, error) {
	scheme, rest, ok := splitScheme(addr)
	if !ok {
		return "", fmt.Errorf("%w: %q: missing scheme", ErrMalformedAddress, addr)
	}
	switch scheme {
	case schemeFile, schemeJar, schemeJrt:
	default:
		return addr, nil
	}
	if !strings.HasPrefix(rest, "//") {
		return "", fmt.Errorf("%w: %q: expected %s://path", ErrMalformedAddress, addr, scheme)
	}
	rest = rest[2:]

	archive, entry, ok := strings.Cut(rest, archiveSep)
	if !ok {
		return scheme + "://" + c.encodePath(rest), nil
	}
	return scheme + "://" + c.encodePath(archive) + archiveSep + escape(strings.TrimPrefix(entry, "/")), nil
}

// LocalAbsolutePathToInternal converts an absolute filesystem path into an
// internal address. Paths ending in ".jar" address the archive root.
func (c Converter) LocalAbsolutePathToInternal(path string) (string, error) {
	p := path
	if c.Style == StyleWindows {
		p = strings.ReplaceAll(p, `\`, "/")
	}
	if !c.isAbs(p) {
		return "", fmt.Errorf("%w: %q: path is not absolute", ErrMalformedAddress, path)
	}
	return fileAddress(c.normalizePath(p)), nil
}

// LocalAbsolutePathToExternal converts an absolute filesystem path into an
// editor URI.
func (c Converter) LocalAbsolutePathToExternal(path string) (string, error) {
	addr, err := c.LocalAbsolutePathToInternal(path)
	if err != nil {
		return "", err
	}
	return c.InternalToExternal(addr)
}

// ExternalToLocalPath returns the filesystem path named by a file URI, or by a
// jar URI that addresses an archive root.
func (c Converter) ExternalToLocalPath(uri string) (string, error) {
	addr, err := c.ExternalToInternal(uri)
	if err != nil {
		return "", err
	}
	var p string
	switch {
	case strings.HasPrefix(addr, schemeFile+"://"):
		p = strings.TrimPrefix(addr, schemeFile+"://")
	case strings.HasPrefix(addr, schemeJar+"://") && strings.HasSuffix(addr, archiveSep):
		p = strings.TrimSuffix(strings.TrimPrefix(addr, schemeJar+"://"), archiveSep)
	default:
		return "", fmt.Errorf("%w: %q", ErrNotLocal, uri)
	}
	if c.Style == StyleWindows && hasDrive(p) {
		p = strings.ReplaceAll(p, "/", `\`)
	}
	return p, nil
}

// splitScheme separates an RFC 3986 scheme from the rest of a URI.
// The scheme is returned lower-cased.
func splitScheme(uri string) (scheme, rest string, ok bool) {
	for i := 0; i < len(uri); i++ {
		b := uri[i]
		switch {
		case isASCIILetter(b):
		case i > 0 && ('0' <= b && b <= '9' || b == '+' || b == '-' || b == '.'):
		case i > 0 && b == ':':
			return strings.ToLower(uri[:i]), uri[i+1:], true
		default:
			return "", "", false
		}
	}
	return "", "", false
}

// decodeLocation strips an optional authority from a hierarchical part,
// decodes percent escapes and normalizes the result.
func (c Converter) decodeLocation(raw string) (string, error) {
	path := raw
	if strings.HasPrefix(path, "//") {
		authority := path[2:]
		path = ""
		if i := strings.IndexByte(authority, '/'); i >= 0 {
			authority, path = authority[:i], authority[i:]
		}
		// "file://c:/x" carries the drive where a host would be.
		if host, err := url.PathUnescape(authority); err == nil && len(host) == 2 && hasDrive(host) {
			path = "/" + authority + path
		}
	}
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return "", err
	}
	return c.normalizePath(decoded), nil
}

// normalizePath renders an unencoded path in internal form.
func (c Converter) normalizePath(p string) string {
	if c.Style == StyleWindows {
		trimmed := strings.TrimPrefix(p, "/")
		if hasDrive(trimmed) {
			return strings.ToLower(trimmed[:1]) + trimmed[1:]
		}
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func (c Converter) encodePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if c.Style == StyleWindows && hasDrive(p) {
		return "/" + strings.ToUpper(p[:1]) + "%3A" + escape(p[2:])
	}
	return "/" + escape(p)
}

func (c Converter) isAbs(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	return c.Style == StyleWindows && hasDrive(p) && len(p) > 2
}

func fileAddress(path string) string {
	if strings.HasSuffix(path, jarExt) {
		return schemeJar + "://" + path + archiveSep
	}
	return schemeFile + "://" + path
}

// hasDrive reports whether p starts with a single-letter drive such as "c:".
func hasDrive(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	if !isASCIILetter(p[0]) {
		return false
	}
	return len(p) == 2 || p[2] == '/' || p[2] == '\\'
}

func isASCIILetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
