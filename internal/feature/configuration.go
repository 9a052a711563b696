// Package feature routes LSP requests to the providers registered for a
// document's language and shapes their combined answers.
//
// Providers speak internal addresses only. The Service converts incoming
// external URIs before calling them and converts the locations they return
// before anything reaches the client.
package feature

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

var (
	// ErrDuplicateLanguage is returned when two languages share a name.
	ErrDuplicateLanguage = errors.New("duplicate language")
	// ErrDuplicateEntry is returned when two entries share a name.
	ErrDuplicateEntry = errors.New("duplicate configuration entry")
	// ErrUnknownLanguage is returned when an entry names an undeclared language.
	ErrUnknownLanguage = errors.New("unknown language")
)

// Language is a language the server answers for.
type Language struct {
	Name       string
	Extensions []string // with or without the leading dot
}

// Matches reports whether the address or URI has one of the language's
// file extensions.
func (l Language) Matches(uri string) bool {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	ext := strings.TrimPrefix(path.Ext(uri), ".")
	if ext == "" {
		return false
	}
	for _, e := range l.Extensions {
		if strings.TrimPrefix(e, ".") == ext {
			return true
		}
	}
	return false
}

// Entry is anything registered in a Configuration. Capabilities are added by
// implementing the provider interfaces in this package.
type Entry interface {
	Name() string
	// Languages names the languages the entry serves. Nil means the entry is
	// not tied to a language.
	Languages() []string
}

// Configuration is the immutable set of languages and entries of a session.
type Configuration struct {
	languages  []Language
	entries    []Entry
	byLanguage map[string][]Entry
}

// NewConfiguration validates and indexes languages and entries.
func NewConfiguration(languages []Language, entries []Entry) (*Configuration, error) {
	known := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		if _, dup := known[l.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLanguage, l.Name)
		}
		known[l.Name] = struct{}{}
	}
	names := make(map[string]struct{}, len(entries))
	byLanguage := make(map[string][]Entry, len(languages))
	for _, e := range entries {
		if _, dup := names[e.Name()]; dup {
			return nil, fmt.Errorf("%w: %q is provided by more than one entry", ErrDuplicateEntry, e.Name())
		}
		names[e.Name()] = struct{}{}
		for _, lang := range e.Languages() {
			if _, ok := known[lang]; !ok {
				return nil, fmt.Errorf("%w %q in entry %q", ErrUnknownLanguage, lang, e.Name())
			}
			byLanguage[lang] = append(byLanguage[lang], e)
		}
	}
	return &Configuration{
		languages:  append([]Language(nil), languages...),
		entries:    append([]Entry(nil), entries...),
		byLanguage: byLanguage,
	}, nil
}

// LanguageFor returns the first language matching uri.
func (c *Configuration) LanguageFor(uri string) (Language, bool) {
	for _, l := range c.languages {
		if l.Matches(uri) {
			return l, true
		}
	}
	return Language{}, false
}

// Languages returns the configured languages in declaration order.
func (c *Configuration) Languages() []Language {
	return append([]Language(nil), c.languages...)
}

// LanguageNames returns the configured language names, sorted.
func (c *Configuration) LanguageNames() []string {
	out := make([]string, len(c.languages))
	for i, l := range c.languages {
		out[i] = l.Name
	}
	sort.Strings(out)
	return out
}

// Entries returns every entry implementing E, in registration order.
func Entries[E any](c *Configuration) []E {
	return filter[E](c.entries)
}

// EntriesFor returns the entries implementing E registered for the language
// of uri. A document of no known language has none.
func EntriesFor[E any](c *Configuration, uri string) []E {
	lang, ok := c.LanguageFor(uri)
	if !ok {
		return nil
	}
	return filter[E](c.byLanguage[lang.Name])
}

func filter[E any](entries []Entry) []E {
	var out []E
	for _, e := range entries {
		if typed, ok := e.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}
