// Package keywords is a lexical provider driven entirely by configuration.
// It highlights keywords, comments, strings and numbers, completes keywords
// and describes them on hover.
package keywords

import (
	"context"
	"slices"
	"strings"

	"lsbridge/internal/config"
	"lsbridge/internal/engine"
	"lsbridge/internal/feature"
	"lsbridge/internal/protocol"
	"lsbridge/internal/semtok"
)

var registry = semtok.MustRegistry([]semtok.TokenType{
	semtok.TypeKeyword,
	semtok.TypeComment,
	semtok.TypeString,
	semtok.TypeNumber,
}, nil)

// Provider serves one language.
type Provider struct {
	language string
	syntax   Syntax
	keywords map[string]struct{}
	sorted   []string
	analysis engine.Analysis
}

var (
	_ feature.SemanticTokensProvider = (*Provider)(nil)
	_ feature.CompletionProvider     = (*Provider)(nil)
	_ feature.HoverProvider          = (*Provider)(nil)
)

// New returns a provider for language reading documents through analysis.
func New(language string, syn Syntax, analysis engine.Analysis) *Provider {
	p := &Provider{
		language: language,
		syntax:   syn,
		keywords: make(map[string]struct{}, len(syn.Keywords)),
		analysis: analysis,
	}
	for _, k := range syn.Keywords {
		if _, dup := p.keywords[k]; dup {
			continue
		}
		p.keywords[k] = struct{}{}
		p.sorted = append(p.sorted, k)
	}
	slices.Sort(p.sorted)
	return p
}

// FromConfig builds the languages and providers declared in cfg.
func FromConfig(cfg *config.Config, analysis engine.Analysis) ([]feature.Language, []feature.Entry) {
	langs := make([]feature.Language, 0, len(cfg.Languages))
	entries := make([]feature.Entry, 0, len(cfg.Languages))
	for _, l := range cfg.Languages {
		langs = append(langs, feature.Language{Name: l.Name, Extensions: l.Extensions})
		entries = append(entries, New(l.Name, Syntax{
			Keywords:     l.Keywords,
			LineComment:  l.LineComment,
			BlockComment: l.BlockComment,
			StringQuotes: l.StringQuotes,
		}, analysis))
	}
	return langs, entries
}

// Name implements feature.Entry.
func (p *Provider) Name() string { return "keywords." + p.language }

// Languages implements feature.Entry.
func (p *Provider) Languages() []string { return []string{p.language} }

// Registry implements feature.SemanticTokensProvider.
func (p *Provider) Registry() *semtok.Registry { return registry }

func (p *Provider) withText(ctx context.Context, addr string, fn func(text string)) error {
	return p.analysis.WithAnalysis(ctx, func(_ context.Context, snap engine.Snapshot) error {
		if text, _, ok := snap.Text(addr); ok {
			fn(text)
		}
		return nil
	})
}

func (p *Provider) tokens(text string, keep func(protocol.Range) bool) []semtok.TokenWithRange {
	lexemes := lex(text, p.syntax, p.keywords)
	out := make([]semtok.TokenWithRange, 0, len(lexemes))
	for _, l := range lexemes {
		if keep == nil || keep(l.rng) {
			out = append(out, semtok.New(l.rng, l.typ))
		}
	}
	return out
}

// Full implements feature.SemanticTokensProvider.
func (p *Provider) Full(ctx context.Context, params protocol.SemanticTokensParams) ([]semtok.TokenWithRange, error) {
	var out []semtok.TokenWithRange
	err := p.withText(ctx, params.TextDocument.URI, func(text string) {
		out = p.tokens(text, nil)
	})
	return out, err
}

// Range implements feature.SemanticTokensProvider. Tokens overlapping the
// requested range are returned whole.
func (p *Provider) Range(ctx context.Context, params protocol.SemanticTokensRangeParams) ([]semtok.TokenWithRange, error) {
	var out []semtok.TokenWithRange
	err := p.withText(ctx, params.TextDocument.URI, func(text string) {
		out = p.tokens(text, func(r protocol.Range) bool {
			return r.Start.Less(params.Range.End) && params.Range.Start.Less(r.End)
		})
	})
	return out, err
}

// Completion implements feature.CompletionProvider.
func (p *Provider) Completion(ctx context.Context, params protocol.CompletionParams) (*protocol.CompletionList, error) {
	var list *protocol.CompletionList
	err := p.withText(ctx, params.TextDocument.URI, func(text string) {
		prefix, _ := wordAt(text, params.Position)
		items := make([]protocol.CompletionItem, 0)
		for _, k := range p.sorted {
			if strings.HasPrefix(k, prefix) && k != prefix {
				items = append(items, protocol.CompletionItem{Label: k, Kind: protocol.CompletionKeyword, Detail: p.language + " keyword"})
			}
		}
		list = &protocol.CompletionList{Items: items}
	})
	return list, err
}

// Hover implements feature.HoverProvider.
func (p *Provider) Hover(ctx context.Context, params protocol.HoverParams) (*protocol.Hover, error) {
	var h *protocol.Hover
	err := p.withText(ctx, params.TextDocument.URI, func(text string) {
		_, word := wordAt(text, params.Position)
		if _, ok := p.keywords[word]; !ok {
			return
		}
		h = &protocol.Hover{Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupMarkdown,
			Value: "`" + word + "` is a " + p.language + " keyword",
		}}
	})
	return h, err
}
