package feature

import (
	"context"
	"fmt"

	"lsbridge/internal/address"
	"lsbridge/internal/aggregate"
	"lsbridge/internal/cache"
	"lsbridge/internal/engine"
	"lsbridge/internal/protocol"
	"lsbridge/internal/semtok"
	"lsbridge/internal/trace"
)

// Options tunes a Service.
type Options struct {
	// Converter translates between external URIs and internal addresses.
	Converter address.Converter
	// Tokens caches encoded semantic tokens. Nil disables caching.
	Tokens *cache.Tokens
	// Text supplies document text for cache keys. Nil disables caching.
	Text engine.TextSource
}

// Service runs the feature requests of one session.
type Service struct {
	cfg      *Configuration
	conv     address.Converter
	registry *semtok.Registry
	tokens   *cache.Tokens
	text     engine.TextSource
}

// NewService builds the session's semantic token legend from every
// registered semantic tokens provider.
func NewService(cfg *Configuration, opts Options) (*Service, error) {
	providers := Entries[SemanticTokensProvider](cfg)
	registries := make([]*semtok.Registry, 0, len(providers))
	for _, p := range providers {
		if reg := p.Registry(); reg != nil {
			registries = append(registries, reg)
		}
	}
	reg, err := semtok.MergeRegistries(registries...)
	if err != nil {
		return nil, fmt.Errorf("semantic token legend: %w", err)
	}
	return &Service{
		cfg:      cfg,
		conv:     opts.Converter,
		registry: reg,
		tokens:   opts.Tokens,
		text:     opts.Text,
	}, nil
}

// Configuration returns the session configuration.
func (s *Service) Configuration() *Configuration { return s.cfg }

// Converter returns the address converter of the session.
func (s *Service) Converter() address.Converter { return s.conv }

// Registry returns the merged semantic token registry.
func (s *Service) Registry() *semtok.Registry { return s.registry }

// Capabilities reports what the registered providers can answer.
func (s *Service) Capabilities() protocol.ServerCapabilities {
	caps := protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    2, // incremental
			Save:      protocol.SaveOptions{IncludeText: false},
		},
		HoverProvider:           len(Entries[HoverProvider](s.cfg)) > 0,
		DefinitionProvider:      len(Entries[DefinitionProvider](s.cfg)) > 0,
		TypeDefinitionProvider:  len(Entries[TypeDefinitionProvider](s.cfg)) > 0,
		ImplementationProvider:  len(Entries[ImplementationProvider](s.cfg)) > 0,
		ReferencesProvider:      len(Entries[ReferencesProvider](s.cfg)) > 0,
		DocumentSymbolProvider:  len(Entries[DocumentSymbolProvider](s.cfg)) > 0,
		WorkspaceSymbolProvider: len(Entries[WorkspaceSymbolProvider](s.cfg)) > 0,
		Workspace: &protocol.WorkspaceServerCapabilities{
			WorkspaceFolders: protocol.WorkspaceFoldersServerCapabilities{Supported: true, ChangeNotifications: true},
		},
	}
	if len(Entries[CompletionProvider](s.cfg)) > 0 {
		caps.CompletionProvider = &protocol.CompletionOptions{}
	}
	if len(Entries[SemanticTokensProvider](s.cfg)) > 0 {
		caps.SemanticTokensProvider = &protocol.SemanticTokensOptions{
			Legend: s.registry.Legend(),
			Range:  true,
			Full:   true,
		}
	}
	if len(Entries[DiagnosticProvider](s.cfg)) > 0 {
		caps.DiagnosticProvider = &protocol.DiagnosticOptions{}
	}
	return caps
}

func (s *Service) toInternal(uri string) (string, error) {
	addr, err := s.conv.ExternalToInternal(uri)
	if err != nil {
		return "", fmt.Errorf("textDocument.uri: %w", err)
	}
	return addr, nil
}

func (s *Service) externalLocation(loc protocol.Location) (protocol.Location, error) {
	uri, err := s.conv.InternalToExternal(loc.URI)
	if err != nil {
		return protocol.Location{}, err
	}
	loc.URI = uri
	return loc, nil
}

func (s *Service) externalSymbol(sym protocol.WorkspaceSymbol) (protocol.WorkspaceSymbol, error) {
	loc, err := s.externalLocation(sym.Location)
	if err != nil {
		return protocol.WorkspaceSymbol{}, err
	}
	sym.Location = loc
	return sym, nil
}

// locations streams the locations of every provider, converted to external URIs.
func locations[P Entry](
	ctx context.Context,
	s *Service,
	token aggregate.Token,
	tr aggregate.Transport,
	span string,
	providers []P,
	get func(P) aggregate.Seq[protocol.Location],
) ([]protocol.Location, error) {
	return aggregate.StreamOrRespond(ctx, token, tr, nil, providers, func(p P) aggregate.Seq[protocol.Location] {
		seq := traceProvider(span, p, get(p))
		if seq == nil {
			return nil
		}
		return aggregate.Map(seq, s.externalLocation)
	})
}

// Definition answers textDocument/definition.
func (s *Service) Definition(ctx context.Context, params protocol.DefinitionParams, tr aggregate.Transport) ([]protocol.Location, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	params.TextDocument.URI = addr
	return locations(ctx, s, params.PartialResultToken, tr, "provider.definition",
		EntriesFor[DefinitionProvider](s.cfg, addr),
		func(p DefinitionProvider) aggregate.Seq[protocol.Location] { return p.Definitions(params) })
}

// TypeDefinition answers textDocument/typeDefinition.
func (s *Service) TypeDefinition(ctx context.Context, params protocol.DefinitionParams, tr aggregate.Transport) ([]protocol.Location, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	params.TextDocument.URI = addr
	return locations(ctx, s, params.PartialResultToken, tr, "provider.typeDefinition",
		EntriesFor[TypeDefinitionProvider](s.cfg, addr),
		func(p TypeDefinitionProvider) aggregate.Seq[protocol.Location] { return p.TypeDefinitions(params) })
}

// Implementation answers textDocument/implementation.
func (s *Service) Implementation(ctx context.Context, params protocol.DefinitionParams, tr aggregate.Transport) ([]protocol.Location, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	params.TextDocument.URI = addr
	return locations(ctx, s, params.PartialResultToken, tr, "provider.implementation",
		EntriesFor[ImplementationProvider](s.cfg, addr),
		func(p ImplementationProvider) aggregate.Seq[protocol.Location] { return p.Implementations(params) })
}

// References answers textDocument/references.
func (s *Service) References(ctx context.Context, params protocol.ReferenceParams, tr aggregate.Transport) ([]protocol.Location, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	params.TextDocument.URI = addr
	return locations(ctx, s, params.PartialResultToken, tr, "provider.references",
		EntriesFor[ReferencesProvider](s.cfg, addr),
		func(p ReferencesProvider) aggregate.Seq[protocol.Location] { return p.References(params) })
}

// DocumentSymbol answers textDocument/documentSymbol.
func (s *Service) DocumentSymbol(ctx context.Context, params protocol.DocumentSymbolParams, tr aggregate.Transport) ([]protocol.DocumentSymbol, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	params.TextDocument.URI = addr
	return aggregate.StreamOrRespond(ctx, params.PartialResultToken, tr, nil,
		EntriesFor[DocumentSymbolProvider](s.cfg, addr),
		func(p DocumentSymbolProvider) aggregate.Seq[protocol.DocumentSymbol] {
			return traceProvider("provider.documentSymbol", p, p.DocumentSymbols(params))
		})
}

// WorkspaceSymbol answers workspace/symbol.
func (s *Service) WorkspaceSymbol(ctx context.Context, params protocol.WorkspaceSymbolParams, tr aggregate.Transport) ([]protocol.WorkspaceSymbol, error) {
	return aggregate.StreamOrRespond(ctx, params.PartialResultToken, tr, nil,
		Entries[WorkspaceSymbolProvider](s.cfg),
		func(p WorkspaceSymbolProvider) aggregate.Seq[protocol.WorkspaceSymbol] {
			seq := traceProvider("provider.workspaceSymbol", p, p.WorkspaceSymbols(params))
			if seq == nil {
				return nil
			}
			return aggregate.Map(seq, s.externalSymbol)
		})
}

// Diagnostic answers textDocument/diagnostic. Partial results for a pull
// diagnostic only cover related documents, so the report is always buffered.
func (s *Service) Diagnostic(ctx context.Context, params protocol.DocumentDiagnosticParams) (protocol.FullDocumentDiagnosticReport, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return protocol.FullDocumentDiagnosticReport{}, err
	}
	params.TextDocument.URI = addr
	items, err := aggregate.Collect(ctx, EntriesFor[DiagnosticProvider](s.cfg, addr),
		func(p DiagnosticProvider) aggregate.Seq[protocol.Diagnostic] {
			return traceProvider("provider.diagnostic", p, p.Diagnostics(params))
		})
	if err != nil {
		return protocol.FullDocumentDiagnosticReport{}, err
	}
	return protocol.FullDocumentDiagnosticReport{Kind: "full", Items: items}, nil
}

// Hover answers textDocument/hover with the first provider that has one.
func (s *Service) Hover(ctx context.Context, params protocol.HoverParams) (*protocol.Hover, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	params.TextDocument.URI = addr
	for i, p := range EntriesFor[HoverProvider](s.cfg, addr) {
		h, err := traceCall(ctx, "provider.hover", p, func(ctx context.Context) (*protocol.Hover, error) {
			return p.Hover(ctx, params)
		})
		if err != nil {
			return nil, &aggregate.ProviderError{Index: i, Provider: p.Name(), Err: err}
		}
		if h != nil {
			return h, nil
		}
	}
	return nil, nil
}

// Completion answers textDocument/completion. The lists of all providers are
// concatenated in provider order; the result is incomplete when any list is.
func (s *Service) Completion(ctx context.Context, params protocol.CompletionParams) (protocol.CompletionList, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return protocol.CompletionList{}, err
	}
	params.TextDocument.URI = addr
	out := protocol.CompletionList{Items: []protocol.CompletionItem{}}
	for i, p := range EntriesFor[CompletionProvider](s.cfg, addr) {
		list, err := traceCall(ctx, "provider.completion", p, func(ctx context.Context) (*protocol.CompletionList, error) {
			return p.Completion(ctx, params)
		})
		if err != nil {
			return protocol.CompletionList{}, &aggregate.ProviderError{Index: i, Provider: p.Name(), Err: err}
		}
		if list == nil {
			continue
		}
		out.IsIncomplete = out.IsIncomplete || list.IsIncomplete
		out.Items = append(out.Items, list.Items...)
	}
	return out, nil
}

// SemanticTokensFull answers textDocument/semanticTokens/full.
func (s *Service) SemanticTokensFull(ctx context.Context, params protocol.SemanticTokensParams) (protocol.SemanticTokens, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return protocol.SemanticTokens{}, err
	}
	params.TextDocument.URI = addr

	key, cacheable := s.tokenKey(addr)
	if cacheable {
		data, hit, err := s.tokens.Get(addr, key)
		if err != nil {
			trace.Error(ctx, "cache.get", err)
		}
		if hit {
			trace.Point(ctx, trace.ScopeProvider, "cache.hit", addr)
			return protocol.SemanticTokens{ResultID: key.String(), Data: data}, nil
		}
	}

	data, err := s.semanticTokens(ctx, func(ctx context.Context, p SemanticTokensProvider) ([]semtok.TokenWithRange, error) {
		return p.Full(ctx, params)
	}, addr)
	if err != nil {
		return protocol.SemanticTokens{}, err
	}
	out := protocol.SemanticTokens{Data: data}
	// The document may have changed while the providers ran.
	if after, ok := s.tokenKey(addr); cacheable && ok && after == key {
		if err := s.tokens.Put(addr, key, data); err != nil {
			trace.Error(ctx, "cache.put", err)
		}
		out.ResultID = key.String()
	}
	return out, nil
}

// SemanticTokensRange answers textDocument/semanticTokens/range.
func (s *Service) SemanticTokensRange(ctx context.Context, params protocol.SemanticTokensRangeParams) (protocol.SemanticTokens, error) {
	addr, err := s.toInternal(params.TextDocument.URI)
	if err != nil {
		return protocol.SemanticTokens{}, err
	}
	params.TextDocument.URI = addr
	data, err := s.semanticTokens(ctx, func(ctx context.Context, p SemanticTokensProvider) ([]semtok.TokenWithRange, error) {
		return p.Range(ctx, params)
	}, addr)
	if err != nil {
		return protocol.SemanticTokens{}, err
	}
	return protocol.SemanticTokens{Data: data}, nil
}

func (s *Service) semanticTokens(
	ctx context.Context,
	get func(context.Context, SemanticTokensProvider) ([]semtok.TokenWithRange, error),
	addr string,
) ([]uint32, error) {
	tokens, err := aggregate.Collect(ctx, EntriesFor[SemanticTokensProvider](s.cfg, addr),
		func(p SemanticTokensProvider) aggregate.Seq[semtok.TokenWithRange] {
			return traceProvider("provider.semanticTokens", p, aggregate.Func(func(ctx context.Context) ([]semtok.TokenWithRange, error) {
				return get(ctx, p)
			}))
		})
	if err != nil {
		return nil, err
	}
	return semtok.Encode(tokens, s.registry)
}

func (s *Service) tokenKey(addr string) (cache.Digest, bool) {
	if s.tokens == nil || s.text == nil {
		return cache.Digest{}, false
	}
	text, _, ok := s.text.Text(addr)
	if !ok {
		return cache.Digest{}, false
	}
	return cache.Key(addr, text, s.registry.Legend()), true
}
