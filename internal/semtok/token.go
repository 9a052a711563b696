// Package semtok encodes semantic tokens into the LSP relative integer stream
// and decodes them back.
//
// Each token occupies five integers: line delta, start delta, length, type
// index and modifier bitmask. Start deltas are relative to the previous
// token's start when both share a line and absolute otherwise. Tokens that
// span several lines are split into one fragment per line before encoding,
// since most editors do not accept multi-line tokens.
package semtok

import (
	"math"

	"lsbridge/internal/protocol"
)

// LineEnd is the character index used for "until the end of the line".
const LineEnd = math.MaxInt32

// TokenType is a semantic token type, predefined or custom.
type TokenType string

// TokenModifier is a semantic token modifier, predefined or custom.
type TokenModifier string

// Token types predefined by LSP 3.17.
const (
	TypeNamespace     TokenType = "namespace"
	TypeType          TokenType = "type"
	TypeClass         TokenType = "class"
	TypeEnum          TokenType = "enum"
	TypeInterface     TokenType = "interface"
	TypeStruct        TokenType = "struct"
	TypeTypeParameter TokenType = "typeParameter"
	TypeParameter     TokenType = "parameter"
	TypeVariable      TokenType = "variable"
	TypeProperty      TokenType = "property"
	TypeEnumMember    TokenType = "enumMember"
	TypeEvent         TokenType = "event"
	TypeFunction      TokenType = "function"
	TypeMethod        TokenType = "method"
	TypeMacro         TokenType = "macro"
	TypeKeyword       TokenType = "keyword"
	TypeModifier      TokenType = "modifier"
	TypeComment       TokenType = "comment"
	TypeString        TokenType = "string"
	TypeNumber        TokenType = "number"
	TypeRegexp        TokenType = "regexp"
	TypeOperator      TokenType = "operator"
	TypeDecorator     TokenType = "decorator"
)

// Token modifiers predefined by LSP 3.17.
const (
	ModDeclaration    TokenModifier = "declaration"
	ModDefinition     TokenModifier = "definition"
	ModReadonly       TokenModifier = "readonly"
	ModStatic         TokenModifier = "static"
	ModDeprecated     TokenModifier = "deprecated"
	ModAbstract       TokenModifier = "abstract"
	ModAsync          TokenModifier = "async"
	ModModification   TokenModifier = "modification"
	ModDocumentation  TokenModifier = "documentation"
	ModDefaultLibrary TokenModifier = "defaultLibrary"
)

// PredefinedTypes lists every predefined token type in protocol order.
var PredefinedTypes = []TokenType{
	TypeNamespace, TypeType, TypeClass, TypeEnum, TypeInterface, TypeStruct,
	TypeTypeParameter, TypeParameter, TypeVariable, TypeProperty, TypeEnumMember,
	TypeEvent, TypeFunction, TypeMethod, TypeMacro, TypeKeyword, TypeModifier,
	TypeComment, TypeString, TypeNumber, TypeRegexp, TypeOperator, TypeDecorator,
}

// PredefinedModifiers lists every predefined token modifier in protocol order.
var PredefinedModifiers = []TokenModifier{
	ModDeclaration, ModDefinition, ModReadonly, ModStatic, ModDeprecated,
	ModAbstract, ModAsync, ModModification, ModDocumentation, ModDefaultLibrary,
}

// Token is a classified piece of source text.
type Token struct {
	Type      TokenType
	Modifiers []TokenModifier
}

// TokenWithRange pairs a token with the range it covers.
type TokenWithRange struct {
	Token
	Range protocol.Range
}

// New builds a token covering r.
func New(r protocol.Range, typ TokenType, mods ...TokenModifier) TokenWithRange {
	if len(mods) == 0 {
		mods = nil
	}
	return TokenWithRange{Token: Token{Type: typ, Modifiers: mods}, Range: r}
}
