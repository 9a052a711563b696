package semtok

import (
	"errors"
	"fmt"

	"lsbridge/internal/protocol"
)

// MaxModifiers is the width of the modifier bitmask.
const MaxModifiers = 32

var (
	// ErrDuplicateLegendEntry reports a type or modifier registered twice.
	ErrDuplicateLegendEntry = errors.New("duplicate legend entry")
	// ErrTooManyModifiers reports a legend that does not fit the bitmask.
	ErrTooManyModifiers = errors.New("too many token modifiers")
	// ErrUnknownToken reports a type, modifier or index missing from the legend.
	ErrUnknownToken = errors.New("unknown semantic token")
)

// Registry is an immutable legend mapping token types and modifiers to the
// indices used on the wire.
type Registry struct {
	types     []TokenType
	modifiers []TokenModifier
	typeIdx   map[TokenType]int
	modIdx    map[TokenModifier]int
}

// EmptyRegistry has no types and no modifiers.
var EmptyRegistry = &Registry{
	typeIdx: map[TokenType]int{},
	modIdx:  map[TokenModifier]int{},
}

// NewRegistry builds a legend. Duplicates are rejected.
func NewRegistry(types []TokenType, modifiers []TokenModifier) (*Registry, error) {
	if len(modifiers) > MaxModifiers {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyModifiers, len(modifiers), MaxModifiers)
	}
	r := &Registry{
		types:     append([]TokenType(nil), types...),
		modifiers: append([]TokenModifier(nil), modifiers...),
		typeIdx:   make(map[TokenType]int, len(types)),
		modIdx:    make(map[TokenModifier]int, len(modifiers)),
	}
	for i, t := range types {
		if _, ok := r.typeIdx[t]; ok {
			return nil, fmt.Errorf("%w: type %q", ErrDuplicateLegendEntry, t)
		}
		r.typeIdx[t] = i
	}
	for i, m := range modifiers {
		if _, ok := r.modIdx[m]; ok {
			return nil, fmt.Errorf("%w: modifier %q", ErrDuplicateLegendEntry, m)
		}
		r.modIdx[m] = i
	}
	return r, nil
}

// MustRegistry is NewRegistry for static legends; it panics on error.
func MustRegistry(types []TokenType, modifiers []TokenModifier) *Registry {
	r, err := NewRegistry(types, modifiers)
	if err != nil {
		panic(err)
	}
	return r
}

// MergeRegistries returns the union of several legends, keeping the first
// occurrence of each type and modifier.
func MergeRegistries(regs ...*Registry) (*Registry, error) {
	switch len(regs) {
	case 0:
		return EmptyRegistry, nil
	case 1:
		if regs[0] == nil {
			return EmptyRegistry, nil
		}
		return regs[0], nil
	}
	var types []TokenType
	var mods []TokenModifier
	seenTypes := make(map[TokenType]struct{})
	seenMods := make(map[TokenModifier]struct{})
	for _, r := range regs {
		if r == nil {
			continue
		}
		for _, t := range r.types {
			if _, ok := seenTypes[t]; !ok {
				seenTypes[t] = struct{}{}
				types = append(types, t)
			}
		}
		for _, m := range r.modifiers {
			if _, ok := seenMods[m]; !ok {
				seenMods[m] = struct{}{}
				mods = append(mods, m)
			}
		}
	}
	return NewRegistry(types, mods)
}

// Types returns the registered types in index order.
func (r *Registry) Types() []TokenType {
	return append([]TokenType(nil), r.types...)
}

// Modifiers returns the registered modifiers in bit order.
func (r *Registry) Modifiers() []TokenModifier {
	return append([]TokenModifier(nil), r.modifiers...)
}

// TypeIndex returns the wire index of t.
func (r *Registry) TypeIndex(t TokenType) (int, error) {
	i, ok := r.typeIdx[t]
	if !ok {
		return 0, fmt.Errorf("%w: type %q", ErrUnknownToken, t)
	}
	return i, nil
}

// TypeAt returns the type registered at index i.
func (r *Registry) TypeAt(i int) (TokenType, error) {
	if i < 0 || i >= len(r.types) {
		return "", fmt.Errorf("%w: type index %d", ErrUnknownToken, i)
	}
	return r.types[i], nil
}

// ModifierIndex returns the bit position of m.
func (r *Registry) ModifierIndex(m TokenModifier) (int, error) {
	i, ok := r.modIdx[m]
	if !ok {
		return 0, fmt.Errorf("%w: modifier %q", ErrUnknownToken, m)
	}
	return i, nil
}

// ModifierAt returns the modifier registered at bit i.
func (r *Registry) ModifierAt(i int) (TokenModifier, error) {
	if i < 0 || i >= len(r.modifiers) {
		return "", fmt.Errorf("%w: modifier index %d", ErrUnknownToken, i)
	}
	return r.modifiers[i], nil
}

// Legend returns the wire form of the registry.
func (r *Registry) Legend() protocol.SemanticTokensLegend {
	legend := protocol.SemanticTokensLegend{
		TokenTypes:     make([]string, len(r.types)),
		TokenModifiers: make([]string, len(r.modifiers)),
	}
	for i, t := range r.types {
		legend.TokenTypes[i] = string(t)
	}
	for i, m := range r.modifiers {
		legend.TokenModifiers[i] = string(m)
	}
	return legend
}

func (r *Registry) modifierMask(mods []TokenModifier) (uint32, error) {
	var mask uint32
	for _, m := range mods {
		i, err := r.ModifierIndex(m)
		if err != nil {
			return 0, err
		}
		mask |= 1 << i
	}
	return mask, nil
}

// modifiersOf expands a bitmask in increasing bit order.
func (r *Registry) modifiersOf(mask uint32) ([]TokenModifier, error) {
	if mask == 0 {
		return nil, nil
	}
	var out []TokenModifier
	for i := 0; mask != 0; i++ {
		if mask&1 == 1 {
			m, err := r.ModifierAt(i)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		mask >>= 1
	}
	return out, nil
}
