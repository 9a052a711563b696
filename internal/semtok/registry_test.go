package semtok

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestRegistryLookups(t *testing.T) {
	reg := MustRegistry([]TokenType{TypeKeyword, TypeString}, []TokenModifier{ModStatic, ModReadonly})
	if i, err := reg.TypeIndex(TypeString); err != nil || i != 1 {
		t.Fatalf("TypeIndex(string) = %d, %v", i, err)
	}
	if typ, err := reg.TypeAt(0); err != nil || typ != TypeKeyword {
		t.Fatalf("TypeAt(0) = %q, %v", typ, err)
	}
	if i, err := reg.ModifierIndex(ModReadonly); err != nil || i != 1 {
		t.Fatalf("ModifierIndex(readonly) = %d, %v", i, err)
	}
	if m, err := reg.ModifierAt(0); err != nil || m != ModStatic {
		t.Fatalf("ModifierAt(0) = %q, %v", m, err)
	}
	if _, err := reg.TypeIndex(TypeClass); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if _, err := reg.TypeAt(5); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if _, err := reg.ModifierAt(-1); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}

	legend := reg.Legend()
	if !reflect.DeepEqual(legend.TokenTypes, []string{"keyword", "string"}) {
		t.Fatalf("legend types = %v", legend.TokenTypes)
	}
	if !reflect.DeepEqual(legend.TokenModifiers, []string{"static", "readonly"}) {
		t.Fatalf("legend modifiers = %v", legend.TokenModifiers)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry([]TokenType{"a", "a"}, nil); !errors.Is(err, ErrDuplicateLegendEntry) {
		t.Fatalf("duplicate type: expected ErrDuplicateLegendEntry, got %v", err)
	}
	if _, err := NewRegistry(nil, []TokenModifier{"x", "y", "x"}); !errors.Is(err, ErrDuplicateLegendEntry) {
		t.Fatalf("duplicate modifier: expected ErrDuplicateLegendEntry, got %v", err)
	}
}

func TestRegistryRejectsTooManyModifiers(t *testing.T) {
	mods := make([]TokenModifier, MaxModifiers+1)
	for i := range mods {
		mods[i] = TokenModifier(fmt.Sprintf("m%d", i))
	}
	if _, err := NewRegistry(nil, mods); !errors.Is(err, ErrTooManyModifiers) {
		t.Fatalf("expected ErrTooManyModifiers, got %v", err)
	}
	if _, err := NewRegistry(nil, mods[:MaxModifiers]); err != nil {
		t.Fatalf("%d modifiers should fit: %v", MaxModifiers, err)
	}
}

func TestMergeRegistries(t *testing.T) {
	a := MustRegistry([]TokenType{TypeKeyword, TypeString}, []TokenModifier{ModStatic})
	b := MustRegistry([]TokenType{TypeString, TypeComment}, []TokenModifier{ModDeprecated, ModStatic})

	merged, err := MergeRegistries(a, b)
	if err != nil {
		t.Fatalf("MergeRegistries: %v", err)
	}
	if !reflect.DeepEqual(merged.Types(), []TokenType{TypeKeyword, TypeString, TypeComment}) {
		t.Fatalf("merged types = %v", merged.Types())
	}
	if !reflect.DeepEqual(merged.Modifiers(), []TokenModifier{ModStatic, ModDeprecated}) {
		t.Fatalf("merged modifiers = %v", merged.Modifiers())
	}

	empty, err := MergeRegistries()
	if err != nil || empty != EmptyRegistry {
		t.Fatalf("MergeRegistries() = %v, %v", empty, err)
	}
	single, err := MergeRegistries(a)
	if err != nil || single != a {
		t.Fatalf("MergeRegistries(a) should return a, got %v, %v", single, err)
	}
}
