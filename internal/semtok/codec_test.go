package semtok

import (
	"errors"
	"reflect"
	"testing"

	"lsbridge/internal/protocol"
)

const eol = uint32(LineEnd)

func pos(line, char int) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func tok(start, end protocol.Position, typ string, mods ...string) TokenWithRange {
	var ms []TokenModifier
	for _, m := range mods {
		ms = append(ms, TokenModifier(m))
	}
	return New(protocol.Range{Start: start, End: end}, TokenType(typ), ms...)
}

func registry(t *testing.T, types []string, mods []string) *Registry {
	t.Helper()
	ts := make([]TokenType, len(types))
	for i, s := range types {
		ts[i] = TokenType(s)
	}
	ms := make([]TokenModifier, len(mods))
	for i, s := range mods {
		ms[i] = TokenModifier(s)
	}
	r, err := NewRegistry(ts, ms)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func checkEncode(t *testing.T, reg *Registry, tokens []TokenWithRange, want []uint32, wantDecoded []TokenWithRange) {
	t.Helper()
	got, err := Encode(tokens, reg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(got)%5 != 0 {
		t.Fatalf("encoded length %d is not a multiple of 5", len(got))
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Encode = %v, want %v", got, want)
	}
	decoded, err := Decode(got, reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, wantDecoded) {
		t.Fatalf("Decode = %+v, want %+v", decoded, wantDecoded)
	}
}

func TestEncodeSameLine(t *testing.T) {
	reg := registry(t, []string{"a", "b", "c"}, nil)
	tokens := []TokenWithRange{
		tok(pos(0, 0), pos(0, 2), "a"),
		tok(pos(0, 2), pos(0, 3), "c"),
	}
	checkEncode(t, reg, tokens, []uint32{
		0, 0, 2, 0, 0,
		0, 2, 1, 2, 0,
	}, tokens)
}

func TestEncodeModifiers(t *testing.T) {
	reg := registry(t, []string{"a"}, []string{"x", "y", "z"})
	cases := []struct {
		mods []string
		mask uint32
	}{
		{[]string{"x"}, 0b1},
		{[]string{"y"}, 0b10},
		{[]string{"x", "z"}, 0b101},
		{[]string{"x", "y", "z"}, 0b111},
	}
	for _, tc := range cases {
		tokens := []TokenWithRange{tok(pos(0, 0), pos(0, 10), "a", tc.mods...)}
		checkEncode(t, reg, tokens, []uint32{0, 0, 10, 0, tc.mask}, tokens)
	}
}

func TestDecodeModifiersInBitOrder(t *testing.T) {
	reg := registry(t, []string{"a"}, []string{"x", "y", "z"})
	tokens := []TokenWithRange{tok(pos(0, 0), pos(0, 1), "a", "z", "x")}
	data, err := Encode(tokens, reg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data, reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []TokenModifier{"x", "z"}
	if !reflect.DeepEqual(decoded[0].Modifiers, want) {
		t.Fatalf("modifiers = %v, want %v", decoded[0].Modifiers, want)
	}
}

func TestEncodeMultiline(t *testing.T) {
	reg := registry(t, []string{"a"}, nil)
	checkEncode(t, reg,
		[]TokenWithRange{tok(pos(0, 0), pos(1, 10), "a")},
		[]uint32{
			0, 0, eol, 0, 0,
			1, 0, 10, 0, 0,
		},
		[]TokenWithRange{
			tok(pos(0, 0), pos(0, LineEnd), "a"),
			tok(pos(1, 0), pos(1, 10), "a"),
		})
}

func TestEncodeSingleAndMultilineMixed(t *testing.T) {
	reg := registry(t, []string{"a", "b", "c"}, nil)
	checkEncode(t, reg,
		[]TokenWithRange{
			tok(pos(0, 0), pos(0, 10), "a"),
			tok(pos(0, 10), pos(1, 25), "b"),
			tok(pos(1, 27), pos(1, 33), "c"),
		},
		[]uint32{
			0, 0, 10, 0, 0,
			0, 10, eol - 10, 1, 0,
			1, 0, 25, 1, 0,
			0, 27, 6, 2, 0,
		},
		[]TokenWithRange{
			tok(pos(0, 0), pos(0, 10), "a"),
			tok(pos(0, 10), pos(0, LineEnd), "b"),
			tok(pos(1, 0), pos(1, 25), "b"),
			tok(pos(1, 27), pos(1, 33), "c"),
		})
}

func TestEncodeMiddleLines(t *testing.T) {
	reg := registry(t, []string{"comment"}, nil)
	checkEncode(t, reg,
		[]TokenWithRange{tok(pos(2, 4), pos(5, 2), "comment")},
		[]uint32{
			2, 4, eol - 4, 0, 0,
			1, 0, eol, 0, 0,
			1, 0, eol, 0, 0,
			1, 0, 2, 0, 0,
		},
		[]TokenWithRange{
			tok(pos(2, 4), pos(2, LineEnd), "comment"),
			tok(pos(3, 0), pos(3, LineEnd), "comment"),
			tok(pos(4, 0), pos(4, LineEnd), "comment"),
			tok(pos(5, 0), pos(5, 2), "comment"),
		})
}

func TestEncodeSortsUnorderedInput(t *testing.T) {
	reg := registry(t, []string{"a", "b"}, nil)
	checkEncode(t, reg,
		[]TokenWithRange{
			tok(pos(3, 5), pos(3, 7), "b"),
			tok(pos(1, 2), pos(1, 4), "a"),
			tok(pos(3, 1), pos(3, 2), "a"),
		},
		[]uint32{
			1, 2, 2, 0, 0,
			2, 1, 1, 0, 0,
			0, 4, 2, 1, 0,
		},
		[]TokenWithRange{
			tok(pos(1, 2), pos(1, 4), "a"),
			tok(pos(3, 1), pos(3, 2), "a"),
			tok(pos(3, 5), pos(3, 7), "b"),
		})
}

func TestEncodeEqualStartsKeepInputOrder(t *testing.T) {
	reg := registry(t, []string{"a", "b"}, nil)
	tokens := []TokenWithRange{
		tok(pos(0, 0), pos(0, 3), "b"),
		tok(pos(0, 0), pos(0, 1), "a"),
	}
	got, err := Encode(tokens, reg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []uint32{0, 0, 3, 1, 0, 0, 0, 1, 0, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Encode = %v, want %v", got, want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	got, err := Encode(nil, EmptyRegistry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil stream, got %v", got)
	}
	decoded, err := Decode(got, EmptyRegistry)
	if err != nil || len(decoded) != 0 {
		t.Fatalf("Decode(empty) = %v, %v", decoded, err)
	}
}

func TestEncodeErrors(t *testing.T) {
	reg := registry(t, []string{"a"}, []string{"x"})
	if _, err := Encode([]TokenWithRange{tok(pos(0, 0), pos(0, 1), "zzz")}, reg); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("unknown type: expected ErrUnknownToken, got %v", err)
	}
	if _, err := Encode([]TokenWithRange{tok(pos(0, 0), pos(0, 1), "a", "nope")}, reg); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("unknown modifier: expected ErrUnknownToken, got %v", err)
	}
	if _, err := Encode([]TokenWithRange{tok(pos(0, 5), pos(0, 1), "a")}, reg); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("reversed range: expected ErrInvalidRange, got %v", err)
	}
	if _, err := Encode([]TokenWithRange{tok(pos(2, 0), pos(1, 1), "a")}, reg); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("reversed lines: expected ErrInvalidRange, got %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	reg := registry(t, []string{"a"}, []string{"x"})
	if _, err := Decode([]uint32{0, 0, 1, 0}, reg); !errors.Is(err, ErrMalformedTokenStream) {
		t.Fatalf("short stream: expected ErrMalformedTokenStream, got %v", err)
	}
	if _, err := Decode([]uint32{0, 0, 1, 7, 0}, reg); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("bad type index: expected ErrUnknownToken, got %v", err)
	}
	if _, err := Decode([]uint32{0, 0, 1, 0, 0b10}, reg); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("bad modifier bit: expected ErrUnknownToken, got %v", err)
	}
}

func TestRoundTripSingleLineSorted(t *testing.T) {
	reg := MustRegistry(PredefinedTypes, PredefinedModifiers)
	tokens := []TokenWithRange{
		tok(pos(0, 0), pos(0, 7), "keyword"),
		tok(pos(0, 8), pos(0, 12), "class", "declaration", "abstract"),
		tok(pos(2, 4), pos(2, 10), "method", "static"),
		tok(pos(2, 11), pos(2, 11), "operator"),
		tok(pos(9, 0), pos(9, 30), "comment", "documentation"),
	}
	data, err := Encode(tokens, reg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data, reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, tokens) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, tokens)
	}
}
