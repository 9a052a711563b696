package semtok

import (
	"errors"
	"fmt"
	"sort"

	"fortio.org/safecast"

	"lsbridge/internal/protocol"
)

var (
	// ErrInvalidRange reports a token whose end precedes its start.
	ErrInvalidRange = errors.New("invalid token range")
	// ErrMalformedTokenStream reports encoded data that is not a sequence of
	// five-integer groups.
	ErrMalformedTokenStream = errors.New("malformed semantic token stream")
)

const groupSize = 5

// SplitLines replaces every multi-line token by one fragment per line: the
// first line from the start to LineEnd, full middle lines, and the last line
// from column zero to the end.
func SplitLines(tokens []TokenWithRange) ([]TokenWithRange, error) {
	out := make([]TokenWithRange, 0, len(tokens))
	for _, t := range tokens {
		start, end := t.Range.Start, t.Range.End
		if start.Line < 0 || start.Character < 0 || end.Less(start) {
			return nil, fmt.Errorf("%w: %d:%d-%d:%d", ErrInvalidRange,
				start.Line, start.Character, end.Line, end.Character)
		}
		if start.Line == end.Line {
			out = append(out, t)
			continue
		}
		out = append(out, TokenWithRange{Token: t.Token, Range: protocol.Range{
			Start: start,
			End:   protocol.Position{Line: start.Line, Character: LineEnd},
		}})
		for line := start.Line + 1; line < end.Line; line++ {
			out = append(out, TokenWithRange{Token: t.Token, Range: protocol.Range{
				Start: protocol.Position{Line: line},
				End:   protocol.Position{Line: line, Character: LineEnd},
			}})
		}
		out = append(out, TokenWithRange{Token: t.Token, Range: protocol.Range{
			Start: protocol.Position{Line: end.Line},
			End:   end,
		}})
	}
	return out, nil
}

// Encode converts tokens into the LSP integer stream. Tokens are split per
// line and stably sorted by start position; tokens sharing a start keep
// their input order.
func Encode(tokens []TokenWithRange, reg *Registry) ([]uint32, error) {
	if len(tokens) == 0 {
		return []uint32{}, nil
	}
	lines, err := SplitLines(tokens)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Range.Start.Less(lines[j].Range.Start)
	})

	data := make([]uint32, 0, groupSize*len(lines))
	var prev protocol.Position
	for _, t := range lines {
		start := t.Range.Start
		deltaLine := start.Line - prev.Line
		deltaStart := start.Character
		if deltaLine == 0 {
			deltaStart -= prev.Character
		}
		typ, err := reg.TypeIndex(t.Type)
		if err != nil {
			return nil, err
		}
		mods, err := reg.modifierMask(t.Modifiers)
		if err != nil {
			return nil, err
		}
		group := [groupSize]int{deltaLine, deltaStart, t.Range.End.Character - start.Character, typ, 0}
		for i := 0; i < groupSize-1; i++ {
			v, err := safecast.Conv[uint32](group[i])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
			}
			data = append(data, v)
		}
		data = append(data, mods)
		prev = start
	}
	return data, nil
}

// Decode converts an LSP integer stream back into single-line tokens.
func Decode(data []uint32, reg *Registry) ([]TokenWithRange, error) {
	if len(data)%groupSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedTokenStream, len(data), groupSize)
	}
	out := make([]TokenWithRange, 0, len(data)/groupSize)
	var prev protocol.Position
	for i := 0; i < len(data); i += groupSize {
		var group [groupSize - 1]int
		for j := range group {
			v, err := safecast.Conv[int](data[i+j])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedTokenStream, err)
			}
			group[j] = v
		}
		deltaLine, deltaStart, length, typeIdx := group[0], group[1], group[2], group[3]

		line := prev.Line + deltaLine
		char := deltaStart
		if deltaLine == 0 {
			char += prev.Character
		}
		typ, err := reg.TypeAt(typeIdx)
		if err != nil {
			return nil, err
		}
		mods, err := reg.modifiersOf(data[i+4])
		if err != nil {
			return nil, err
		}
		start := protocol.Position{Line: line, Character: char}
		out = append(out, TokenWithRange{
			Token: Token{Type: typ, Modifiers: mods},
			Range: protocol.Range{Start: start, End: protocol.Position{Line: line, Character: char + length}},
		})
		prev = start
	}
	return out, nil
}
