// Package testkit holds invariant checks shared by tests.
package testkit

import (
	"fmt"
	"unicode/utf16"

	"fortio.org/safecast"

	"lsbridge/internal/semtok"
)

// CheckTokenStream runs the invariants every encoded semantic token stream
// must satisfy:
// 1) the stream is a whole number of five-integer groups
// 2) every type index and modifier bit is declared by reg
// 3) tokens are ordered and do not overlap on a line
// 4) with lines set, every token lies inside its line (UTF-16 units)
func CheckTokenStream(data []uint32, reg *semtok.Registry, lines []string) error {
	if reg == nil {
		return fmt.Errorf("nil registry")
	}
	if len(data)%5 != 0 {
		return fmt.Errorf("stream length %d is not a multiple of 5", len(data))
	}
	numTypes, err := safecast.Conv[uint32](len(reg.Types()))
	if err != nil {
		return fmt.Errorf("type count overflow: %w", err)
	}
	numMods := len(reg.Modifiers())
	if numMods > 32 {
		return fmt.Errorf("registry declares %d modifiers, more than a mask holds", numMods)
	}
	var allowed uint32
	if numMods == 32 {
		allowed = ^uint32(0)
	} else {
		allowed = 1<<uint(numMods) - 1
	}

	var line, start, prevEnd uint64
	for i := 0; i < len(data); i += 5 {
		deltaLine, deltaStart, length, typ, mods := data[i], data[i+1], data[i+2], data[i+3], data[i+4]
		if typ >= numTypes {
			return fmt.Errorf("token %d: type index %d outside legend of %d", i/5, typ, numTypes)
		}
		if mods&^allowed != 0 {
			return fmt.Errorf("token %d: modifier mask %b has undeclared bits", i/5, mods)
		}
		if deltaLine > 0 {
			line += uint64(deltaLine)
			start = uint64(deltaStart)
		} else {
			start += uint64(deltaStart)
			if i > 0 && start < prevEnd {
				return fmt.Errorf("token %d: starts at %d inside the previous token ending at %d", i/5, start, prevEnd)
			}
		}
		prevEnd = start + uint64(length)

		if lines == nil {
			continue
		}
		if line >= uint64(len(lines)) {
			return fmt.Errorf("token %d: line %d beyond %d source lines", i/5, line, len(lines))
		}
		width := uint64(len(utf16.Encode([]rune(lines[line]))))
		if prevEnd > width {
			return fmt.Errorf("token %d: ends at %d past line %d of width %d", i/5, prevEnd, line, width)
		}
	}
	return nil
}
