package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"lsbridge/internal/protocol"
	"lsbridge/internal/semtok"
)

// Syntax is the lexical description of one language.
type Syntax struct {
	Keywords     []string
	LineComment  string
	BlockComment [2]string
	StringQuotes []string
}

type lexeme struct {
	typ semtok.TokenType
	rng protocol.Range
}

// scanner walks text keeping an LSP position (UTF-16 columns) in step with
// the byte offset.
type scanner struct {
	text string
	i    int
	pos  protocol.Position
}

func (s *scanner) done() bool { return s.i >= len(s.text) }

func (s *scanner) hasPrefix(p string) bool {
	return p != "" && strings.HasPrefix(s.text[s.i:], p)
}

func (s *scanner) next() rune {
	r, size := utf8.DecodeRuneInString(s.text[s.i:])
	s.i += size
	switch {
	case r == '\n':
		s.pos.Line++
		s.pos.Character = 0
	case r > 0xFFFF:
		s.pos.Character += 2
	default:
		s.pos.Character++
	}
	return r
}

func (s *scanner) skip(n int) {
	end := min(s.i+n, len(s.text))
	for s.i < end {
		s.next()
	}
}

func (s *scanner) peek() rune {
	r, _ := utf8.DecodeRuneInString(s.text[s.i:])
	return r
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return isIdentStart(r) || unicode.IsDigit(r) }

// lex splits text into keyword, comment, string and number lexemes.
// Block comments may span several lines; strings end at the line end when
// unterminated.
func lex(text string, syn Syntax, keywords map[string]struct{}) []lexeme {
	s := &scanner{text: text}
	var out []lexeme
	emit := func(typ semtok.TokenType, start protocol.Position) {
		out = append(out, lexeme{typ: typ, rng: protocol.Range{Start: start, End: s.pos}})
	}
	for !s.done() {
		start := s.pos
		switch {
		case s.hasPrefix(syn.LineComment):
			for !s.done() && s.peek() != '\n' {
				s.next()
			}
			emit(semtok.TypeComment, start)
		case s.hasPrefix(syn.BlockComment[0]) && syn.BlockComment[1] != "":
			s.skip(len(syn.BlockComment[0]))
			for !s.done() && !s.hasPrefix(syn.BlockComment[1]) {
				s.next()
			}
			s.skip(len(syn.BlockComment[1]))
			emit(semtok.TypeComment, start)
		case s.quote(syn.StringQuotes) != "":
			q := s.quote(syn.StringQuotes)
			s.skip(len(q))
			for !s.done() && s.peek() != '\n' {
				if s.hasPrefix(q) {
					s.skip(len(q))
					break
				}
				if s.next() == '\\' && !s.done() && s.peek() != '\n' {
					s.next()
				}
			}
			emit(semtok.TypeString, start)
		default:
			r := s.peek()
			switch {
			case unicode.IsDigit(r):
				for !s.done() && (isIdentPart(s.peek()) || s.peek() == '.') {
					s.next()
				}
				emit(semtok.TypeNumber, start)
			case isIdentStart(r):
				from := s.i
				for !s.done() && isIdentPart(s.peek()) {
					s.next()
				}
				if _, ok := keywords[s.text[from:s.i]]; ok {
					emit(semtok.TypeKeyword, start)
				}
			default:
				s.next()
			}
		}
	}
	return out
}

func (s *scanner) quote(quotes []string) string {
	for _, q := range quotes {
		if s.hasPrefix(q) {
			return q
		}
	}
	return ""
}

// wordAt returns the identifier that ends at pos and the one that contains it.
func wordAt(text string, pos protocol.Position) (prefix, word string) {
	lineStart := 0
	for line := 0; line < pos.Line; line++ {
		nl := strings.IndexByte(text[lineStart:], '\n')
		if nl < 0 {
			return "", ""
		}
		lineStart += nl + 1
	}
	line := text[lineStart:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	cursor, units := 0, 0
	for cursor < len(line) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(line[cursor:])
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		cursor += size
	}
	from := cursor
	for from > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:from])
		if !isIdentPart(r) {
			break
		}
		from -= size
	}
	to := cursor
	for to < len(line) {
		r, size := utf8.DecodeRuneInString(line[to:])
		if !isIdentPart(r) {
			break
		}
		to += size
	}
	return line[from:cursor], line[from:to]
}
