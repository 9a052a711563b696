package address

import "strings"

const upperHex = "0123456789ABCDEF"

// escape percent-encodes every byte outside the RFC 3986 unreserved set,
// keeping "/" as the segment separator. net/url leaves sub-delimiters such as
// "@", "+", "," and ":" untouched in paths, which editors encode.
func escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !keep(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		b := s[i]
		if keep(b) {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[b>>4])
		sb.WriteByte(upperHex[b&0x0f])
	}
	return sb.String()
}

func keep(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	switch b {
	case '-', '.', '_', '~', '/':
		return true
	}
	return false
}
