// Package cache keeps encoded semantic tokens keyed by document content.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"lsbridge/internal/protocol"
)

// Digest identifies one encoding of one document revision.
type Digest [sha256.Size]byte

// Key hashes the internal address, the document text and the legend the
// tokens were encoded against. Each part is length-prefixed so that
// adjacent fields cannot bleed into each other.
func Key(address, text string, legend protocol.SemanticTokensLegend) Digest {
	h := sha256.New()
	writeField(h, address)
	writeField(h, text)
	for _, t := range legend.TokenTypes {
		writeField(h, t)
	}
	writeField(h, "|")
	for _, m := range legend.TokenModifiers {
		writeField(h, m)
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(s))
}

// String returns the hex form used as a semantic tokens resultId.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
