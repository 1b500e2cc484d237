// Package codec translates between EBCDIC CCSID 37 (the 5250 default
// code page) and Unicode for screen text and field content.
package codec

import (
	"golang.org/x/text/encoding/charmap"
)

const (
	ebcdicSpace byte = 0x40
	ebcdicNull  byte = 0x00
)

// DecodeChar maps one EBCDIC byte to a rune. Nulls and unmappable
// bytes render as spaces, matching terminal display behavior.
func DecodeChar(b byte) rune {
	if b == ebcdicNull {
		return ' '
	}
	r := charmap.CodePage037.DecodeByte(b)
	if r == '�' {
		return ' '
	}
	return r
}

// EncodeChar maps one rune to its EBCDIC byte; unmappable runes become
// the EBCDIC space.
func EncodeChar(r rune) byte {
	b, ok := charmap.CodePage037.EncodeRune(r)
	if !ok {
		return ebcdicSpace
	}
	return b
}

// DecodeString converts an EBCDIC byte sequence to a string.
func DecodeString(raw []byte) string {
	out := make([]rune, len(raw))
	for i, b := range raw {
		out[i] = DecodeChar(b)
	}
	return string(out)
}

// EncodeString converts a string to EBCDIC bytes, one byte per rune.
func EncodeString(s string) []byte {
	runes := []rune(s)
	out := make([]byte, len(runes))
	for i, r := range runes {
		out[i] = EncodeChar(r)
	}
	return out
}
