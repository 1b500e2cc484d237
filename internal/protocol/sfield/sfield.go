// Package sfield parses 5250 structured-field payloads: repeated
// records of a 2-byte big-endian length (counting itself), a class
// byte, a type byte, and a body.
package sfield

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const HeaderLen = 4

// Class byte for workstation structured fields.
const ClassWorkstation byte = 0xD9

// Structured-field types used by the core.
const (
	TypeQuery         byte = 0x70
	TypeDefineAuxUnit byte = 0x71
	Type5250Query     byte = 0x84
)

var (
	ErrShortFieldHeader = errors.New("sfield: short structured-field header")
	ErrShortFieldValue  = errors.New("sfield: short structured-field value")
	ErrBadLength        = errors.New("sfield: structured-field length smaller than header")
)

// Field is one decoded structured field.
type Field struct {
	Class byte
	Type  byte
	Value []byte
}

func Encode(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], uint16(HeaderLen+len(f.Value)))
	buf[2] = f.Class
	buf[3] = f.Type
	copy(buf[4:], f.Value)
	return buf
}

func EncodeAll(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out = append(out, Encode(f)...)
	}
	return out
}

// Decode parses every structured field in payload. The declared length
// of each field counts its own 4-byte header.
func Decode(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, fmt.Errorf("%w: %d bytes at %d", ErrShortFieldHeader, len(payload)-i, i)
		}
		l := int(binary.BigEndian.Uint16(payload[i : i+2]))
		if l < HeaderLen {
			return nil, fmt.Errorf("%w: %d", ErrBadLength, l)
		}
		if l > len(payload)-i {
			return nil, fmt.Errorf("%w: need %d have %d", ErrShortFieldValue, l, len(payload)-i)
		}
		val := make([]byte, l-HeaderLen)
		copy(val, payload[i+HeaderLen:i+l])
		fields = append(fields, Field{Class: payload[i+2], Type: payload[i+3], Value: val})
		i += l
	}
	return fields, nil
}

// Find returns the first field of the given class and type.
func Find(fields []Field, class, typ byte) (Field, bool) {
	for _, f := range fields {
		if f.Class == class && f.Type == typ {
			return f, true
		}
	}
	return Field{}, false
}
