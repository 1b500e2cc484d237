package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// A 5250 record envelope is at least 10 bytes: 2-byte declared length,
// 4 reserved bytes, header-length byte, 2 reserved bytes, opcode.
const (
	MinRecordLen    = 10
	OpCodeOffset    = 9
	headerLenOffset = 6
)

// Record-boundary marker appended between successive records on the
// wire. It is a stream-synchronization aid only; record boundaries are
// determined by the declared length, never by scanning for these bytes.
const (
	MarkerByte0 byte = 0xFF
	MarkerByte1 byte = 0xEF
)

// Work-station opcodes carried at OpCodeOffset.
const (
	OpNoOp            byte = 0x00
	OpInviteOperation byte = 0x01
	OpOutputOnly      byte = 0x02
	OpPutGet          byte = 0x03
	OpSaveScreen      byte = 0x04
	OpRestoreScreen   byte = 0x05
	OpReadImmediate   byte = 0x06
	OpReadScreen      byte = 0x08
	OpCancelInvite    byte = 0x0A
	OpMessageLightOn  byte = 0x0B
	OpMessageLightOff byte = 0x0C
)

var (
	ErrShortBuffer = errors.New("stream: buffer shorter than minimum record envelope")
	ErrNoBuffer    = errors.New("stream: no buffer attached")
	ErrOutOfRange  = errors.New("stream: buffer index out of range")
)

// Framer walks one 5250 record. The declared length is stored verbatim
// even when it exceeds the physical buffer; truncation surfaces on the
// read that actually crosses the end, not at parse time, so a short
// first fragment of a larger record is not rejected up front.
type Framer struct {
	buf       []byte
	declared  int
	opcode    byte
	dataStart int
	pos       int
}

// New parses the record envelope in buf and positions the cursor at the
// start of payload data.
func New(buf []byte) (*Framer, error) {
	f := &Framer{}
	if err := f.Initialize(buf); err != nil {
		return nil, err
	}
	return f, nil
}

// Initialize attaches buf and re-reads the envelope. The buffer must
// hold at least the fixed envelope through the opcode byte.
func (f *Framer) Initialize(buf []byte) error {
	if len(buf) < MinRecordLen {
		return fmt.Errorf("%w: %d bytes", ErrShortBuffer, len(buf))
	}
	f.buf = buf
	f.declared = int(binary.BigEndian.Uint16(buf[0:2]))
	f.opcode = buf[OpCodeOffset]
	// Header-length byte only moves the payload start; the opcode
	// offset is fixed and independent of it.
	f.dataStart = headerLenOffset + int(buf[headerLenOffset])
	f.pos = f.dataStart
	return nil
}

// Length reports the declared record length, which may exceed the
// number of bytes physically present.
func (f *Framer) Length() int { return f.declared }

func (f *Framer) OpCode() byte { return f.opcode }

func (f *Framer) DataStart() int { return f.dataStart }

func (f *Framer) Pos() int { return f.pos }

// SetPos moves the cursor to an absolute offset. The offset is not
// bounds-checked here; the next read reports any overrun.
func (f *Framer) SetPos(pos int) { f.pos = pos }

// HasNext reports whether the cursor is still inside the declared
// length. It stays true for a truncated record; the subsequent NextByte
// fails independently.
func (f *Framer) HasNext() bool { return f.pos < f.declared }

// NextByte returns the byte under the cursor and advances by one.
func (f *Framer) NextByte() (byte, error) {
	if f.buf == nil {
		return 0, ErrNoBuffer
	}
	if f.pos < 0 || f.pos >= len(f.buf) {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, f.pos)
	}
	b := f.buf[f.pos]
	f.pos++
	return b, nil
}

// PrevByte steps the cursor back one byte.
func (f *Framer) PrevByte() error {
	if f.pos == 0 {
		return fmt.Errorf("%w: cursor at zero", ErrOutOfRange)
	}
	f.pos--
	return nil
}

// ByteAt returns the byte at cursor+off without moving the cursor.
// Negative resulting indexes are rejected explicitly; a negative offset
// probe must never wrap into a read.
func (f *Framer) ByteAt(off int) (byte, error) {
	if f.buf == nil {
		return 0, ErrNoBuffer
	}
	index := f.pos + off
	if index < 0 || index >= len(f.buf) {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	return f.buf[index], nil
}

// EncodeRecord builds an outbound record: declared length covering the
// whole envelope plus payload, a standard 4-byte variable header, and
// the opcode at its fixed offset. The record-boundary marker is not
// included; the writer appends it between records.
func EncodeRecord(opcode byte, payload []byte) []byte {
	buf := make([]byte, MinRecordLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(buf)))
	buf[headerLenOffset] = MinRecordLen - headerLenOffset
	buf[OpCodeOffset] = opcode
	copy(buf[MinRecordLen:], payload)
	return buf
}

// Segment copies the length-prefixed segment under the cursor and
// advances past it. The 2-byte big-endian prefix counts itself, per the
// structured-field convention.
func (f *Framer) Segment() ([]byte, error) {
	if f.buf == nil {
		return nil, ErrNoBuffer
	}
	if f.pos < 0 || f.pos+1 >= len(f.buf) {
		return nil, fmt.Errorf("%w: segment length at %d", ErrOutOfRange, f.pos)
	}
	length := int(binary.BigEndian.Uint16(f.buf[f.pos : f.pos+2]))
	// The prefix counts itself; anything below 2 cannot advance the
	// cursor and would wedge a caller iterating segment by segment.
	if length < 2 {
		return nil, fmt.Errorf("%w: segment length %d below its own prefix", ErrOutOfRange, length)
	}
	if f.pos+length > len(f.buf) {
		return nil, fmt.Errorf("%w: segment of %d bytes at %d", ErrOutOfRange, length, f.pos)
	}
	segment := make([]byte, length)
	copy(segment, f.buf[f.pos:f.pos+length])
	f.pos += length
	return segment, nil
}
