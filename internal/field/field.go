// Package field decodes field format words into descriptors and owns
// the fixed-length field content contract.
package field

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/heymumford/go5250/internal/display"
)

// Shift is the 3-bit field classification from the format word.
type Shift int

const (
	ShiftAlpha         Shift = 0
	ShiftNumeric       Shift = 3
	ShiftSignedNumeric Shift = 7
	ShiftRightToLeft   Shift = 4
)

func (s Shift) String() string {
	switch s {
	case ShiftAlpha:
		return "alpha"
	case ShiftNumeric:
		return "numeric"
	case ShiftSignedNumeric:
		return "signed-numeric"
	case ShiftRightToLeft:
		return "right-to-left"
	default:
		return "alpha"
	}
}

// Format word bits.
const (
	shiftMask         byte = 0x07
	rightToLeftBit    byte = 0x04
	mandatoryEnterBit byte = 0x08
	fieldExitBit      byte = 0x40
	autoEnterBit      byte = 0x80
	bypassBit         byte = 0x20
)

var (
	ErrBadField = errors.New("field: field does not fit the screen")
)

// Descriptor is one input field: decoded once at definition time, never
// re-derived from the raw format words on access. Content is a typed
// fixed-width store; what a numeric field actually holds is checked by
// a submission-time collaborator, not here.
type Descriptor struct {
	start  int
	length int
	shift  Shift
	attr   byte

	mandatoryEnter    bool
	autoEnter         bool
	fieldExitRequired bool
	bypass            bool

	mu      sync.Mutex
	content []rune
}

func decodeShift(ffw2 byte) Shift {
	switch bits := ffw2 & shiftMask; {
	case bits == byte(ShiftSignedNumeric):
		return ShiftSignedNumeric
	case bits == byte(ShiftNumeric):
		return ShiftNumeric
	case bits&rightToLeftBit != 0:
		return ShiftRightToLeft
	default:
		return ShiftAlpha
	}
}

func newDescriptor(start, length int, ffw1, ffw2, attr byte) *Descriptor {
	d := &Descriptor{
		start:             start,
		length:            length,
		shift:             decodeShift(ffw2),
		attr:              attr,
		mandatoryEnter:    ffw2&mandatoryEnterBit != 0,
		fieldExitRequired: ffw2&fieldExitBit != 0,
		autoEnter:         ffw2&autoEnterBit != 0,
		bypass:            ffw1&bypassBit != 0,
		content:           make([]rune, length),
	}
	for i := range d.content {
		d.content[i] = ' '
	}
	return d
}

func (d *Descriptor) Start() int  { return d.start }
func (d *Descriptor) Length() int { return d.length }
func (d *Descriptor) Shift() Shift {
	return d.shift
}
func (d *Descriptor) Attr() byte              { return d.attr }
func (d *Descriptor) MandatoryEnter() bool    { return d.mandatoryEnter }
func (d *Descriptor) AutoEnter() bool         { return d.autoEnter }
func (d *Descriptor) FieldExitRequired() bool { return d.fieldExitRequired }
func (d *Descriptor) Bypass() bool            { return d.bypass }

// End is the last position occupied by the field.
func (d *Descriptor) End() int { return d.start + d.length - 1 }

// Contains reports whether pos falls inside the field.
func (d *Descriptor) Contains(pos int) bool {
	return pos >= d.start && pos <= d.End()
}

// SetContent stores text into the fixed-width buffer: longer input is
// right-truncated, shorter input right-padded with spaces. No
// character-level validation happens here, whatever the shift type
// says the field should hold.
func (d *Descriptor) SetContent(text string) {
	runes := []rune(text)
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < d.length; i++ {
		if i < len(runes) {
			d.content[i] = runes[i]
		} else {
			d.content[i] = ' '
		}
	}
}

// Content always returns exactly Length characters, space-padded for a
// never-written field.
func (d *Descriptor) Content() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.content)
}

// Registry tracks the fields defined on one screen.
type Registry struct {
	mu     sync.Mutex
	screen *display.Screen
	fields map[int]*Descriptor
}

func NewRegistry(screen *display.Screen) *Registry {
	return &Registry{
		screen: screen,
		fields: make(map[int]*Descriptor),
	}
}

// Define decodes the two format words into a descriptor. A field
// already defined at the same start position is replaced.
func (r *Registry) Define(start, length int, ffw1, ffw2, attr byte) (*Descriptor, error) {
	if length <= 0 || !r.screen.ValidPos(start) || !r.screen.ValidPos(start+length-1) {
		return nil, fmt.Errorf("%w: start=%d length=%d", ErrBadField, start, length)
	}
	d := newDescriptor(start, length, ffw1, ffw2, attr)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[start] = d
	return d, nil
}

// At returns the field containing pos, if any.
func (r *Registry) At(pos int) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.fields {
		if d.Contains(pos) {
			return d, true
		}
	}
	return nil, false
}

// List returns the fields in screen order.
func (r *Registry) List() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Descriptor, 0, len(r.fields))
	for _, d := range r.fields {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].start < out[j].start
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fields)
}

// Reset drops every field; the host does this on clear-unit.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields = make(map[int]*Descriptor)
}
