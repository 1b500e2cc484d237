// Package display holds the multi-plane screen model shared by the
// session controller and read-only rendering collaborators.
package display

import (
	"errors"
	"fmt"
	"sync"
)

// Geometry is one of the two supported screen sizes.
type Geometry struct {
	Rows int
	Cols int
}

var (
	Geometry24x80  = Geometry{Rows: 24, Cols: 80}
	Geometry27x132 = Geometry{Rows: 27, Cols: 132}
)

var ErrBadPosition = errors.New("display: position out of range")

// Screen is an addressable grid of cells across four parallel planes:
// text, display attribute, attribute-marker, and field-extended
// overlay. All four planes always have identical length. One mutex
// guards every plane mutation and snapshot capture; updates are
// serialized by the protocol (one record at a time), so finer locking
// buys nothing.
type Screen struct {
	mu       sync.Mutex
	rows     int
	cols     int
	text     []rune
	attr     []byte
	isAttr   []byte
	extended []byte
	cursor   int
	errorRow int
	oia      OIA
}

// OIA exposes the operator information area for this screen.
func (s *Screen) OIA() *OIA { return &s.oia }

func NewScreen(geom Geometry) *Screen {
	s := &Screen{}
	s.resize(geom)
	return s
}

// Resize switches geometry and clears all planes.
func (s *Screen) Resize(geom Geometry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resize(geom)
}

func (s *Screen) resize(geom Geometry) {
	size := geom.Rows * geom.Cols
	s.rows = geom.Rows
	s.cols = geom.Cols
	s.text = make([]rune, size)
	s.attr = make([]byte, size)
	s.isAttr = make([]byte, size)
	s.extended = make([]byte, size)
	for i := range s.text {
		s.text[i] = ' '
	}
	s.cursor = 0
	s.errorRow = geom.Rows - 1
}

func (s *Screen) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

func (s *Screen) Cols() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols
}

func (s *Screen) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows * s.cols
}

// Pos converts row/column coordinates to a linear position.
func (s *Screen) Pos(row, col int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return row*s.cols + col
}

// RowCol converts a linear position back to row/column coordinates.
func (s *Screen) RowCol(pos int) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pos / s.cols, pos % s.cols
}

func (s *Screen) ValidPos(pos int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pos >= 0 && pos < s.rows*s.cols
}

func (s *Screen) checkPos(pos int) error {
	if pos < 0 || pos >= s.rows*s.cols {
		return fmt.Errorf("%w: %d", ErrBadPosition, pos)
	}
	return nil
}

// SetChar writes a character cell and clears its attribute marker.
func (s *Screen) SetChar(pos int, r rune) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return err
	}
	s.text[pos] = r
	s.isAttr[pos] = 0
	return nil
}

// SetAttrPlace marks pos as an attribute cell holding attr. Attribute
// cells display as blanks.
func (s *Screen) SetAttrPlace(pos int, attr byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return err
	}
	s.text[pos] = ' '
	s.attr[pos] = attr
	s.isAttr[pos] = 1
	return nil
}

// SetAttr writes the attribute plane without marking the cell.
func (s *Screen) SetAttr(pos int, attr byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return err
	}
	s.attr[pos] = attr
	return nil
}

func (s *Screen) SetExtended(pos int, code byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return err
	}
	s.extended[pos] = code
	return nil
}

func (s *Screen) CharAt(pos int) (rune, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return 0, err
	}
	return s.text[pos], nil
}

func (s *Screen) AttrAt(pos int) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return 0, err
	}
	return s.attr[pos], nil
}

func (s *Screen) IsAttrPlace(pos int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return false, err
	}
	return s.isAttr[pos] != 0, nil
}

func (s *Screen) ExtendedAt(pos int) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return 0, err
	}
	return s.extended[pos], nil
}

// Clear blanks all planes without changing geometry.
func (s *Screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.text {
		s.text[i] = ' '
		s.attr[i] = 0
		s.isAttr[i] = 0
		s.extended[i] = 0
	}
	s.cursor = 0
}

// Row returns a copy of one row of the text plane.
func (s *Screen) Row(row int) ([]rune, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= s.rows {
		return nil, fmt.Errorf("%w: row %d", ErrBadPosition, row)
	}
	out := make([]rune, s.cols)
	copy(out, s.text[row*s.cols:(row+1)*s.cols])
	return out, nil
}

func (s *Screen) SetCursor(pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPos(pos); err != nil {
		return err
	}
	s.cursor = pos
	return nil
}

func (s *Screen) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// ErrorRow is the reserved row for transient host/client messages.
func (s *Screen) ErrorRow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorRow
}

// SetErrorRow moves the reserved error row; hosts may relocate it.
func (s *Screen) SetErrorRow(row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= s.rows {
		return fmt.Errorf("%w: row %d", ErrBadPosition, row)
	}
	s.errorRow = row
	return nil
}
