package display

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxDepth comfortably covers the deepest nesting seen in
// practice (around ten frames).
const DefaultMaxDepth = 32

var (
	ErrStackFull     = errors.New("display: save stack at maximum depth")
	ErrStackEmpty    = errors.New("display: save stack empty")
	ErrSnapshotShape = errors.New("display: snapshot does not fit screen")
)

// Snapshot is an immutable clone of a screen region: all four planes,
// the cursor, and an error-state tag. It never shares storage with the
// live planes after capture.
type Snapshot struct {
	Tag      int
	ErrState bool

	row      int // -1 for a full-screen capture
	rows     int
	cols     int
	cursor   int
	text     []rune
	attr     []byte
	isAttr   []byte
	extended []byte
}

// Row reports the captured row, or -1 for a full-screen snapshot.
func (sn *Snapshot) Row() int { return sn.row }

// Snapshot clones every plane plus the cursor under the screen lock, so
// no mutation is ever observed mid-capture.
func (s *Screen) Snapshot(tag int, errState bool) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture(-1, 0, s.rows*s.cols, tag, errState)
}

// SnapshotRow clones a single row, typically the reserved error row.
func (s *Screen) SnapshotRow(row, tag int, errState bool) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= s.rows {
		return nil, fmt.Errorf("%w: row %d", ErrBadPosition, row)
	}
	return s.capture(row, row*s.cols, s.cols, tag, errState), nil
}

func (s *Screen) capture(row, start, length, tag int, errState bool) *Snapshot {
	sn := &Snapshot{
		Tag:      tag,
		ErrState: errState,
		row:      row,
		rows:     s.rows,
		cols:     s.cols,
		cursor:   s.cursor,
		text:     make([]rune, length),
		attr:     make([]byte, length),
		isAttr:   make([]byte, length),
		extended: make([]byte, length),
	}
	copy(sn.text, s.text[start:start+length])
	copy(sn.attr, s.attr[start:start+length])
	copy(sn.isAttr, s.isAttr[start:start+length])
	copy(sn.extended, s.extended[start:start+length])
	return sn
}

// Restore writes a snapshot back into the live planes at the region it
// was captured from. Geometry must match the capture.
func (s *Screen) Restore(sn *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sn.rows != s.rows || sn.cols != s.cols {
		return fmt.Errorf("%w: captured %dx%d, live %dx%d",
			ErrSnapshotShape, sn.rows, sn.cols, s.rows, s.cols)
	}
	start := 0
	if sn.row >= 0 {
		start = sn.row * s.cols
	}
	copy(s.text[start:start+len(sn.text)], sn.text)
	copy(s.attr[start:start+len(sn.attr)], sn.attr)
	copy(s.isAttr[start:start+len(sn.isAttr)], sn.isAttr)
	copy(s.extended[start:start+len(sn.extended)], sn.extended)
	if sn.row < 0 {
		s.cursor = sn.cursor
	}
	return nil
}

// SaveStack is a bounded LIFO of snapshots for nested save/restore
// cycles, plus a dedicated single-slot buffer for the error row.
type SaveStack struct {
	mu        sync.Mutex
	frames    []*Snapshot
	maxDepth  int
	errorSlot *Snapshot
}

func NewSaveStack(maxDepth int) *SaveStack {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &SaveStack{maxDepth: maxDepth}
}

// Push appends a snapshot. Beyond the configured depth the push is
// rejected with ErrStackFull; existing frames are never evicted.
func (st *SaveStack) Push(sn *Snapshot) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.frames) >= st.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrStackFull, st.maxDepth)
	}
	st.frames = append(st.frames, sn)
	return nil
}

// Pop removes and returns the most recently pushed snapshot.
func (st *SaveStack) Pop() (*Snapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.frames) == 0 {
		return nil, ErrStackEmpty
	}
	sn := st.frames[len(st.frames)-1]
	st.frames = st.frames[:len(st.frames)-1]
	return sn, nil
}

func (st *SaveStack) Depth() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.frames)
}

// SaveErrorLine clones the reserved error row into the single slot. A
// second save before a restore overwrites the first; that is the
// contract, not an error.
func (st *SaveStack) SaveErrorLine(s *Screen) error {
	sn, err := s.SnapshotRow(s.ErrorRow(), 0, true)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.errorSlot = sn
	return nil
}

// RestoreErrorLine writes the saved error row back and clears the slot.
// With no pending save it is a no-op; it never fails.
func (st *SaveStack) RestoreErrorLine(s *Screen) {
	st.mu.Lock()
	sn := st.errorSlot
	st.errorSlot = nil
	st.mu.Unlock()
	if sn == nil {
		return
	}
	// The row was captured from this screen; a geometry change since
	// the save makes the snapshot stale, and dropping it is correct.
	_ = s.Restore(sn)
}

// ErrorLineSaved reports whether a save is pending in the slot.
func (st *SaveStack) ErrorLineSaved() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.errorSlot != nil
}
