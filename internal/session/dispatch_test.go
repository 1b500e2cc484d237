package session

import (
	"errors"
	"testing"
	"time"

	"github.com/heymumford/go5250/internal/codec"
	"github.com/heymumford/go5250/internal/display"
	"github.com/heymumford/go5250/internal/field"
	"github.com/heymumford/go5250/internal/protocol/sfield"
	"github.com/heymumford/go5250/internal/protocol/stream"
	"github.com/heymumford/go5250/internal/testutil/testlog"
)

func newController(t *testing.T) *Controller {
	t.Helper()
	return New("t", "host:23", &failDialer{}, fastConfig())
}

func wtd(orders ...byte) []byte {
	// escape, write-to-display, two control characters, then orders
	return append([]byte{escByte, CmdWriteToDisplay, 0x00, 0x00}, orders...)
}

func TestApplyWriteToDisplayText(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	payload := wtd(OrderSBA, 2, 5)
	payload = append(payload, codec.EncodeString("HI")...)
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	pos := c.Screen().Pos(1, 4)
	r0, _ := c.Screen().CharAt(pos)
	r1, _ := c.Screen().CharAt(pos + 1)
	if r0 != 'H' || r1 != 'I' {
		t.Fatalf("text got=%q%q", r0, r1)
	}
}

func TestApplyAttributeCell(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	payload := wtd(OrderSBA, 1, 1, 0x22)
	payload = append(payload, codec.EncodeString("A")...)
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	isAttrCell, _ := c.Screen().IsAttrPlace(0)
	a, _ := c.Screen().AttrAt(0)
	r, _ := c.Screen().CharAt(1)
	if !isAttrCell || a != 0x22 || r != 'A' {
		t.Fatalf("attr cell got marker=%v attr=%#x char=%q", isAttrCell, a, r)
	}
}

func TestApplyStartField(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	payload := wtd(
		OrderSBA, 1, 10,
		OrderSF, 0x20, 0x43, 0x24, 0x00, 0x08,
	)
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	attrPos := c.Screen().Pos(0, 9)
	isAttrCell, _ := c.Screen().IsAttrPlace(attrPos)
	if !isAttrCell {
		t.Fatalf("SF must place the attribute at the pen position")
	}
	d, ok := c.Fields().At(attrPos + 1)
	if !ok {
		t.Fatalf("field not registered")
	}
	if d.Start() != attrPos+1 || d.Length() != 8 {
		t.Fatalf("field geometry got start=%d len=%d", d.Start(), d.Length())
	}
	if d.Shift() != field.ShiftNumeric || !d.FieldExitRequired() || !d.Bypass() {
		t.Fatalf("field decode got shift=%v fer=%v bypass=%v",
			d.Shift(), d.FieldExitRequired(), d.Bypass())
	}
}

func TestApplyRepeatToAddress(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	payload := wtd(
		OrderSBA, 1, 1,
		OrderRA, 1, 5, codec.EncodeChar('X'),
	)
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for pos := 0; pos < 5; pos++ {
		r, _ := c.Screen().CharAt(pos)
		if r != 'X' {
			t.Fatalf("pos %d got=%q", pos, r)
		}
	}
	r, _ := c.Screen().CharAt(5)
	if r != ' ' {
		t.Fatalf("repeat must stop at target, pos 5 got=%q", r)
	}
}

func TestApplyRepeatToAddressWrapsThroughScreenEnd(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	// Pen at row 24 col 79, target at row 1 col 3: the fill wraps past
	// the last cell back to the top of the screen.
	payload := wtd(
		OrderSBA, 24, 79,
		OrderRA, 1, 3, codec.EncodeChar('W'),
	)
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, pos := range []int{c.Screen().Pos(23, 78), c.Screen().Pos(23, 79), 0, 1, 2} {
		r, _ := c.Screen().CharAt(pos)
		if r != 'W' {
			t.Fatalf("pos %d got=%q", pos, r)
		}
	}
	r, _ := c.Screen().CharAt(3)
	if r != ' ' {
		t.Fatalf("wrap must stop at target, pos 3 got=%q", r)
	}
}

func TestApplyInsertCursor(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	payload := wtd(OrderIC, 3, 7)
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := c.Screen().Cursor(); got != c.Screen().Pos(2, 6) {
		t.Fatalf("cursor got=%d", got)
	}
}

func TestApplySaveAndRestoreScreenOpcodes(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	if err := c.Screen().SetChar(0, 'S'); err != nil {
		t.Fatalf("set char: %v", err)
	}
	if err := c.apply(stream.EncodeRecord(stream.OpSaveScreen, nil)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if c.Saves().Depth() != 1 {
		t.Fatalf("depth got=%d", c.Saves().Depth())
	}
	if err := c.Screen().SetChar(0, 'T'); err != nil {
		t.Fatalf("set char: %v", err)
	}
	if err := c.apply(stream.EncodeRecord(stream.OpRestoreScreen, nil)); err != nil {
		t.Fatalf("restore: %v", err)
	}
	r, _ := c.Screen().CharAt(0)
	if r != 'S' {
		t.Fatalf("restore got=%q", r)
	}
	// Restore with an empty stack is a record-level failure, not a panic.
	if err := c.apply(stream.EncodeRecord(stream.OpRestoreScreen, nil)); !errors.Is(err, display.ErrStackEmpty) {
		t.Fatalf("expected ErrStackEmpty, got %v", err)
	}
}

func TestApplyWriteErrorCode(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	row := c.Screen().ErrorRow()
	base := c.Screen().Pos(row, 0)
	if err := c.Screen().SetChar(base, 'O'); err != nil {
		t.Fatalf("set char: %v", err)
	}
	payload := append([]byte{escByte, CmdWriteErrorCode}, codec.EncodeString("ERR 42")...)
	if err := c.apply(stream.EncodeRecord(stream.OpOutputOnly, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	r, _ := c.Screen().CharAt(base)
	if r != 'E' {
		t.Fatalf("error row got=%q", r)
	}
	if c.Screen().OIA().InputInhibited() == display.InhibitNone {
		t.Fatalf("error code must inhibit input")
	}
	if !c.Saves().ErrorLineSaved() {
		t.Fatalf("error row must be saved before the overwrite")
	}
	// Reset restores the original row content and clears the inhibit.
	c.Reset()
	r, _ = c.Screen().CharAt(base)
	if r != 'O' {
		t.Fatalf("reset should restore the error row, got=%q", r)
	}
	if c.Screen().OIA().InputInhibited() != display.InhibitNone {
		t.Fatalf("reset should clear the inhibit")
	}
}

func TestApplyClearUnit(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	if _, err := c.Fields().Define(0, 5, 0, 0, 0x20); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := c.Screen().SetChar(10, 'Z'); err != nil {
		t.Fatalf("set char: %v", err)
	}
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, []byte{escByte, CmdClearUnit})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.Fields().Len() != 0 {
		t.Fatalf("clear unit must drop fields")
	}
	r, _ := c.Screen().CharAt(10)
	if r != ' ' {
		t.Fatalf("clear unit must blank the screen, got=%q", r)
	}
}

func TestApplyClearUnitAlternate(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	payload := []byte{escByte, CmdClearUnitAlternate, 0x00}
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.Screen().Rows() != 27 || c.Screen().Cols() != 132 {
		t.Fatalf("geometry got=%dx%d", c.Screen().Rows(), c.Screen().Cols())
	}
}

func TestApplyStructuredField(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	sf := sfield.Encode(sfield.Field{
		Class: sfield.ClassWorkstation,
		Type:  sfield.TypeQuery,
		Value: []byte{0x00},
	})
	payload := append([]byte{escByte, CmdWriteStructuredField}, sf...)
	if err := c.apply(stream.EncodeRecord(stream.OpPutGet, payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestApplyStructuredFieldZeroLengthSegment(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	// A segment declaring length zero must fail the record, not spin
	// the dispatcher in place.
	payload := []byte{escByte, CmdWriteStructuredField, 0x00, 0x00}
	done := make(chan error, 1)
	go func() {
		done <- c.apply(stream.EncodeRecord(stream.OpOutputOnly, payload))
	}()
	select {
	case err := <-done:
		if !errors.Is(err, stream.ErrOutOfRange) {
			t.Fatalf("expected ErrOutOfRange, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("zero-length segment must terminate the record")
	}
}

func TestApplyUnknownCommand(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	err := c.apply(stream.EncodeRecord(stream.OpPutGet, []byte{escByte, 0xEE}))
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestApplyShortRecord(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	if err := c.apply([]byte{0x00, 0x04, 0xAA, 0xBB}); !errors.Is(err, stream.ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestApplyTruncatedRecordFailsOnRead(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	// Declares 64 bytes but carries far fewer; the over-read surfaces
	// as an out-of-range failure, not a parse-time rejection.
	rec := stream.EncodeRecord(stream.OpPutGet, wtd(OrderSBA, 1, 1))
	rec[0] = 0x00
	rec[1] = 0x40
	if err := c.apply(rec); !errors.Is(err, stream.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestApplyMessageLights(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	if err := c.apply(stream.EncodeRecord(stream.OpMessageLightOn, nil)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !c.Screen().OIA().MessageWaiting() {
		t.Fatalf("message light should be on")
	}
	if err := c.apply(stream.EncodeRecord(stream.OpMessageLightOff, nil)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.Screen().OIA().MessageWaiting() {
		t.Fatalf("message light should be off")
	}
}

func TestApplyCancelInviteLocksKeyboard(t *testing.T) {
	testlog.Start(t)
	c := newController(t)
	if err := c.apply(stream.EncodeRecord(stream.OpCancelInvite, nil)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !c.Screen().OIA().KeyboardLocked() {
		t.Fatalf("cancel invite should lock the keyboard")
	}
}
