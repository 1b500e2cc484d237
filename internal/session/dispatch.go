package session

import (
	"errors"
	"fmt"

	"github.com/heymumford/go5250/internal/codec"
	"github.com/heymumford/go5250/internal/display"
	"github.com/heymumford/go5250/internal/observability"
	"github.com/heymumford/go5250/internal/protocol/sfield"
	"github.com/heymumford/go5250/internal/protocol/stream"
)

// ErrParse marks a payload inconsistent with its declared structure.
var ErrParse = errors.New("session: payload inconsistent with declared structure")

// Workstation commands, each preceded by the escape byte.
const (
	escByte byte = 0x04

	CmdSaveScreen           byte = 0x02
	CmdWriteToDisplay       byte = 0x11
	CmdRestoreScreen        byte = 0x12
	CmdClearUnitAlternate   byte = 0x20
	CmdWriteErrorCode       byte = 0x21
	CmdClearUnit            byte = 0x40
	CmdReadInputFields      byte = 0x42
	CmdClearFormatTable     byte = 0x50
	CmdReadMDTFields        byte = 0x52
	CmdReadScreen           byte = 0x62
	CmdWriteStructuredField byte = 0xF3
)

// Write-to-display orders.
const (
	OrderSOH byte = 0x01
	OrderRA  byte = 0x02
	OrderEA  byte = 0x03
	OrderTD  byte = 0x10
	OrderSBA byte = 0x11
	OrderIC  byte = 0x13
	OrderMC  byte = 0x14
	OrderSF  byte = 0x1D
)

func isAttr(b byte) bool { return b >= 0x20 && b <= 0x3F }

// apply interprets one record. Any failure here is fatal for this
// record only; the caller discards it and resynchronizes on the next
// declared-length boundary.
func (c *Controller) apply(rec []byte) error {
	c.mu.Lock()
	fr := c.framer
	if fr == nil {
		fr = &stream.Framer{}
		c.framer = fr
	}
	c.mu.Unlock()

	if err := fr.Initialize(rec); err != nil {
		return err
	}
	observability.RecordFrameRead(c.name, fmt.Sprintf("0x%02x", fr.OpCode()), len(rec))

	switch fr.OpCode() {
	case stream.OpNoOp:
		return nil
	case stream.OpSaveScreen:
		return c.saves.Push(c.screen.Snapshot(c.saves.Depth(), c.errState()))
	case stream.OpRestoreScreen:
		sn, err := c.saves.Pop()
		if err != nil {
			return err
		}
		return c.screen.Restore(sn)
	case stream.OpMessageLightOn:
		c.screen.OIA().SetMessageWaiting(true)
		return nil
	case stream.OpMessageLightOff:
		c.screen.OIA().SetMessageWaiting(false)
		return nil
	case stream.OpCancelInvite:
		c.screen.OIA().SetKeyboardLocked(true)
		return nil
	case stream.OpInviteOperation:
		if err := c.processCommands(fr); err != nil {
			return err
		}
		c.screen.OIA().SetInputInhibited(display.InhibitNone)
		c.flushTypeahead()
		return nil
	default:
		return c.processCommands(fr)
	}
}

func (c *Controller) errState() bool {
	return c.screen.OIA().InputInhibited() != display.InhibitNone
}

func (c *Controller) processCommands(fr *stream.Framer) error {
	for fr.HasNext() {
		b, err := fr.NextByte()
		if err != nil {
			return err
		}
		if b != escByte {
			return fmt.Errorf("%w: expected command escape, got %#x", ErrParse, b)
		}
		cmd, err := fr.NextByte()
		if err != nil {
			return err
		}
		switch cmd {
		case CmdClearUnit:
			c.screen.Resize(display.Geometry24x80)
			c.fields.Reset()
		case CmdClearUnitAlternate:
			// Parameter byte selects the alternate size; only 27x132 is
			// defined here.
			if _, err := fr.NextByte(); err != nil {
				return err
			}
			c.screen.Resize(display.Geometry27x132)
			c.fields.Reset()
		case CmdClearFormatTable:
			c.fields.Reset()
		case CmdWriteToDisplay:
			if err := c.writeToDisplay(fr); err != nil {
				return err
			}
		case CmdWriteErrorCode:
			if err := c.writeErrorCode(fr); err != nil {
				return err
			}
		case CmdSaveScreen:
			if err := c.saves.Push(c.screen.Snapshot(c.saves.Depth(), c.errState())); err != nil {
				return err
			}
		case CmdRestoreScreen:
			sn, err := c.saves.Pop()
			if err != nil {
				return err
			}
			if err := c.screen.Restore(sn); err != nil {
				return err
			}
		case CmdWriteStructuredField:
			if err := c.writeStructuredField(fr); err != nil {
				return err
			}
		case CmdReadInputFields, CmdReadMDTFields, CmdReadScreen:
			// Two control characters, then the line is ours.
			for i := 0; i < 2 && fr.HasNext(); i++ {
				if _, err := fr.NextByte(); err != nil {
					return err
				}
			}
			c.screen.OIA().SetInputInhibited(display.InhibitNone)
			c.flushTypeahead()
		default:
			return fmt.Errorf("%w: unknown command %#x", ErrParse, cmd)
		}
	}
	return nil
}

// fillToAddress writes r from pen through target inclusive. A target
// before the pen wraps through end-of-screen, matching repeat-to-address
// on real terminals.
func (c *Controller) fillToAddress(pen, target int, r rune) error {
	size := c.screen.Size()
	for p := pen; ; {
		if err := c.screen.SetChar(p, r); err != nil {
			return err
		}
		if p == target {
			return nil
		}
		p++
		if p >= size {
			p = 0
		}
	}
}

// readAddr consumes a 1-based row/column pair and returns the linear
// position.
func (c *Controller) readAddr(fr *stream.Framer) (int, error) {
	row, err := fr.NextByte()
	if err != nil {
		return 0, err
	}
	col, err := fr.NextByte()
	if err != nil {
		return 0, err
	}
	pos := (int(row)-1)*c.screen.Cols() + int(col) - 1
	if !c.screen.ValidPos(pos) {
		return 0, fmt.Errorf("%w: address %d,%d", ErrParse, row, col)
	}
	return pos, nil
}

func (c *Controller) writeToDisplay(fr *stream.Framer) error {
	// Two control characters lead the order stream.
	for i := 0; i < 2; i++ {
		if _, err := fr.NextByte(); err != nil {
			return err
		}
	}
	pen := c.screen.Cursor()
	size := c.screen.Size()
	advance := func() {
		pen++
		if pen >= size {
			pen = 0
		}
	}
	for fr.HasNext() {
		b, err := fr.ByteAt(0)
		if err != nil {
			return err
		}
		if b == escByte {
			// Next command; hand control back without consuming.
			return nil
		}
		if _, err := fr.NextByte(); err != nil {
			return err
		}
		switch {
		case b == OrderSBA:
			pos, err := c.readAddr(fr)
			if err != nil {
				return err
			}
			pen = pos
		case b == OrderIC, b == OrderMC:
			pos, err := c.readAddr(fr)
			if err != nil {
				return err
			}
			if err := c.screen.SetCursor(pos); err != nil {
				return err
			}
		case b == OrderSOH:
			if err := c.startOfHeader(fr); err != nil {
				return err
			}
		case b == OrderSF:
			next, err := c.startField(fr, pen)
			if err != nil {
				return err
			}
			pen = next
		case b == OrderRA:
			target, err := c.readAddr(fr)
			if err != nil {
				return err
			}
			fill, err := fr.NextByte()
			if err != nil {
				return err
			}
			r := codec.DecodeChar(fill)
			if err := c.fillToAddress(pen, target, r); err != nil {
				return err
			}
			pen = target
			advance()
		case b == OrderEA:
			target, err := c.readAddr(fr)
			if err != nil {
				return err
			}
			if err := c.fillToAddress(pen, target, ' '); err != nil {
				return err
			}
			pen = target
			advance()
		case b == OrderTD:
			seg, err := fr.Segment()
			if err != nil {
				return err
			}
			if len(seg) < 2 {
				return fmt.Errorf("%w: transparent data of %d bytes", ErrParse, len(seg))
			}
			// Transparent data: the two length bytes, then raw cells.
			for _, raw := range seg[2:] {
				if err := c.screen.SetChar(pen, codec.DecodeChar(raw)); err != nil {
					return err
				}
				advance()
			}
		case isAttr(b):
			if err := c.screen.SetAttrPlace(pen, b); err != nil {
				return err
			}
			advance()
		case b >= 0x40 || b == 0x00:
			if err := c.screen.SetChar(pen, codec.DecodeChar(b)); err != nil {
				return err
			}
			advance()
		default:
			return fmt.Errorf("%w: unknown order %#x", ErrParse, b)
		}
	}
	return nil
}

// startOfHeader consumes an SOH order: a length byte and that many
// bytes of operator-panel setup. Byte 3, when present, relocates the
// error row (1-based).
func (c *Controller) startOfHeader(fr *stream.Framer) error {
	l, err := fr.NextByte()
	if err != nil {
		return err
	}
	body := make([]byte, int(l))
	for i := range body {
		body[i], err = fr.NextByte()
		if err != nil {
			return err
		}
	}
	if len(body) >= 4 && body[3] > 0 {
		row := int(body[3]) - 1
		if row < c.screen.Rows() {
			if err := c.screen.SetErrorRow(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// startField decodes an SF order: two field format words, the display
// attribute, and a 2-byte length. The attribute occupies the pen cell;
// the field content starts one past it.
func (c *Controller) startField(fr *stream.Framer, pen int) (int, error) {
	ffw1, err := fr.NextByte()
	if err != nil {
		return 0, err
	}
	ffw2, err := fr.NextByte()
	if err != nil {
		return 0, err
	}
	attr, err := fr.NextByte()
	if err != nil {
		return 0, err
	}
	hi, err := fr.NextByte()
	if err != nil {
		return 0, err
	}
	lo, err := fr.NextByte()
	if err != nil {
		return 0, err
	}
	length := int(hi)<<8 | int(lo)
	if err := c.screen.SetAttrPlace(pen, attr); err != nil {
		return 0, err
	}
	start := pen + 1
	if _, err := c.fields.Define(start, length, ffw1, ffw2, attr); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return start, nil
}

// writeErrorCode saves the reserved error row, writes the message onto
// it, and inhibits input until the operator or host resets.
func (c *Controller) writeErrorCode(fr *stream.Framer) error {
	if err := c.saves.SaveErrorLine(c.screen); err != nil {
		return err
	}
	row := c.screen.ErrorRow()
	pos := row * c.screen.Cols()
	for fr.HasNext() {
		b, err := fr.ByteAt(0)
		if err != nil {
			return err
		}
		if b == escByte {
			break
		}
		if _, err := fr.NextByte(); err != nil {
			return err
		}
		if err := c.screen.SetChar(pos, codec.DecodeChar(b)); err != nil {
			return err
		}
		pos++
	}
	c.screen.OIA().SetInputInhibited(display.InhibitOther)
	return nil
}

// writeStructuredField walks the WSF segments. Query requests are
// acknowledged in the log; replies belong to the device-capability
// collaborator, not the core.
func (c *Controller) writeStructuredField(fr *stream.Framer) error {
	for fr.HasNext() {
		b, err := fr.ByteAt(0)
		if err != nil {
			return err
		}
		if b == escByte {
			return nil
		}
		seg, err := fr.Segment()
		if err != nil {
			return err
		}
		fields, err := sfield.Decode(seg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrParse, err)
		}
		for _, f := range fields {
			c.logger.Debug().
				Uint8("class", f.Class).
				Uint8("type", f.Type).
				Int("len", len(f.Value)).
				Msg("structured field")
		}
	}
	return nil
}
