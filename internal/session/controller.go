package session

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/heymumford/go5250/internal/display"
	"github.com/heymumford/go5250/internal/field"
	"github.com/heymumford/go5250/internal/observability"
	"github.com/heymumford/go5250/internal/protocol/stream"
	"github.com/heymumford/go5250/internal/transport"
)

// Stats exposes recovery counters through an intentional seam instead
// of reflection into controller internals.
type Stats struct {
	Retries      int
	ForcedAborts int
}

// Controller owns one session: the connection state machine, the
// screen and field state the host writes into, and the concurrency
// discipline over the shared connection.
//
// Locking: writeMu serializes every write, flush, and close on the
// live connection; mu guards session state and the connection
// identity. writeMu is never acquired while holding mu.
type Controller struct {
	name   string
	addr   string
	dialer transport.Dialer
	cfg    Config
	logger zerolog.Logger

	screen    *display.Screen
	fields    *field.Registry
	saves     *display.SaveStack
	typeahead *Typeahead

	mu           sync.Mutex
	state        State
	conn         net.Conn
	lastErr      error
	framer       *stream.Framer
	retries      int
	forcedAborts int

	writeMu sync.Mutex

	closing atomic.Bool
	done    chan struct{}
}

func New(name, addr string, dialer transport.Dialer, cfg Config) *Controller {
	geom := display.Geometry24x80
	if cfg.Wide {
		geom = display.Geometry27x132
	}
	screen := display.NewScreen(geom)
	return &Controller{
		name:      name,
		addr:      addr,
		dialer:    dialer,
		cfg:       cfg,
		logger:    log.With().Str("session", name).Logger(),
		screen:    screen,
		fields:    field.NewRegistry(screen),
		saves:     display.NewSaveStack(cfg.SaveDepth),
		typeahead: NewTypeahead(),
	}
}

// Read-only seams for rendering and automation collaborators. Field
// content goes through the registry contract, never direct plane pokes
// for field-owned positions.
func (c *Controller) Screen() *display.Screen   { return c.screen }
func (c *Controller) Fields() *field.Registry   { return c.fields }
func (c *Controller) Saves() *display.SaveStack { return c.saves }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done reports teardown of the current connection. The channel closes
// when the session leaves the connected state, whether by Disconnect,
// Abort, or a read failure; with no connection up it is already closed.
// Each successful Connect hands out a fresh channel.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

func (c *Controller) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Retries: c.retries, ForcedAborts: c.forcedAborts}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	observability.RecordSessionState(c.name, int(s))
	c.logger.Debug().Stringer("state", s).Msg("session state")
}

// Connect dials the host and starts the reader. Valid from the
// disconnected and error states.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected, StateError:
	default:
		s := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, s)
	}
	c.state = StateConnecting
	c.mu.Unlock()
	observability.RecordSessionState(c.name, int(StateConnecting))

	dctx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}
	start := time.Now()
	conn, err := c.dialer.Dial(dctx, c.addr)
	if err != nil {
		cerr := Classify(err)
		c.mu.Lock()
		c.state = StateError
		c.lastErr = cerr
		c.mu.Unlock()
		observability.RecordSessionState(c.name, int(StateError))
		observability.RecordConnectDuration(c.name, "error", time.Since(start))
		c.logger.Warn().Err(cerr).Str("addr", c.addr).Msg("connect failed")
		return cerr
	}
	observability.RecordConnectDuration(c.name, "ok", time.Since(start))

	done := make(chan struct{})
	c.closing.Store(false)
	c.mu.Lock()
	c.conn = conn
	c.lastErr = nil
	c.done = done
	c.state = StateConnected
	c.mu.Unlock()
	observability.RecordSessionState(c.name, int(StateConnected))
	c.logger.Info().Str("addr", c.addr).Msg("connected")

	go c.readLoop(conn)
	return nil
}

// Disconnect signals shutdown, closes the connection, and lands the
// session disconnected. Safe to call concurrently with an in-flight
// read; the reader observes the signal and exits without raising an
// error state.
func (c *Controller) Disconnect() error {
	c.closing.Store(true)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.state = StateDisconnecting
	c.mu.Unlock()
	observability.RecordSessionState(c.name, int(StateDisconnecting))

	var err error
	if conn != nil {
		c.writeMu.Lock()
		err = conn.Close()
		c.writeMu.Unlock()
	}
	c.typeahead.Clear()
	c.setState(StateDisconnected)
	if err != nil {
		return Classify(err)
	}
	return nil
}

// Reconnect is valid from any state, error included. On failure the
// session lands in the error state, from which retry, reconnect, and
// abort all remain available.
func (c *Controller) Reconnect(ctx context.Context) error {
	_ = c.Disconnect()
	if err := c.Connect(ctx); err != nil {
		observability.RecordReconnect(c.name, "error")
		return err
	}
	observability.RecordReconnect(c.name, "ok")
	return nil
}

// Retry re-attempts the connection with backoff, at most MaxRetries+1
// times. Exhausting the budget forces an abort; there is no unbounded
// loop behind this call.
func (c *Controller) Retry(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(NextBackoffDelay(c.cfg.Backoff, attempt, rng)):
			case <-ctx.Done():
				return Classify(ctx.Err())
			}
		}
		c.mu.Lock()
		c.retries++
		c.mu.Unlock()
		if err := c.Reconnect(ctx); err != nil {
			lastErr = err
			continue
		}
		c.mu.Lock()
		c.retries = 0
		c.mu.Unlock()
		return nil
	}
	c.mu.Lock()
	c.forcedAborts++
	c.mu.Unlock()
	observability.RecordForcedAbort(c.name)
	c.logger.Warn().Err(lastErr).Int("max_retries", c.cfg.MaxRetries).Msg("retry budget exhausted, forcing abort")
	_ = c.Abort()
	if lastErr == nil {
		lastErr = ErrConnection
	}
	return fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// Reset clears pending error flags and any partially-consumed record,
// returning to an operable state without a full reconnect.
func (c *Controller) Reset() {
	c.saves.RestoreErrorLine(c.screen)
	c.screen.OIA().SetInputInhibited(display.InhibitNone)
	c.mu.Lock()
	c.framer = nil
	c.lastErr = nil
	if c.conn != nil {
		c.state = StateConnected
	} else if c.state == StateError {
		c.state = StateDisconnected
	}
	s := c.state
	c.mu.Unlock()
	observability.RecordSessionState(c.name, int(s))
}

// Abort deterministically leaves the session disconnected. A close
// failure falls back to dropping the connection reference; the session
// never reports itself connected after an abort was requested.
func (c *Controller) Abort() error {
	c.closing.Store(true)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.lastErr = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		err = conn.Close()
		c.writeMu.Unlock()
	}
	c.typeahead.Clear()
	c.setState(StateDisconnected)
	if err != nil {
		c.logger.Warn().Err(err).Msg("abort close failed, connection dropped")
		return Classify(err)
	}
	return nil
}

// SendInput submits an AID keystroke with its field payload. While the
// keyboard is locked the input queues in the typeahead buffer and
// drains on the next host invite.
func (c *Controller) SendInput(aid byte, payload []byte) error {
	if c.screen.OIA().KeyboardLocked() {
		c.typeahead.Enqueue(aid, payload)
		return nil
	}
	return c.send(stream.OpPutGet, append([]byte{aid}, payload...))
}

func (c *Controller) send(opcode byte, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: no connection", ErrClosed)
	}
	rec := stream.EncodeRecord(opcode, payload)
	rec = append(rec, stream.MarkerByte0, stream.MarkerByte1)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := conn.Write(rec); err != nil {
		return Classify(err)
	}
	observability.RecordFrameWritten(c.name)
	return nil
}

func (c *Controller) flushTypeahead() {
	for _, in := range c.typeahead.Drain() {
		if err := c.send(stream.OpPutGet, append([]byte{in.AID}, in.Payload...)); err != nil {
			c.logger.Warn().Err(err).Uint64("seq", in.Sequence).Msg("typeahead flush failed")
			return
		}
	}
}

func (c *Controller) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		if c.closing.Load() {
			return
		}
		rec, err := readRecord(r)
		if err != nil {
			if c.closing.Load() {
				return
			}
			cerr := Classify(err)
			c.mu.Lock()
			stale := c.conn != conn
			if !stale {
				c.conn = nil
				c.state = StateError
				c.lastErr = cerr
				if c.done != nil {
					close(c.done)
					c.done = nil
				}
			}
			c.mu.Unlock()
			if !stale {
				observability.RecordSessionState(c.name, int(StateError))
				c.writeMu.Lock()
				_ = conn.Close()
				c.writeMu.Unlock()
				c.logger.Warn().Err(cerr).Msg("read failed, session in error state")
			}
			return
		}
		if err := c.apply(rec); err != nil {
			// Fatal for this record only; the loop resynchronizes on
			// the next declared-length boundary.
			c.logger.Warn().Err(err).Int("record_len", len(rec)).Msg("record discarded")
		}
	}
}

// readRecord reads one declared-length record. The boundary marker is
// consumed as a sync aid when present, but never determines where a
// record ends.
func readRecord(r *bufio.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] == stream.MarkerByte0 && hdr[1] == stream.MarkerByte1 {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
	}
	declared := int(binary.BigEndian.Uint16(hdr[:]))
	rest := 0
	if declared > 2 {
		rest = declared - 2
	}
	rec := make([]byte, 2+rest)
	copy(rec, hdr[:])
	if rest > 0 {
		if _, err := io.ReadFull(r, rec[2:]); err != nil {
			return nil, err
		}
	}
	// Consume a trailing marker only when it is already buffered; never
	// block waiting for one.
	if r.Buffered() >= 2 {
		if p, err := r.Peek(2); err == nil && p[0] == stream.MarkerByte0 && p[1] == stream.MarkerByte1 {
			_, _ = r.Discard(2)
		}
	}
	return rec, nil
}
