package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// Failure taxonomy. Every fault that reaches a collaborator is one of
// these; no raw I/O error crosses the package boundary uncategorized.
var (
	ErrConnection       = errors.New("session: connection failure")
	ErrTimeout          = errors.New("session: timed out")
	ErrClosed           = errors.New("session: connection closed")
	ErrInvalidState     = errors.New("session: action invalid for current state")
	ErrRetriesExhausted = errors.New("session: retry budget exhausted")
)

// Classify folds a low-level transport error into the taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrConnection), errors.Is(err, ErrTimeout),
		errors.Is(err, ErrClosed), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrRetriesExhausted):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
