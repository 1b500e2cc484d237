// Package transport supplies the byte-oriented duplex connection the
// session core consumes. Everything below that abstraction (DNS,
// proxying, TLS) lives outside the core.
package transport

import (
	"context"
	"net"
	"time"
)

// Dialer opens a duplex connection to a host address. The seam exists
// so tests can hand the controller an in-memory pipe.
type Dialer interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// NetDialer dials TCP with a bounded connect timeout.
type NetDialer struct {
	Timeout time.Duration
}

func (d NetDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	return nd.DialContext(ctx, "tcp", addr)
}
