package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/heymumford/go5250/internal/testutil/testlog"
)

func TestNetDialerConnects(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	d := NetDialer{Timeout: time.Second}
	conn, err := d.Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()
}

func TestNetDialerHonorsContextCancel(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NetDialer{Timeout: time.Second}
	if _, err := d.Dial(ctx, "203.0.113.1:23"); err == nil {
		t.Fatalf("expected dial failure on cancelled context")
	}
}
