package dialer

import (
	"context"
	"net"
	"testing"
	"time"
)

// TestDialRawReachesLocalListener exercises the direct (non-SOCKS)
// path end to end against a loopback listener, without touching the
// network.
func TestDialRawReachesLocalListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
		close(accepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := dialRaw(ctx, ln.Addr().String(), "")
	if err != nil {
		t.Fatalf("dialRaw: %v", err)
	}
	conn.Close()

	<-accepted
}

func TestDialRawRejectsMalformedAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := dialRaw(ctx, "not-a-host-port", ""); err == nil {
		t.Fatal("expected an error for a malformed address")
	}
}
