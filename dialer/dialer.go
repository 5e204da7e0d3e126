// Package dialer opens the outbound, transport-layer connection that
// a peer's chosen masquerade.Masquerader writes its masked frames
// onto. It is the client-side stand-in for the repository's
// out-of-scope NAT-traversal / onion-hop transport: the core does not
// perform transport I/O, so something outside the core has to, and
// this is the minimal version of that something.
//
// Outbound connections are made to look like an ordinary browser's
// TLS client hello (via utls) and, when a SOCKS5 egress proxy is
// configured, are routed through it — the same posture the teacher's
// meeklite transport uses to blend a pluggable-transport connection
// into ordinary HTTPS traffic.
package dialer

import (
	"context"
	"fmt"
	"net"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"
)

// Config controls how Dial reaches a peer.
type Config struct {
	// ServerName is sent in the TLS client hello's SNI extension and
	// checked against the peer's certificate.
	ServerName string

	// ClientHelloID selects which browser's TLS fingerprint utls
	// mimics. The zero value is utls.HelloGolang, i.e. no mimicry.
	ClientHelloID utls.ClientHelloID

	// SOCKS5ProxyAddr, when non-empty, routes the underlying TCP dial
	// through a local SOCKS5 egress proxy instead of connecting
	// directly — the shape a Tor-style or mesh NAT-traversal egress
	// path takes from the node's point of view.
	SOCKS5ProxyAddr string
}

// Dial opens a TLS connection to addr using cfg, performs the
// TLS handshake, and returns the resulting net.Conn. The caller is
// responsible for everything above the transport: building a
// discriminator.Factory for the connection class, feeding bytes from
// the returned net.Conn into it, and masking outbound frames with the
// chosen Masquerader before writing them here.
func Dial(ctx context.Context, addr string, cfg Config) (net.Conn, error) {
	rawConn, err := dialRaw(ctx, addr, cfg.SOCKS5ProxyAddr)
	if err != nil {
		return nil, fmt.Errorf("dialer: could not reach %s: %w", addr, err)
	}

	uConn := utls.UClient(rawConn, &utls.Config{
		ServerName:                  cfg.ServerName,
		DynamicRecordSizingDisabled: true,
	}, cfg.ClientHelloID)

	if err := uConn.Handshake(); err != nil {
		uConn.Close()
		return nil, fmt.Errorf("dialer: TLS handshake with %s failed: %w", addr, err)
	}

	return uConn, nil
}

func dialRaw(ctx context.Context, addr string, socksAddr string) (net.Conn, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, err
	}

	if socksAddr == "" {
		dialer := &net.Dialer{}
		return dialer.DialContext(ctx, "tcp", addr)
	}

	socksDialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}
	return socksDialer.Dial("tcp", addr)
}
