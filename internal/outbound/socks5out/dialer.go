// Package socks5out implements the SOCKS5 outbound dialer (spec.md §4.5,
// C7): TCP dial, method negotiation, and — if the outbound endpoint
// configures credentials — the RFC 1929 sub-negotiation, including the
// deliberate leading-byte quirk documented below. The CONNECT request
// itself is never sent here; that belongs to the bridge cell that uses
// this dialer's authenticated stream.
package socks5out

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/renmatsu/ferry/internal/config"
	"github.com/renmatsu/ferry/internal/wire"
)

// Dial opens a TCP connection to e and performs SOCKS5 method negotiation
// (and, when e.AuthEnable, RFC 1929 sub-negotiation). The returned conn is
// authenticated and ready for a CONNECT request; Dial never issues one.
func Dial(ctx context.Context, e config.Endpoint) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.Addr())
	if err != nil {
		return nil, err
	}

	if err := negotiate(conn, e); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func negotiate(conn net.Conn, e config.Endpoint) error {
	method := byte(wire.MethodNoAuth)
	if e.AuthEnable {
		method = wire.MethodUserPass
	}
	if _, err := conn.Write([]byte{wire.Version5, 0x01, method}); err != nil {
		return fmt.Errorf("socks5out: method negotiation write: %w", err)
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("socks5out: method negotiation reply: %w", err)
	}

	if !e.AuthEnable {
		if reply[1] != wire.MethodNoAuth {
			return fmt.Errorf("socks5out: outbound rejected no-auth, selected 0x%02x", reply[1])
		}
		return nil
	}
	if reply[1] != wire.MethodUserPass {
		return fmt.Errorf("socks5out: outbound did not select user/pass, selected 0x%02x", reply[1])
	}
	return authenticate(conn, e)
}

// authenticate performs the user/pass sub-negotiation. The source's wire
// format leads the sub-negotiation request with 0x05 rather than RFC
// 1929's 0x01 — this dialer reproduces that byte exactly since it talks to
// outbound SOCKS5 servers that expect it, not to a standards-conformant peer.
func authenticate(conn net.Conn, e config.Endpoint) error {
	req := make([]byte, 0, 3+len(e.Username)+len(e.Password))
	req = append(req, wire.Version5, byte(len(e.Username)))
	req = append(req, e.Username...)
	req = append(req, byte(len(e.Password)))
	req = append(req, e.Password...)
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks5out: auth write: %w", err)
	}

	status := make([]byte, 2)
	if _, err := io.ReadFull(conn, status); err != nil {
		return fmt.Errorf("socks5out: auth reply: %w", err)
	}
	if status[1] != wire.AuthStatusOK {
		return fmt.Errorf("socks5out: outbound rejected credentials")
	}
	return nil
}
