// Package dnsecho is a standalone UDP echo responder, ported from the
// original source's trivial `Dns::listen` (bind, recv, send the same
// bytes back). It is not part of the bridging core and is never
// constructed by cmd/proxy — spec.md's Non-goals exclude a real DNS
// resolver, but the echo listener itself is a supplemented feature kept
// as reference/testable infrastructure (spec.md §9 Open Question #4).
package dnsecho

import (
	"context"
	"net"
	"strconv"

	"github.com/rs/zerolog"
)

// Responder is a named UDP listener that echoes every received datagram
// back to its sender, unparsed.
type Responder struct {
	Name string
	Host string
	Port uint16
}

// New builds a Responder; it performs no I/O until Listen is called.
func New(name, host string, port uint16) *Responder {
	return &Responder{Name: name, Host: host, Port: port}
}

// Listen binds a UDP socket and echoes datagrams until ctx is cancelled or
// a read/write error occurs.
func (r *Responder) Listen(ctx context.Context, log zerolog.Logger) error {
	addr := net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		log.Debug().Int("bytes", n).Str("peer", peer.String()).Msg("dns echo received")

		sent, err := conn.WriteTo(buf[:n], peer)
		if err != nil {
			return err
		}
		log.Debug().Int("bytes", sent).Msg("dns echo sent")
	}
}

