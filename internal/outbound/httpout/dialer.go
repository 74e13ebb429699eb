// Package httpout implements the HTTP outbound dialer (spec.md §4.4, C6):
// a bare TCP connection to the configured egress, with no protocol
// handshake of its own — HTTP forwarding semantics live entirely in the
// bridge cells that write a CONNECT line or forward a captured preamble.
package httpout

import (
	"context"
	"net"

	"github.com/renmatsu/ferry/internal/config"
)

// Dial opens a plain TCP connection to e. The returned conn is handed
// straight to the bridge; nothing is written or read here.
func Dial(ctx context.Context, e config.Endpoint) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", e.Addr())
}
