// Package bridge implements the inbound x outbound protocol-pair
// adaptation layer (spec.md §4.6, C8): the ServerTask value and the
// 2x2 dispatch matrix that splices two possibly-different proxy
// protocols into one transparent byte stream.
package bridge

import (
	"net"

	"github.com/renmatsu/ferry/internal/config"
)

// Task is spec.md's ServerTask: a per-connection value created by an
// inbound acceptor after its handshake completes, consumed exactly once
// by Dispatch, and dropped when the relay it starts terminates.
type Task struct {
	// ConnID correlates this task's log lines across its lifetime.
	ConnID string

	// Preamble holds bytes captured during inbound parsing that must
	// still reach the outbound: the raw HTTP request head for the HTTP
	// inbound, or nil for SOCKS5 (whose handshake is never forwarded).
	Preamble []byte

	TargetHost string
	TargetPort uint16

	InboundProtocol  config.ProtocolType
	OutboundProtocol config.ProtocolType

	InboundStream  net.Conn
	OutboundStream net.Conn
}
