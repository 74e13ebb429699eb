// Package relay implements the bidirectional byte copy with half-close
// propagation and a global deadline (spec.md §4.7, C9).
package relay

import (
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// GlobalTimeout is the wall-clock deadline spec.md §4.7 fixes at 300
// seconds: the connection ends when either copier finishes or this timer
// fires, whichever comes first. A var, not a const, so tests can shrink
// it instead of waiting out the real deadline.
var GlobalTimeout = 300 * time.Second

// halfCloser is satisfied by *net.TCPConn and any other net.Conn that can
// shut down its write half without closing the whole connection.
type halfCloser interface {
	CloseWrite() error
}

// Run splices a and b: it starts two copiers, a->b and b->a, each of
// which shuts down the write half of its destination when its source
// reaches EOF or errors (half-close propagation). The connection ends
// when either copier completes or GlobalTimeout elapses, whichever comes
// first; both streams are then closed unconditionally, regardless of
// which path ended the relay.
func Run(log zerolog.Logger, a, b net.Conn) {
	done := make(chan struct{}, 2)

	go func() {
		copyAndShutdown(log, b, a, "a->b")
		done <- struct{}{}
	}()
	go func() {
		copyAndShutdown(log, a, b, "b->a")
		done <- struct{}{}
	}()

	select {
	case <-done:
	case <-time.After(GlobalTimeout):
		log.Warn().Msg("global relay timeout elapsed; closing both sides")
	}

	err := multierr.Combine(a.Close(), b.Close())
	if err != nil {
		log.Debug().Err(err).Msg("relay teardown close errors")
	}
}

// copyAndShutdown copies src into dst until src errors or reaches EOF,
// then shuts down dst's write half (or closes it outright if it cannot
// half-close) to propagate the half-close to the far end.
func copyAndShutdown(log zerolog.Logger, dst, src net.Conn, direction string) {
	_, err := io.Copy(dst, src)
	if err != nil {
		log.Debug().Err(err).Str("direction", direction).Msg("relay copy ended")
	}
	if hc, ok := dst.(halfCloser); ok {
		_ = hc.CloseWrite()
	} else {
		_ = dst.Close()
	}
}
