// Package socks5in implements the SOCKS5 inbound acceptor (spec.md §4.3,
// C5): an RFC 1928 CONNECT-only server with optional RFC 1929 user/pass
// sub-negotiation, using the same listener + tracked-connection-set +
// graceful-stop accept loop shape as the rest of this codebase's inbound
// acceptors.
package socks5in

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/renmatsu/ferry/internal/bridge"
	"github.com/renmatsu/ferry/internal/config"
	"github.com/renmatsu/ferry/internal/outbound/httpout"
	"github.com/renmatsu/ferry/internal/outbound/socks5out"
	"github.com/renmatsu/ferry/internal/registry"
	"github.com/renmatsu/ferry/internal/wire"
	"github.com/rs/zerolog"
	"github.com/tevino/abool"
)

// Acceptor listens for SOCKS5 clients on one configured inbound endpoint.
type Acceptor struct {
	endpoint config.Endpoint
	managers *registry.Managers
	log      zerolog.Logger

	closing *abool.AtomicBool

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// New builds an Acceptor for endpoint, bound to the shared managers.
func New(endpoint config.Endpoint, managers *registry.Managers, log zerolog.Logger) *Acceptor {
	return &Acceptor{
		endpoint: endpoint,
		managers: managers,
		log:      log.With().Str("inbound", endpoint.Name).Logger(),
		closing:  abool.New(),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Serve listens and accepts until ctx is cancelled. It returns an error
// only when the listen itself fails; Accept errors are logged and the loop
// continues.
func (a *Acceptor) Serve(ctx context.Context) error {
	l, err := net.Listen("tcp", a.endpoint.Addr())
	if err != nil {
		return fmt.Errorf("socks5in: listen %s: %w", a.endpoint.Addr(), err)
	}
	a.mu.Lock()
	a.listener = l
	a.mu.Unlock()
	a.log.Info().Str("addr", a.endpoint.Addr()).Msg("socks5 inbound listening")

	go func() {
		<-ctx.Done()
		a.closing.Set()
		a.mu.Lock()
		l := a.listener
		active := make([]net.Conn, 0, len(a.conns))
		for c := range a.conns {
			active = append(active, c)
		}
		a.mu.Unlock()
		if l != nil {
			_ = l.Close()
		}
		for _, c := range active {
			_ = c.Close()
		}
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if a.closing.IsSet() {
				a.wg.Wait()
				return nil
			}
			a.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		if !a.track(conn) {
			_ = conn.Close()
			continue
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer a.untrack(conn)
			a.handle(conn)
		}()
	}
}

func (a *Acceptor) track(conn net.Conn) bool {
	if a.closing.IsSet() {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conns[conn] = struct{}{}
	return true
}

func (a *Acceptor) untrack(conn net.Conn) {
	a.mu.Lock()
	delete(a.conns, conn)
	a.mu.Unlock()
}

func (a *Acceptor) handle(conn net.Conn) {
	connID := uuid.NewString()
	log := a.log.With().Str("conn_id", connID).Logger()

	ok, err := negotiateMethod(conn, a.endpoint)
	if err != nil {
		log.Debug().Err(err).Msg("method negotiation failed")
		_ = conn.Close()
		return
	}
	if !ok {
		_ = conn.Close()
		return
	}

	host, port, err := readRequest(conn)
	if err != nil {
		log.Debug().Err(err).Msg("request parsing failed")
		_ = conn.Close()
		return
	}

	outboundName := a.managers.Route.Switch(host)
	endpoint, found := a.managers.Outbound.Lookup(outboundName)
	if !found {
		log.Warn().Str("outbound", outboundName).Msg("egress not found")
		_, _ = conn.Write(wire.BuildReply(wire.RepFailure))
		_ = conn.Close()
		return
	}

	ctx := context.Background()
	var upstream net.Conn
	switch endpoint.Type {
	case config.ProtocolSocks5:
		upstream, err = socks5out.Dial(ctx, endpoint)
	default:
		upstream, err = httpout.Dial(ctx, endpoint)
	}
	if err != nil {
		log.Warn().Err(err).Str("outbound", outboundName).Msg("failed to dial outbound")
		_, _ = conn.Write(wire.BuildReply(wire.RepFailure))
		_ = conn.Close()
		return
	}

	// The client's CONNECT reply is written by the bridge cell, once the
	// outbound side's own handshake result is known.
	bridge.Dispatch(log, &bridge.Task{
		ConnID:           connID,
		TargetHost:       host,
		TargetPort:       port,
		InboundProtocol:  config.ProtocolSocks5,
		OutboundProtocol: endpoint.Type,
		InboundStream:    conn,
		OutboundStream:   upstream,
	})
}

// negotiateMethod runs spec.md §4.3's method negotiation, including the
// RFC 1929 sub-negotiation when the endpoint requires auth. It returns
// ok=false when the negotiation itself completed (a reply was already
// sent) but ended in rejection, so the caller just closes without
// writing anything further.
func negotiateMethod(conn net.Conn, e config.Endpoint) (bool, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return false, err
	}
	if header[0] != wire.Version5 {
		return false, fmt.Errorf("socks5in: bad version byte 0x%02x", header[0])
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return false, err
	}

	if !e.AuthEnable {
		if _, err := conn.Write([]byte{wire.Version5, wire.MethodNoAuth}); err != nil {
			return false, err
		}
		return true, nil
	}

	if !containsMethod(methods, wire.MethodUserPass) || e.Username == "" || e.Password == "" {
		_, _ = conn.Write([]byte{wire.Version5, wire.MethodNoAcceptable})
		return false, nil
	}
	if _, err := conn.Write([]byte{wire.Version5, wire.MethodUserPass}); err != nil {
		return false, err
	}
	return subNegotiate(conn, e)
}

func subNegotiate(conn net.Conn, e config.Endpoint) (bool, error) {
	ver := make([]byte, 1)
	if _, err := io.ReadFull(conn, ver); err != nil {
		return false, err
	}
	if ver[0] != wire.AuthVersion1 {
		return false, fmt.Errorf("socks5in: bad auth version byte 0x%02x", ver[0])
	}

	ulen := make([]byte, 1)
	if _, err := io.ReadFull(conn, ulen); err != nil {
		return false, err
	}
	username := make([]byte, ulen[0])
	if _, err := io.ReadFull(conn, username); err != nil {
		return false, err
	}

	plen := make([]byte, 1)
	if _, err := io.ReadFull(conn, plen); err != nil {
		return false, err
	}
	password := make([]byte, plen[0])
	if _, err := io.ReadFull(conn, password); err != nil {
		return false, err
	}

	if e.Username != "" && e.Password != "" &&
		string(username) == e.Username && string(password) == e.Password {
		_, err := conn.Write([]byte{wire.AuthVersion1, wire.AuthStatusOK})
		return err == nil, err
	}
	_, _ = conn.Write([]byte{wire.AuthVersion1, wire.AuthStatusBad})
	return false, nil
}

func containsMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}

func readRequest(conn net.Conn) (host string, port uint16, err error) {
	header := make([]byte, 4)
	if _, err = io.ReadFull(conn, header); err != nil {
		return "", 0, err
	}
	if header[0] != wire.Version5 {
		return "", 0, fmt.Errorf("socks5in: bad request version byte 0x%02x", header[0])
	}
	if header[1] != wire.CmdConnect {
		_, _ = conn.Write(wire.BuildReply(wire.RepCommandNotSupp))
		return "", 0, fmt.Errorf("socks5in: unsupported command 0x%02x", header[1])
	}

	addrReader := io.MultiReader(bytes.NewReader(header[3:4]), conn)
	_, host, err = wire.ReadAddress(addrReader)
	if err != nil {
		return "", 0, err
	}
	port, err = wire.ReadPort(conn)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
