// Package httpin implements the HTTP inbound acceptor (spec.md §4.2, C4):
// it reads the raw request preamble with a pragmatic "read until short
// read" heuristic rather than a real HTTP parser, pulls the target out of
// the first Host header, and hands the captured bytes to the bridge.
//
// The heuristic is intentional, not a placeholder: spec.md §9 Design Note
// #5 flags it as unsafe against a pipelined or chunked-body client and does
// not mandate a fix, so it is kept exactly as specified.
package httpin

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/renmatsu/ferry/internal/bridge"
	"github.com/renmatsu/ferry/internal/config"
	"github.com/renmatsu/ferry/internal/outbound/httpout"
	"github.com/renmatsu/ferry/internal/outbound/socks5out"
	"github.com/renmatsu/ferry/internal/registry"
	"github.com/rs/zerolog"
	"github.com/tevino/abool"
)

const defaultHTTPPort = 80

var (
	http400 = []byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n")
	http502 = []byte("HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
)

// Acceptor listens for HTTP clients on one configured inbound endpoint.
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
		return fmt.Errorf("httpin: listen %s: %w", a.endpoint.Addr(), err)
	}
	a.mu.Lock()
	a.listener = l
	a.mu.Unlock()
	a.log.Info().Str("addr", a.endpoint.Addr()).Msg("http inbound listening")

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

	preamble, err := readPreamble(conn)
	if err != nil {
		log.Debug().Err(err).Msg("failed to read request preamble")
		_ = conn.Close()
		return
	}

	host, port, ok := parseHostHeader(preamble)
	if !ok {
		log.Debug().Msg("no Host header in preamble")
		_, _ = conn.Write(http400)
		_ = conn.Close()
		return
	}

	outboundName := a.managers.Route.Switch(host)
	endpoint, found := a.managers.Outbound.Lookup(outboundName)
	if !found {
		log.Warn().Str("outbound", outboundName).Msg("egress not found")
		_, _ = conn.Write(http502)
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
		_, _ = conn.Write(http502)
		_ = conn.Close()
		return
	}

	bridge.Dispatch(log, &bridge.Task{
		ConnID:           connID,
		Preamble:         preamble,
		TargetHost:       host,
		TargetPort:       port,
		InboundProtocol:  config.ProtocolHTTP,
		OutboundProtocol: endpoint.Type,
		InboundStream:    conn,
		OutboundStream:   upstream,
	})
}

// readPreamble accumulates bytes by repeated reads of up to 1024 bytes
// each, stopping on the first short read. It does not parse
// Content-Length bodies and will mis-capture a pipelined or chunked
// request — spec.md §9 Design Note #5 names this hazard explicitly and
// asks that it be kept, not fixed.
func readPreamble(conn net.Conn) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			return buf.Bytes(), err
		}
		if n < 1024 {
			break
		}
	}
	return buf.Bytes(), nil
}

// parseHostHeader finds the first line starting with "Host:" (case
// sensitive, per spec.md §4.2) and splits it into host/port, defaulting
// to port 80 when none is present.
func parseHostHeader(preamble []byte) (host string, port uint16, ok bool) {
	for _, line := range strings.Split(string(preamble), "\r\n") {
		if !strings.HasPrefix(line, "Host:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, "Host:"))
		if value == "" {
			return "", 0, false
		}
		h, p := splitHostPort(value)
		return h, p, true
	}
	return "", 0, false
}

func splitHostPort(value string) (string, uint16) {
	if idx := strings.LastIndex(value, ":"); idx != -1 {
		if p, err := strconv.ParseUint(value[idx+1:], 10, 16); err == nil {
			return value[:idx], uint16(p)
		}
	}
	return value, defaultHTTPPort
}
