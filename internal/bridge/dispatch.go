package bridge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/renmatsu/ferry/internal/config"
	"github.com/renmatsu/ferry/internal/relay"
	"github.com/renmatsu/ferry/internal/wire"
	"github.com/rs/zerolog"
)

var (
	http502 = []byte("HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
	http200 = []byte("HTTP/1.1 200 Connection Established\r\n\r\n")
)

// Dispatch runs the bridge cell selected by (t.InboundProtocol,
// t.OutboundProtocol), then starts the bidirectional relay. It consumes t
// exactly once; both streams are closed by the relay (or by an early
// failure path) before Dispatch returns.
func Dispatch(log zerolog.Logger, t *Task) {
	log = log.With().Str("conn_id", t.ConnID).
		Str("inbound_protocol", string(t.InboundProtocol)).
		Str("outbound_protocol", string(t.OutboundProtocol)).
		Str("target", fmt.Sprintf("%s:%d", t.TargetHost, t.TargetPort)).
		Logger()

	var ok bool
	switch {
	case t.InboundProtocol == config.ProtocolHTTP && t.OutboundProtocol == config.ProtocolHTTP:
		ok = cellHTTPtoHTTP(log, t)
	case t.InboundProtocol == config.ProtocolHTTP && t.OutboundProtocol == config.ProtocolSocks5:
		ok = cellHTTPtoSocks5(log, t)
	case t.InboundProtocol == config.ProtocolSocks5 && t.OutboundProtocol == config.ProtocolHTTP:
		ok = cellSocks5toHTTP(log, t)
	case t.InboundProtocol == config.ProtocolSocks5 && t.OutboundProtocol == config.ProtocolSocks5:
		ok = cellSocks5toSocks5(log, t)
	default:
		log.Error().Msg("unreachable protocol pair")
		ok = false
	}

	if !ok {
		_ = t.InboundStream.Close()
		_ = t.OutboundStream.Close()
		return
	}

	relay.Run(log, t.InboundStream, t.OutboundStream)
}

func isConnect(preamble []byte) bool {
	return bytes.HasPrefix(preamble, []byte("CONNECT "))
}

func connectLine(host string, port uint16) string {
	return fmt.Sprintf("CONNECT %s:%d HTTP/1.1\r\nHost: %s:%d\r\n\r\n", host, port, host, port)
}

// cellHTTPtoHTTP: if the captured preamble is a CONNECT, rewrite it into a
// freshly-built CONNECT line (not forwarded verbatim); otherwise forward
// the preamble verbatim. No further handshake is needed against an HTTP
// outbound — it is a bare TCP pass-through.
func cellHTTPtoHTTP(log zerolog.Logger, t *Task) bool {
	if isConnect(t.Preamble) {
		line := connectLine(t.TargetHost, t.TargetPort)
		if _, err := t.OutboundStream.Write([]byte(line)); err != nil {
			log.Warn().Err(err).Msg("failed to forward rewritten CONNECT")
			return false
		}
		return true
	}
	if _, err := t.OutboundStream.Write(t.Preamble); err != nil {
		log.Warn().Err(err).Msg("failed to forward preamble")
		return false
	}
	return true
}

// cellHTTPtoSocks5: build and send a SOCKS5 CONNECT request for the
// target, read the 4-byte-prefixed reply, skip BND.ADDR+BND.PORT, then
// either answer the client's CONNECT with 200 or forward the preamble.
func cellHTTPtoSocks5(log zerolog.Logger, t *Task) bool {
	req, err := wire.BuildConnectRequest(t.TargetHost, t.TargetPort)
	if err != nil {
		log.Warn().Err(err).Msg("could not encode SOCKS5 request for target")
		writeHTTP(log, t.InboundStream, http502)
		return false
	}
	if _, err := t.OutboundStream.Write(req); err != nil {
		log.Warn().Err(err).Msg("failed to send SOCKS5 request to outbound")
		writeHTTP(log, t.InboundStream, http502)
		return false
	}

	reply := make([]byte, 4)
	if _, err := io.ReadFull(t.OutboundStream, reply); err != nil {
		log.Warn().Err(err).Msg("failed to read SOCKS5 reply from outbound")
		writeHTTP(log, t.InboundStream, http502)
		return false
	}
	if reply[1] != wire.RepSuccess {
		log.Warn().Uint8("rep", reply[1]).Msg("outbound SOCKS5 connect failed")
		writeHTTP(log, t.InboundStream, http502)
		return false
	}

	if err := skipBoundAddress(t.OutboundStream, reply[3]); err != nil {
		log.Warn().Err(err).Msg("malformed SOCKS5 bound address from outbound")
		writeHTTP(log, t.InboundStream, http502)
		return false
	}

	if isConnect(t.Preamble) {
		writeHTTP(log, t.InboundStream, http200)
		return true
	}
	if _, err := t.OutboundStream.Write(t.Preamble); err != nil {
		log.Warn().Err(err).Msg("failed to forward preamble to SOCKS5 outbound")
		return false
	}
	return true
}

// cellSocks5toHTTP: send a rewritten CONNECT line to the HTTP outbound,
// read its response preamble with the same 1024-chunk heuristic the HTTP
// inbound uses, validate the status line (spec.md §9 Open Question #2:
// non-2xx is treated as failure), then answer the SOCKS5 client.
func cellSocks5toHTTP(log zerolog.Logger, t *Task) bool {
	line := connectLine(t.TargetHost, t.TargetPort)
	if _, err := t.OutboundStream.Write([]byte(line)); err != nil {
		log.Warn().Err(err).Msg("failed to send CONNECT to HTTP outbound")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}

	resp, err := readChunked1024(t.OutboundStream)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read HTTP outbound response")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}
	if !isSuccessStatus(resp) {
		log.Warn().Str("status_line", firstLine(resp)).Msg("HTTP outbound CONNECT returned non-2xx")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}

	writeSocks5Reply(log, t.InboundStream, wire.RepSuccess)
	return true
}

// cellSocks5toSocks5: build and send the SOCKS5 CONNECT request, read the
// reply, verify REP=0, consume BND, answer the SOCKS5 client, then relay.
// The request is re-encoded from t.TargetHost and t.TargetPort, which
// socks5in decoded from the client's own request, with ATYP chosen by
// wire.ClassifyHost: a domain-typed address that parses as an IP literal,
// or an IPv4-mapped IPv6 address, goes upstream with the IPv4/IPv6 ATYP
// rather than the client's original one.
func cellSocks5toSocks5(log zerolog.Logger, t *Task) bool {
	req, err := wire.BuildConnectRequest(t.TargetHost, t.TargetPort)
	if err != nil {
		log.Warn().Err(err).Msg("could not encode SOCKS5 request for target")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}
	if _, err := t.OutboundStream.Write(req); err != nil {
		log.Warn().Err(err).Msg("failed to send SOCKS5 request to outbound")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}

	reply := make([]byte, 4)
	if _, err := io.ReadFull(t.OutboundStream, reply); err != nil {
		log.Warn().Err(err).Msg("failed to read SOCKS5 reply from outbound")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}
	if reply[1] != wire.RepSuccess {
		log.Warn().Uint8("rep", reply[1]).Msg("outbound SOCKS5 connect failed")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}
	if err := skipBoundAddress(t.OutboundStream, reply[3]); err != nil {
		log.Warn().Err(err).Msg("malformed SOCKS5 bound address from outbound")
		writeSocks5Reply(log, t.InboundStream, wire.RepFailure)
		return false
	}

	writeSocks5Reply(log, t.InboundStream, wire.RepSuccess)
	return true
}

func skipBoundAddress(r io.Reader, atyp byte) error {
	var n int
	switch atyp {
	case wire.ATYPIPv4:
		n = 4
	case wire.ATYPDomain:
		var lenBuf [1]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return err
		}
		n = int(lenBuf[0])
	case wire.ATYPIPv6:
		n = 16
	default:
		return fmt.Errorf("bridge: unsupported bound ATYP 0x%02x", atyp)
	}
	if n > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return err
		}
	}
	if _, err := io.CopyN(io.Discard, r, 2); err != nil { // BND.PORT
		return err
	}
	return nil
}

// readChunked1024 applies the same "read until a short read" heuristic as
// the HTTP inbound acceptor (spec.md §4.2, §9 Open Question #5): it is a
// pragmatic read-the-head heuristic, not a real HTTP parser, and is
// unsafe against a pipelined or chunked-body peer.
func readChunked1024(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return buf.Bytes(), err
		}
		if n < 1024 {
			break
		}
	}
	return buf.Bytes(), nil
}

func firstLine(b []byte) string {
	line, _, _ := bufio.NewReader(bytes.NewReader(b)).ReadLine()
	return string(line)
}

func isSuccessStatus(resp []byte) bool {
	line := firstLine(resp)
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return false
	}
	return strings.HasPrefix(parts[1], "2") && len(parts[1]) == 3
}

func writeHTTP(log zerolog.Logger, w io.Writer, msg []byte) {
	if _, err := w.Write(msg); err != nil {
		log.Debug().Err(err).Msg("failed to write HTTP error response to client")
	}
}

func writeSocks5Reply(log zerolog.Logger, w io.Writer, rep byte) {
	if _, err := w.Write(wire.BuildReply(rep)); err != nil {
		log.Debug().Err(err).Msg("failed to write SOCKS5 reply to client")
	}
}
