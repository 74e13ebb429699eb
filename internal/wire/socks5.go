// Package wire holds the RFC 1928 SOCKS5 byte-level constants and helpers
// shared by the inbound acceptor, the outbound dialer, and the bridge:
// method negotiation bytes, ATYP classification, address encode/decode,
// and the IPv6 textual form spec.md §6 fixes exactly.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Protocol version and command bytes (RFC 1928).
const (
	Version5   = 0x05
	CmdConnect = 0x01
)

// Method negotiation bytes.
const (
	MethodNoAuth       = 0x00
	MethodUserPass     = 0x02
	MethodNoAcceptable = 0xFF
)

// Address type bytes.
const (
	ATYPIPv4   = 0x01
	ATYPDomain = 0x03
	ATYPIPv6   = 0x04
)

// Reply codes (the subset this proxy emits or recognizes).
const (
	RepSuccess        = 0x00
	RepFailure        = 0x01
	RepCommandNotSupp = 0x07
)

// Sub-negotiation (RFC 1929) bytes.
const (
	AuthVersion1  = 0x01
	AuthStatusOK  = 0x00
	AuthStatusBad = 0x01
)

// HostType is the closed classification of a target host used to pick an
// ATYP byte: "attempt IPv4 parse -> IPv4; else attempt IPv6 parse -> IPv6;
// else -> Domain" (spec.md §6).
type HostType int

const (
	HostDomain HostType = iota
	HostIPv4
	HostIPv6
)

// ClassifyHost implements the host-type classification of spec.md §6.
func ClassifyHost(host string) HostType {
	ip := net.ParseIP(host)
	if ip == nil {
		return HostDomain
	}
	if v4 := ip.To4(); v4 != nil {
		return HostIPv4
	}
	return HostIPv6
}

// IPv6Stringify renders 16 raw address octets as eight groups of
// lowercase hex joined by ':', with no zero-group compression — the exact
// form spec.md §6 specifies.
func IPv6Stringify(octets [16]byte) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = fmt.Sprintf("%02x%02x", octets[2*i], octets[2*i+1])
	}
	return strings.Join(groups, ":")
}

// IPv6Parse reverses IPv6Stringify: split on ':', parse each group as a
// big-endian 16-bit hex number.
func IPv6Parse(s string) ([16]byte, error) {
	var out [16]byte
	groups := strings.Split(s, ":")
	if len(groups) != 8 {
		return out, fmt.Errorf("wire: ipv6 address %q does not have 8 groups", s)
	}
	for i, g := range groups {
		v, err := strconv.ParseUint(g, 16, 16)
		if err != nil {
			return out, fmt.Errorf("wire: ipv6 address %q: group %d: %w", s, i, err)
		}
		out[2*i] = byte(v >> 8)
		out[2*i+1] = byte(v)
	}
	return out, nil
}

// EncodeAddress appends the ATYP + ADDR encoding of host to dst, per RFC
// 1928, choosing ATYP by ClassifyHost.
func EncodeAddress(dst []byte, host string) ([]byte, error) {
	switch ClassifyHost(host) {
	case HostIPv4:
		ip := net.ParseIP(host).To4()
		dst = append(dst, ATYPIPv4)
		dst = append(dst, ip...)
	case HostIPv6:
		octets, err := ipv6FromString(host)
		if err != nil {
			return nil, err
		}
		dst = append(dst, ATYPIPv6)
		dst = append(dst, octets[:]...)
	default:
		if len(host) > 255 {
			return nil, fmt.Errorf("wire: domain %q exceeds 255 bytes", host)
		}
		dst = append(dst, ATYPDomain, byte(len(host)))
		dst = append(dst, host...)
	}
	return dst, nil
}

// ipv6FromString parses a standard net.ParseIP-accepted IPv6 literal (the
// form the inbound handshake stores target hosts in) into 16 octets. This
// is distinct from IPv6Parse, which decodes the colon-hex-pairs form
// produced by IPv6Stringify for a previously-seen SOCKS5 ATYP=0x04 address;
// both forms can appear as a target_host depending on where it came from.
func ipv6FromString(host string) ([16]byte, error) {
	var out [16]byte
	ip := net.ParseIP(host)
	if ip == nil {
		if parsed, err := IPv6Parse(host); err == nil {
			return parsed, nil
		}
		return out, fmt.Errorf("wire: invalid ipv6 address %q", host)
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return out, fmt.Errorf("wire: invalid ipv6 address %q", host)
	}
	copy(out[:], ip16)
	return out, nil
}

// ReadAddress reads an ATYP byte followed by its ADDR encoding from r and
// returns the address as a string (dotted-quad, domain, or
// IPv6Stringify-form) plus the ATYP byte read. Used for parsing an inbound
// CONNECT request's DST.ADDR.
func ReadAddress(r io.Reader) (atyp byte, addr string, err error) {
	var atypBuf [1]byte
	if _, err = io.ReadFull(r, atypBuf[:]); err != nil {
		return 0, "", err
	}
	atyp = atypBuf[0]

	switch atyp {
	case ATYPIPv4:
		var ip [4]byte
		if _, err = io.ReadFull(r, ip[:]); err != nil {
			return atyp, "", err
		}
		addr = net.IP(ip[:]).String()
	case ATYPDomain:
		var lenBuf [1]byte
		if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
			return atyp, "", err
		}
		domain := make([]byte, lenBuf[0])
		if _, err = io.ReadFull(r, domain); err != nil {
			return atyp, "", err
		}
		addr = string(domain)
	case ATYPIPv6:
		var ip [16]byte
		if _, err = io.ReadFull(r, ip[:]); err != nil {
			return atyp, "", err
		}
		addr = IPv6Stringify(ip)
	default:
		return atyp, "", fmt.Errorf("wire: unsupported ATYP 0x%02x", atyp)
	}
	return atyp, addr, nil
}

// ReadPort reads the 2-byte big-endian port that follows an address.
func ReadPort(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// ZeroBoundReply is the fixed "BND.ADDR=0.0.0.0 BND.PORT=0" tail this
// proxy always sends in its own REP replies — it never binds a real
// relay-side listener, so there is nothing meaningful to report.
var ZeroBoundReply = []byte{ATYPIPv4, 0, 0, 0, 0, 0, 0}

// BuildReply constructs a full "VER REP RSV ATYP BND.ADDR BND.PORT" SOCKS5
// reply with the fixed zero bound address this proxy always uses.
func BuildReply(rep byte) []byte {
	out := make([]byte, 0, 3+len(ZeroBoundReply))
	out = append(out, Version5, rep, 0x00)
	out = append(out, ZeroBoundReply...)
	return out
}

// BuildConnectRequest constructs a full SOCKS5 CONNECT request
// "VER CMD RSV ATYP DST.ADDR DST.PORT" for host:port.
func BuildConnectRequest(host string, port uint16) ([]byte, error) {
	out := []byte{Version5, CmdConnect, 0x00}
	out, err := EncodeAddress(out, host)
	if err != nil {
		return nil, err
	}
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], port)
	return append(out, portBuf[:]...), nil
}
