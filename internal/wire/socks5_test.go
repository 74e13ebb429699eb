package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHost(t *testing.T) {
	assert.Equal(t, HostIPv4, ClassifyHost("127.0.0.1"))
	assert.Equal(t, HostIPv6, ClassifyHost("::1"))
	assert.Equal(t, HostDomain, ClassifyHost("example.com"))
}

func TestIPv6StringifyExactForm(t *testing.T) {
	octets := [16]byte{0xaa, 0xbb, 0xcc, 0xdd, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x22, 0x33}
	got := IPv6Stringify(octets)
	assert.Equal(t, "aabb:ccdd:0000:0000:0000:0000:0000:2233", got)
}

func TestIPv6RoundTrip(t *testing.T) {
	octets := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}
	s := IPv6Stringify(octets)
	back, err := IPv6Parse(s)
	require.NoError(t, err)
	assert.Equal(t, octets, back)
}

func TestReadAddress_IPv4(t *testing.T) {
	buf := bytes.NewReader([]byte{ATYPIPv4, 10, 0, 0, 1})
	atyp, addr, err := ReadAddress(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(ATYPIPv4), atyp)
	assert.Equal(t, "10.0.0.1", addr)
}

func TestReadAddress_Domain(t *testing.T) {
	domain := "httpbin.org"
	buf := bytes.NewReader(append([]byte{ATYPDomain, byte(len(domain))}, domain...))
	atyp, addr, err := ReadAddress(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(ATYPDomain), atyp)
	assert.Equal(t, domain, addr)
}

func TestReadAddress_UnsupportedATYP(t *testing.T) {
	buf := bytes.NewReader([]byte{0x7f})
	_, _, err := ReadAddress(buf)
	assert.Error(t, err)
}

func TestBuildConnectRequest_MatchesScenario2(t *testing.T) {
	// From spec.md §8 scenario 2: GET /ip routed via SOCKS5 to httpbin.org:80.
	got, err := BuildConnectRequest("httpbin.org", 80)
	require.NoError(t, err)
	want := []byte{0x05, 0x01, 0x00, 0x03, 0x0a, 'h', 't', 't', 'p', 'b', 'i', 'n', '.', 'o', 'r', 'g', 0x00, 0x50}
	assert.Equal(t, want, got)
}

func TestBuildReply_Success(t *testing.T) {
	got := BuildReply(RepSuccess)
	want := []byte{0x05, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	assert.Equal(t, want, got)
}
