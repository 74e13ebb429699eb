package httpin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHostHeader_WithPort(t *testing.T) {
	preamble := []byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n")
	host, port, ok := parseHostHeader(preamble)
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	assert.Equal(t, uint16(443), port)
}

func TestParseHostHeader_DefaultPort(t *testing.T) {
	preamble := []byte("GET /ip HTTP/1.1\r\nHost: httpbin.org\r\n\r\n")
	host, port, ok := parseHostHeader(preamble)
	assert.True(t, ok)
	assert.Equal(t, "httpbin.org", host)
	assert.Equal(t, uint16(80), port)
}

func TestParseHostHeader_Missing(t *testing.T) {
	preamble := []byte("GET /ip HTTP/1.1\r\nUser-Agent: test\r\n\r\n")
	_, _, ok := parseHostHeader(preamble)
	assert.False(t, ok)
}

func TestParseHostHeader_CaseSensitive(t *testing.T) {
	preamble := []byte("GET /ip HTTP/1.1\r\nhost: httpbin.org\r\n\r\n")
	_, _, ok := parseHostHeader(preamble)
	assert.False(t, ok, "spec requires case-sensitive match on \"Host:\"")
}

func TestSplitHostPort(t *testing.T) {
	h, p := splitHostPort("example.com:8080")
	assert.Equal(t, "example.com", h)
	assert.Equal(t, uint16(8080), p)

	h, p = splitHostPort("example.com")
	assert.Equal(t, "example.com", h)
	assert.Equal(t, uint16(80), p)
}
