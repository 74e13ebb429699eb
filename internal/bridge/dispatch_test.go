package bridge

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipePair() (net.Conn, net.Conn) {
	return net.Pipe()
}

func silentLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestCellHTTPtoHTTP_RewritesConnect(t *testing.T) {
	clientSide, inbound := pipePair()
	outbound, upstream := pipePair()
	defer clientSide.Close()
	defer upstream.Close()

	task := &Task{
		Preamble:         []byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"),
		TargetHost:       "example.com",
		TargetPort:       443,
		InboundStream:    inbound,
		OutboundStream:   outbound,
	}

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := upstream.Read(buf)
		got <- buf[:n]
	}()

	ok := cellHTTPtoHTTP(silentLogger(), task)
	require.True(t, ok)

	select {
	case b := <-got:
		assert.Equal(t, "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n", string(b))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upstream write")
	}
}

func TestCellHTTPtoHTTP_ForwardsVerbatimWhenNotConnect(t *testing.T) {
	_, inbound := pipePair()
	outbound, upstream := pipePair()
	defer upstream.Close()

	preamble := []byte("GET /ip HTTP/1.1\r\nHost: httpbin.org\r\n\r\n")
	task := &Task{
		Preamble:       preamble,
		TargetHost:     "httpbin.org",
		TargetPort:     80,
		InboundStream:  inbound,
		OutboundStream: outbound,
	}

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := upstream.Read(buf)
		got <- buf[:n]
	}()

	ok := cellHTTPtoHTTP(silentLogger(), task)
	require.True(t, ok)

	select {
	case b := <-got:
		assert.Equal(t, preamble, b)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upstream write")
	}
}

func TestCellHTTPtoSocks5_Scenario2RequestBytes(t *testing.T) {
	_, inbound := pipePair()
	outbound, upstream := pipePair()
	defer inbound.Close()
	defer upstream.Close()

	preamble := []byte("GET /ip HTTP/1.1\r\nHost: httpbin.org\r\n\r\n")
	task := &Task{
		Preamble:       preamble,
		TargetHost:     "httpbin.org",
		TargetPort:     80,
		InboundStream:  inbound,
		OutboundStream: outbound,
	}

	reqCh := make(chan []byte, 1)
	fwdCh := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 18)
		_, _ = io.ReadFull(upstream, buf)
		reqCh <- buf
		_, _ = upstream.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})

		fwd := make([]byte, len(preamble))
		_, _ = io.ReadFull(upstream, fwd)
		fwdCh <- fwd
	}()

	ok := cellHTTPtoSocks5(silentLogger(), task)
	require.True(t, ok)

	select {
	case req := <-reqCh:
		want := []byte{0x05, 0x01, 0x00, 0x03, 0x0a, 'h', 't', 't', 'p', 'b', 'i', 'n', '.', 'o', 'r', 'g', 0x00, 0x50}
		assert.Equal(t, want, req)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SOCKS5 request")
	}
	select {
	case fwd := <-fwdCh:
		assert.Equal(t, preamble, fwd)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded preamble")
	}
}

func TestCellHTTPtoSocks5_ConnectGets200(t *testing.T) {
	clientSide, inbound := pipePair()
	outbound, upstream := pipePair()
	defer clientSide.Close()
	defer upstream.Close()

	task := &Task{
		Preamble:       []byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"),
		TargetHost:     "example.com",
		TargetPort:     443,
		InboundStream:  inbound,
		OutboundStream: outbound,
	}

	go func() {
		buf := make([]byte, 64)
		_, _ = upstream.Read(buf)
		_, _ = upstream.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}()

	done := make(chan bool, 1)
	go func() { done <- cellHTTPtoSocks5(silentLogger(), task) }()

	buf := make([]byte, 64)
	n, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 Connection Established\r\n\r\n", string(buf[:n]))
	assert.True(t, <-done)
}

func TestCellHTTPtoSocks5_FailureReplyIsBadGateway(t *testing.T) {
	clientSide, inbound := pipePair()
	outbound, upstream := pipePair()
	defer clientSide.Close()
	defer upstream.Close()

	task := &Task{
		Preamble:       []byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"),
		TargetHost:     "example.com",
		TargetPort:     443,
		InboundStream:  inbound,
		OutboundStream: outbound,
	}

	go func() {
		buf := make([]byte, 64)
		_, _ = upstream.Read(buf)
		_, _ = upstream.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}()

	done := make(chan bool, 1)
	go func() { done <- cellHTTPtoSocks5(silentLogger(), task) }()

	buf := make([]byte, 64)
	n, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n", string(buf[:n]))
	assert.False(t, <-done)
}

func TestCellSocks5toSocks5_AddressRoundTrip(t *testing.T) {
	clientSide, inbound := pipePair()
	outbound, upstream := pipePair()
	defer clientSide.Close()
	defer outbound.Close()

	task := &Task{
		TargetHost:     "203.0.113.7",
		TargetPort:     1080,
		InboundStream:  inbound,
		OutboundStream: outbound,
	}

	reqCh := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 10)
		_, _ = io.ReadFull(upstream, buf)
		reqCh <- buf
		_, _ = upstream.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}()

	done := make(chan bool, 1)
	go func() { done <- cellSocks5toSocks5(silentLogger(), task) }()

	buf := make([]byte, 10)
	n, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}, buf[:n])
	assert.True(t, <-done)

	select {
	case req := <-reqCh:
		want := []byte{0x05, 0x01, 0x00, 0x01, 203, 0, 113, 7, 0x04, 0x38}
		assert.Equal(t, want, req)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SOCKS5 request")
	}
}

func TestCellSocks5toHTTP_NonSuccessStatusFails(t *testing.T) {
	clientSide, inbound := pipePair()
	outbound, upstream := pipePair()
	defer clientSide.Close()
	defer outbound.Close()

	task := &Task{
		TargetHost:     "example.com",
		TargetPort:     443,
		InboundStream:  inbound,
		OutboundStream: outbound,
	}

	go func() {
		buf := make([]byte, 128)
		_, _ = upstream.Read(buf)
		_, _ = upstream.Write([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
		_ = upstream.Close()
	}()

	done := make(chan bool, 1)
	go func() { done <- cellSocks5toHTTP(silentLogger(), task) }()

	buf := make([]byte, 16)
	n, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), buf[1]) // REP=0x01
	assert.False(t, <-done)
	_ = n
}

func TestCellSocks5toHTTP_SuccessStatusSucceeds(t *testing.T) {
	clientSide, inbound := pipePair()
	outbound, upstream := pipePair()
	defer clientSide.Close()
	defer outbound.Close()

	task := &Task{
		TargetHost:     "example.com",
		TargetPort:     443,
		InboundStream:  inbound,
		OutboundStream: outbound,
	}

	go func() {
		buf := make([]byte, 128)
		_, _ = upstream.Read(buf)
		_, _ = upstream.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		_ = upstream.Close()
	}()

	done := make(chan bool, 1)
	go func() { done <- cellSocks5toHTTP(silentLogger(), task) }()

	buf := make([]byte, 16)
	n, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), buf[1]) // REP=0x00
	assert.True(t, <-done)
	_ = n
}
