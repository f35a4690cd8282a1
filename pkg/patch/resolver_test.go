package patch

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reply builds a synthetic handshake reply: 34 reserved bytes, a little
// endian u16 code-unit count, then the UTF-16LE code units themselves.
func reply(t *testing.T, preambleLen int, url string) []byte {
	t.Helper()
	units := utf16.Encode([]rune(url))
	buf := make([]byte, preambleLen)
	if preambleLen == 34 {
		lenBytes := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBytes, uint16(len(units)))
		buf = append(buf, lenBytes...)
		for _, u := range units {
			unitBytes := make([]byte, 2)
			binary.LittleEndian.PutUint16(unitBytes, u)
			buf = append(buf, unitBytes...)
		}
	}
	return buf
}

func startFixtureServer(t *testing.T, respond func(probe []byte) []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		probe := make([]byte, 2)
		if _, err := conn.Read(probe); err != nil {
			return
		}
		conn.Write(respond(probe))
	}()
	return ln.Addr().String()
}

func TestDecodeHandshakeReply_ValidURL(t *testing.T) {
	buf := reply(t, 34, "https://example/")
	u, err := decodeHandshakeReply(buf)
	require.NoError(t, err)
	assert.Equal(t, "https://example/", u.String())
}

func TestDecodeHandshakeReply_TooShort(t *testing.T) {
	_, err := decodeHandshakeReply(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeHandshakeReply_DeclaredLengthExceedsBuffer(t *testing.T) {
	buf := make([]byte, 36)
	binary.LittleEndian.PutUint16(buf[34:36], 0xFFFF)
	_, err := decodeHandshakeReply(buf)
	assert.Error(t, err)
}

func TestDecodeHandshakeReply_FixtureServer(t *testing.T) {
	addr := startFixtureServer(t, func(probe []byte) []byte {
		return reply(t, 34, "https://example/")
	})

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	_ = host
	_ = port

	dialer := &net.Dialer{}
	conn, err := dialer.Dial("tcp", addr)
	require.NoError(t, err)
	conn.Write([]byte{0x01, 0x06})
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	conn.Close()

	u, err := decodeHandshakeReply(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "https://example/", u.String())
}

func TestResolveBaseURL_UnknownMajor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := ResolveBaseURL(ctx, Specific("9.9"), ResolverConfig{})
	assert.Error(t, err)
}
