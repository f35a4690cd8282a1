package patch

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"net/url"
	"time"
	"unicode/utf16"

	"github.com/user/poebundle/pkg/archiveerr"
)

// hostFor returns the patch-server host:port and handshake probe bytes for
// an edition's major version (spec §4.1, §6).
func hostFor(major int) (host string, probe []byte, err error) {
	switch major {
	case 1:
		return "patch.pathofexile.com:12995", []byte{0x01, 0x06}, nil
	case 2:
		return "patch.pathofexile2.com:13060", []byte{0x01, 0x07}, nil
	default:
		return "", nil, fmt.Errorf("no patch server known for major edition %d", major)
	}
}

// ResolverConfig configures ResolveBaseURL's network behavior.
type ResolverConfig struct {
	// Dialer overrides how the TCP connection is made; nil uses net.Dialer
	// zero value.
	Dialer *net.Dialer
	// ReadTimeout bounds the handshake read; zero means no deadline.
	ReadTimeout time.Duration
}

// ResolveBaseURL speaks the two-byte patch-server handshake (spec §4.1) and
// returns the current CDN base URL for p's major edition.
func ResolveBaseURL(ctx context.Context, p Identity, cfg ResolverConfig) (*url.URL, error) {
	major, err := p.Major()
	if err != nil {
		return nil, err
	}
	host, probe, err := hostFor(major)
	if err != nil {
		return nil, err
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, &archiveerr.TransportError{URL: host, Err: fmt.Errorf("dial: %w", err)}
	}
	defer conn.Close()

	if cfg.ReadTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(cfg.ReadTimeout)); err != nil {
			return nil, &archiveerr.TransportError{URL: host, Err: fmt.Errorf("set deadline: %w", err)}
		}
	}

	if _, err := conn.Write(probe); err != nil {
		return nil, &archiveerr.TransportError{URL: host, Err: fmt.Errorf("write probe: %w", err)}
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, &archiveerr.TransportError{URL: host, Err: fmt.Errorf("read reply: %w", err)}
	}
	buf = buf[:n]

	return decodeHandshakeReply(buf)
}

// decodeHandshakeReply implements spec §4.1/§6: byte 34 is a little-endian
// u16 count of UTF-16LE code units, immediately followed by the code units
// themselves. Reading a 2-byte count at offset 34 requires indices 34 and 35
// both be present, i.e. at least 36 bytes total; fewer is a ProtocolError.
func decodeHandshakeReply(buf []byte) (*url.URL, error) {
	const countOffset = 34
	if len(buf) < countOffset+2 {
		return nil, &archiveerr.ProtocolError{
			Reason: fmt.Sprintf("reply too short: got %d bytes, need at least %d", len(buf), countOffset+2),
		}
	}

	count := int(binary.LittleEndian.Uint16(buf[countOffset : countOffset+2]))
	payload := buf[countOffset+2:]
	if count*2 > len(payload) {
		return nil, &archiveerr.ProtocolError{
			Reason: fmt.Sprintf("declared length %d code units exceeds received buffer (%d bytes available)", count, len(payload)),
		}
	}

	units := make([]uint16, count)
	for i := 0; i < count; i++ {
		units[i] = binary.LittleEndian.Uint16(payload[i*2 : i*2+2])
	}
	decoded := utf16.Decode(units)
	raw := string(decoded)

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, &archiveerr.EncodingError{Reason: "invalid URL in handshake reply", Err: err}
	}
	if !parsed.IsAbs() {
		return nil, &archiveerr.EncodingError{Reason: fmt.Sprintf("handshake URL %q is not absolute", raw)}
	}
	return parsed, nil
}
