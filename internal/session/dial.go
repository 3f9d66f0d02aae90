package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dedbg/dedbg/internal/wire"
)

const handshakeTimeout = 10 * time.Second

// normalizeAddr rewrites a web-style address to its WebSocket equivalent:
// http becomes ws, https becomes wss. A bare host:port gets the ws scheme.
func normalizeAddr(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		// A bare host:port does not parse as a URL with a host; retry with
		// an explicit scheme instead of guessing at the parts.
		u, err = url.Parse("ws://" + addr)
		if err != nil {
			return "", fmt.Errorf("invalid server address %q: %w", addr, err)
		}
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server address %q: unsupported scheme %q", addr, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server address %q: missing host", addr)
	}
	return u.String(), nil
}

// dial opens one physical connection, negotiating the debug sub-protocol and
// attaching credentials when a provider is configured.
func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.creds != nil {
		if err := s.creds.Apply(ctx, header); err != nil {
			return nil, fmt.Errorf("apply credentials: %w", err)
		}
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{wire.Subprotocol},
		HandshakeTimeout: handshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, s.addr, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.addr, err)
	}
	return ws, nil
}
