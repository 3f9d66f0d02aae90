package session

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Observer receives session lifecycle callbacks. Implementations must be
// safe for calls from the session's background goroutine and must not block;
// a blocking observer stalls the reconnect loop.
type Observer interface {
	// ConnectionEstablished fires after a physical connection opens.
	ConnectionEstablished()
	// ConnectionLost fires when an established connection drops. It does not
	// fire when the session itself is being closed.
	ConnectionLost()
	// ConnectionFailure fires when a connection attempt fails. Repeated
	// identical failures are suppressed; only a changed failure retriggers it.
	ConnectionFailure(err error)
	// CommunicationFault fires on malformed replies and read failures on an
	// open connection. Read failures are deduplicated like dial failures.
	CommunicationFault(err error)
}

// NopObserver ignores every callback. It is the default.
type NopObserver struct{}

func (NopObserver) ConnectionEstablished()   {}
func (NopObserver) ConnectionLost()          {}
func (NopObserver) ConnectionFailure(error)  {}
func (NopObserver) CommunicationFault(error) {}

// LogObserver reports lifecycle events through a zap logger.
type LogObserver struct {
	log *zap.SugaredLogger
}

// NewLogObserver wraps a logger as an observer.
func NewLogObserver(log *zap.SugaredLogger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) ConnectionEstablished() {
	o.log.Infow("connection established")
}

func (o *LogObserver) ConnectionLost() {
	o.log.Warnw("connection lost")
}

func (o *LogObserver) ConnectionFailure(err error) {
	o.log.Warnw("connection failure", "error", err)
}

func (o *LogObserver) CommunicationFault(err error) {
	o.log.Warnw("communication fault", "error", err)
}

// CredentialProvider injects authentication material into the WebSocket
// handshake. The default session supplies none.
type CredentialProvider interface {
	Apply(ctx context.Context, header http.Header) error
}

// CredentialFunc adapts a function to the CredentialProvider interface.
type CredentialFunc func(ctx context.Context, header http.Header) error

func (f CredentialFunc) Apply(ctx context.Context, header http.Header) error {
	return f(ctx, header)
}
