// Package session implements the client side of the remote interactive
// debugging protocol: a persistent WebSocket connection with a reconnect
// loop, token-correlated request/response multiplexing, and restoration of
// the currently used remote node across reconnects.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beevik/etree"
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/dedbg/dedbg/internal/pending"
	"github.com/dedbg/dedbg/internal/value"
	"github.com/dedbg/dedbg/internal/wire"
)

var (
	// ErrNotConnected is returned synchronously when a send is attempted
	// while no connection is open. Nothing is registered in that case.
	ErrNotConnected = errors.New("session: not connected")
	// ErrClosed is returned for operations on a closed session.
	ErrClosed = errors.New("session: closed")
)

const defaultRetryDelay = time.Second

// conn is one physical connection attempt. Its cancellation scope is
// distinct from the session-wide one: tearing down a connection cancels
// only the requests bound to it, never the session.
type conn struct {
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// useRequest tracks the in-flight `use`, if any. Its reply updates the
// current node path directly on the receive loop, ahead of any later
// request's dispatch.
type useRequest struct {
	token uint32
	node  string
	fut   *pending.Future
}

// Stats counts session activity since construction.
type Stats struct {
	Connects uint64 // successful connection attempts
	Drops    uint64 // established connections lost (not counting disposal)
	Requests uint64 // envelopes sent expecting a reply
	Faults   uint64 // communication faults reported
}

// Session is one logical debug connection. All methods are safe for
// concurrent use; the zero value is not usable, construct with New.
type Session struct {
	addr       string
	creds      CredentialProvider
	obs        Observer
	clock      clock.Clock
	retryDelay time.Duration

	pending *pending.Table

	// connMu guards the current connection handle and its cancel. Readers
	// snapshot under the lock and never hold it across blocking calls.
	connMu sync.Mutex
	cur    *conn

	// writeMu serializes frame writes; the transport allows one writer.
	writeMu sync.Mutex

	// pathMu guards the node path, its subscribers, and the in-flight use.
	pathMu   sync.Mutex
	path     string
	pathSubs []func(old, new string)
	use      *useRequest

	defaultTimeout atomic.Int64 // nanoseconds, 0 = none

	connects atomic.Uint64
	drops    atomic.Uint64
	requests atomic.Uint64
	faults   atomic.Uint64

	ctx      context.Context
	cancel   context.CancelFunc
	disposed atomic.Bool
	loopDone chan struct{}
}

// Option configures a Session at construction.
type Option func(*Session)

// WithObserver installs a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(s *Session) { s.obs = obs }
}

// WithCredentials installs a credential provider for the handshake.
func WithCredentials(creds CredentialProvider) Option {
	return func(s *Session) { s.creds = creds }
}

// WithDefaultTimeout bounds every request whose caller context carries no
// cancellation source of its own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Session) { s.defaultTimeout.Store(int64(d)) }
}

// WithClock substitutes the timer source, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithRetryDelay overrides the pause between reconnect attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Session) { s.retryDelay = d }
}

// New starts a session against addr. http/https addresses are rewritten to
// ws/wss. The connection lifecycle runs on a background goroutine until
// Close; the first connection attempt may still be in flight when New
// returns.
func New(addr string, opts ...Option) (*Session, error) {
	normalized, err := normalizeAddr(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		addr:       normalized,
		obs:        NopObserver{},
		clock:      clock.New(),
		retryDelay: defaultRetryDelay,
		pending:    pending.NewTable(time.Now().UnixNano()),
		path:       wire.RootPath,
		ctx:        ctx,
		cancel:     cancel,
		loopDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s, nil
}

// Addr returns the normalized server address.
func (s *Session) Addr() string {
	return s.addr
}

// IsConnected reports whether a physical connection is currently open.
func (s *Session) IsConnected() bool {
	return s.current() != nil
}

// Path returns the currently used remote node path.
func (s *Session) Path() string {
	s.pathMu.Lock()
	defer s.pathMu.Unlock()
	return s.path
}

// OnPathChange registers a callback fired whenever the used node path
// actually changes. Setting the path to its current value fires nothing.
// Callbacks run on the goroutine that applied the change.
func (s *Session) OnPathChange(fn func(old, new string)) {
	s.pathMu.Lock()
	defer s.pathMu.Unlock()
	s.pathSubs = append(s.pathSubs, fn)
}

// SetDefaultTimeout changes the timeout applied to requests without a
// caller cancellation source. Zero disables it.
func (s *Session) SetDefaultTimeout(d time.Duration) {
	s.defaultTimeout.Store(int64(d))
}

// Stats returns activity counters.
func (s *Session) Stats() Stats {
	return Stats{
		Connects: s.connects.Load(),
		Drops:    s.drops.Load(),
		Requests: s.requests.Load(),
		Faults:   s.faults.Load(),
	}
}

// Use selects the remote node against which subsequent commands execute.
// On success the current path becomes the server-reported one; a remote
// fault resets it to the root and is returned to the caller.
func (s *Session) Use(ctx context.Context, node string) error {
	c, tok, fut, err := s.sendUse(node)
	if err != nil {
		return err
	}
	if _, err = s.await(ctx, c, fut); errors.Is(err, pending.ErrCancelled) {
		s.pending.Drop(tok)
	}
	return err
}

// Execute runs free-form command text on the current node and returns the
// reply's values.
func (s *Session) Execute(ctx context.Context, command string) ([]value.ClientValue, error) {
	reply, err := s.call(ctx, wire.NewExecute(command))
	if err != nil {
		return nil, err
	}
	return value.ParseReturn(reply.Root()), nil
}

// Members lists the members of the current node.
func (s *Session) Members(ctx context.Context) ([]value.ClientValue, error) {
	reply, err := s.call(ctx, wire.NewMembers())
	if err != nil {
		return nil, err
	}
	return value.ParseReturn(reply.Root()), nil
}

// List returns the raw listing document; the caller interprets its
// structure.
func (s *Session) List(ctx context.Context, recursive bool) (*etree.Document, error) {
	reply, err := s.call(ctx, wire.NewList(recursive))
	if err != nil {
		return nil, err
	}
	return reply.Doc(), nil
}

// Close disposes the session: best-effort graceful close of the active
// connection, cancellation of everything in flight, then waits for the
// lifecycle loop to exit. No observer callback fires after Close returns.
// Subsequent calls are no-ops.
func (s *Session) Close() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}
	if c := s.current(); c != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.ws.Close()
	}
	s.cancel()
	<-s.loopDone
	return nil
}

// call implements "build envelope, correlate, await, unwrap" for operations
// routed through the general pending table.
func (s *Session) call(ctx context.Context, env *wire.Envelope) (*wire.Reply, error) {
	c := s.current()
	if c == nil {
		if s.disposed.Load() {
			return nil, ErrClosed
		}
		return nil, ErrNotConnected
	}
	tok, fut := s.pending.Register()
	env.StampToken(tok)
	if err := s.write(c, env); err != nil {
		// The registration must be gone before the error propagates; no
		// caller ever waits on a request that was never sent.
		s.pending.Drop(tok)
		return nil, err
	}
	s.requests.Add(1)
	reply, err := s.await(ctx, c, fut)
	if errors.Is(err, pending.ErrCancelled) {
		// A cancelled wait is a terminal transition; a late reply for this
		// token is dropped as stale rather than resolving a dead slot.
		s.pending.Drop(tok)
	}
	return reply, err
}

// sendUse transmits a `use` envelope and records it as the in-flight use.
// It does not await, so the reconnect loop can restore the path without
// blocking on the outcome.
func (s *Session) sendUse(node string) (*conn, uint32, *pending.Future, error) {
	c := s.current()
	if c == nil {
		if s.disposed.Load() {
			return nil, 0, nil, ErrClosed
		}
		return nil, 0, nil, ErrNotConnected
	}

	tok, fut := s.pending.Register()
	env := wire.NewUse(node)
	env.StampToken(tok)

	s.pathMu.Lock()
	s.use = &useRequest{token: tok, node: node, fut: fut}
	s.pathMu.Unlock()

	if err := s.write(c, env); err != nil {
		s.pending.Drop(tok)
		s.pathMu.Lock()
		if s.use != nil && s.use.token == tok {
			s.use = nil
		}
		s.pathMu.Unlock()
		return nil, 0, nil, err
	}
	s.requests.Add(1)
	return c, tok, fut, nil
}

// await composes the request's cancellation sources: the connection scope
// always applies (a reconnect cancels the wait); a caller context is linked
// in when supplied; the session default timeout applies only when the caller
// brought no cancellation source of their own.
func (s *Session) await(ctx context.Context, c *conn, fut *pending.Future) (*wire.Reply, error) {
	wctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	callerCancellable := ctx != nil && ctx.Done() != nil
	if callerCancellable {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	if d := time.Duration(s.defaultTimeout.Load()); d > 0 && !callerCancellable {
		timer := s.clock.Timer(d)
		defer timer.Stop()
		go func() {
			select {
			case <-timer.C:
				cancel()
			case <-wctx.Done():
			}
		}()
	}

	return fut.Await(wctx)
}

func (s *Session) current() *conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.cur
}

func (s *Session) setCurrent(c *conn) {
	s.connMu.Lock()
	s.cur = c
	s.connMu.Unlock()
}

func (s *Session) write(c *conn, env *wire.Envelope) error {
	data, err := env.Bytes()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", env.Op(), err)
	}
	return nil
}

// setPath applies a node path change and notifies subscribers. Equal values
// are a no-op with no notification.
func (s *Session) setPath(newPath string) {
	s.pathMu.Lock()
	old := s.path
	if old == newPath {
		s.pathMu.Unlock()
		return
	}
	s.path = newPath
	subs := make([]func(old, new string), len(s.pathSubs))
	copy(subs, s.pathSubs)
	s.pathMu.Unlock()

	for _, fn := range subs {
		fn(old, newPath)
	}
}
