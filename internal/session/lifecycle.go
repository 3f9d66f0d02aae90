package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dedbg/dedbg/internal/wire"
)

// run is the connection lifecycle loop: Disconnected -> Connecting -> Open,
// back to Disconnected on failure, terminal on disposal. It owns the
// physical connection for its entire life; senders only ever snapshot it.
func (s *Session) run() {
	defer close(s.loopDone)

	// Failure signatures persist across attempts so repeated identical
	// failures do not spam the hooks.
	var lastDialSig, lastReadSig string

	for s.ctx.Err() == nil {
		ws, err := s.dial(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if sig := err.Error(); sig != lastDialSig {
				lastDialSig = sig
				s.obs.ConnectionFailure(err)
			}
			if !s.pause(s.retryDelay) {
				return
			}
			continue
		}
		lastDialSig = ""

		cctx, ccancel := context.WithCancel(s.ctx)
		c := &conn{ws: ws, ctx: cctx, cancel: ccancel}
		s.setCurrent(c)
		s.connects.Add(1)
		s.obs.ConnectionEstablished()

		s.restorePath()
		s.receive(c, &lastReadSig)

		// Teardown. Swapping the handle out happens before cancelling the
		// scope, so a sender can no longer bind a request to a dead
		// connection whose futures were already flushed.
		s.setCurrent(nil)
		if !s.disposed.Load() {
			s.drops.Add(1)
			s.obs.ConnectionLost()
		}
		ccancel()
		s.pending.CancelAll()
		s.clearUse()
		ws.Close()

		if !s.pause(s.retryDelay) {
			return
		}
	}
}

// restorePath re-establishes session state on a fresh connection: a non-root
// path recorded from a prior connection is re-used without blocking the
// loop on its outcome; otherwise the session starts at the root.
func (s *Session) restorePath() {
	s.pathMu.Lock()
	p := s.path
	s.pathMu.Unlock()

	if p == wire.RootPath || p == "" {
		s.setPath(wire.RootPath)
		return
	}
	if _, _, _, err := s.sendUse(p); err != nil {
		// The receive loop will notice the broken connection on its own.
		s.faults.Add(1)
		s.obs.CommunicationFault(fmt.Errorf("restore %s: %w", p, err))
	}
}

// receive reads and dispatches messages until the connection fails. Parse
// failures are reported and skipped; transport failures end the loop.
func (s *Session) receive(c *conn, lastReadSig *string) {
	c.ws.SetReadLimit(wire.MaxMessageSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if s.disposed.Load() || s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				// Reassembly exceeded the message budget; tell the server
				// why before dropping the connection.
				msg := websocket.FormatCloseMessage(websocket.CloseMessageTooBig, "message too large")
				_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			}
			s.faults.Add(1)
			if sig := err.Error(); sig != *lastReadSig {
				*lastReadSig = sig
				s.obs.CommunicationFault(fmt.Errorf("read: %w", err))
			}
			return
		}
		*lastReadSig = ""

		reply, err := wire.ParseReply(data)
		if err != nil {
			// Malformed document: report and keep reading.
			s.faults.Add(1)
			s.obs.CommunicationFault(err)
			continue
		}
		s.dispatch(reply)
	}
}

// dispatch routes one reply. Token 0 is an unsolicited server notification,
// reserved and currently ignored. A token matching the in-flight `use`
// updates the node path right here on the receive goroutine, so the update
// is ordered before any later reply's dispatch; everything else resolves
// through the pending table, and resolution itself never blocks on the
// waiter.
func (s *Session) dispatch(reply *wire.Reply) {
	tok := reply.Token()
	if tok == 0 {
		return
	}

	if use := s.takeUse(tok); use != nil {
		if fault := reply.Fault(); fault != nil {
			s.setPath(wire.RootPath)
			use.fut.Fail(fault)
		} else {
			s.setPath(reply.Node(use.node))
			use.fut.Resolve(reply)
		}
		s.pending.Drop(tok)
		return
	}

	fut := s.pending.Remove(tok)
	if fut == nil {
		// Stale token: the request was cancelled or never existed.
		return
	}
	if fault := reply.Fault(); fault != nil {
		fut.Fail(fault)
		return
	}
	fut.Resolve(reply)
}

// takeUse claims the in-flight use request if its token matches.
func (s *Session) takeUse(tok uint32) *useRequest {
	s.pathMu.Lock()
	defer s.pathMu.Unlock()
	if s.use == nil || s.use.token != tok {
		return nil
	}
	use := s.use
	s.use = nil
	return use
}

func (s *Session) clearUse() {
	s.pathMu.Lock()
	s.use = nil
	s.pathMu.Unlock()
}

// pause sleeps on the session clock, returning false when disposal fires
// first.
func (s *Session) pause(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	timer := s.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
