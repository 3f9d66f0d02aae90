package cli

import (
	"fmt"
	"sync/atomic"

	"github.com/dedbg/dedbg/internal/output"
	"github.com/dedbg/dedbg/internal/session"
)

// WatchCmd stays connected and reports lifecycle and path events until
// interrupted. Useful for monitoring a flaky server and as a machine-readable
// event feed.
type WatchCmd struct {
	Node string `short:"n" default:"${config_node}" help:"Node to select once connected"`
}

// eventObserver forwards session lifecycle hooks to an NDJSON/text stream.
type eventObserver struct {
	globals *Globals
	ndjson  *output.NDJSONWriter
	events  atomic.Uint64
}

func (o *eventObserver) emit(state string, err error) {
	o.events.Add(1)
	if o.ndjson != nil {
		o.ndjson.Write(output.NewLifecycleEvent(state, err))
		return
	}
	if o.globals.Quiet {
		return
	}
	if err != nil {
		fmt.Fprintf(o.globals.Stderr, "connection %s: %v\n", state, err)
		return
	}
	fmt.Fprintf(o.globals.Stderr, "connection %s\n", state)
}

func (o *eventObserver) ConnectionEstablished()       { o.emit("established", nil) }
func (o *eventObserver) ConnectionLost()              { o.emit("lost", nil) }
func (o *eventObserver) ConnectionFailure(err error)  { o.emit("failure", err) }
func (o *eventObserver) CommunicationFault(err error) { o.emit("fault", err) }

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	ctx, cancel := commandContext()
	defer cancel()

	obs := &eventObserver{globals: globals}
	if globals.Format == "ndjson" {
		obs.ndjson = output.NewNDJSONWriter(globals.Stdout)
	}

	// Unlike the one-shot commands, watch does not fail fast on a down
	// server: the reconnect loop is the point.
	s, err := session.New(globals.Server,
		session.WithDefaultTimeout(globals.Timeout),
		session.WithRetryDelay(globals.Retry),
		session.WithObserver(obs),
	)
	if err != nil {
		return outputErrorCommon(globals, "CONNECT_FAILED", err.Error())
	}
	defer s.Close()

	s.OnPathChange(func(old, new string) {
		if obs.ndjson != nil {
			obs.ndjson.Write(output.PathEvent{Type: "path", Old: old, New: new})
			return
		}
		if !globals.Quiet {
			fmt.Fprintf(globals.Stderr, "path %s -> %s\n", old, new)
		}
	})

	if c.Node != "" {
		go func() {
			// Select the node once the first connection is up; after that
			// the reconnect loop restores it on its own.
			if err := waitConnected(ctx, s, globals.Timeout); err != nil {
				return
			}
			rctx, rcancel := requestContext(ctx, globals)
			defer rcancel()
			if err := s.Use(rctx, c.Node); err != nil {
				globals.Debug("initial use failed: %v", err)
			}
		}()
	}

	<-ctx.Done()

	stats := s.Stats()
	if obs.ndjson != nil {
		obs.ndjson.Write(map[string]any{
			"type":     "stats",
			"connects": stats.Connects,
			"drops":    stats.Drops,
			"requests": stats.Requests,
			"faults":   stats.Faults,
		})
	} else if !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "connects=%d drops=%d requests=%d faults=%d\n",
			stats.Connects, stats.Drops, stats.Requests, stats.Faults)
	}
	return nil
}
