// Package output renders session results and lifecycle events for the CLI,
// either as NDJSON for machine consumers or as text/tables for humans.
package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dedbg/dedbg/internal/value"
)

// NDJSONWriter emits one JSON object per line. Safe for concurrent use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter wraps w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w)}
}

// Write emits one event object.
func (n *NDJSONWriter) Write(event any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enc.Encode(event)
}

// WriteError emits a machine-readable failure.
func (n *NDJSONWriter) WriteError(code, message string, hint ...string) {
	e := ErrorEvent{Type: "error", Code: code, Message: message}
	if len(hint) > 0 {
		e.Hint = hint[0]
	}
	n.Write(e)
}

// WriteValues emits one result event for a value sequence.
func (n *NDJSONWriter) WriteValues(vals []value.ClientValue) error {
	return n.Write(ResultEvent{Type: "result", Values: lo.Map(vals, func(v value.ClientValue, _ int) ValueJSON {
		return toValueJSON(v)
	})})
}

// ErrorEvent is an NDJSON failure record.
type ErrorEvent struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ResultEvent carries the values a command returned.
type ResultEvent struct {
	Type   string      `json:"type"` // "result"
	Values []ValueJSON `json:"values"`
}

// LifecycleEvent reports a connection state change from a watch session.
type LifecycleEvent struct {
	Type      string `json:"type"` // "connection"
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// PathEvent reports a used-node change from a watch session.
type PathEvent struct {
	Type string `json:"type"` // "path"
	Old  string `json:"old"`
	New  string `json:"new"`
}

// NewLifecycleEvent stamps a connection state change.
func NewLifecycleEvent(state string, err error) LifecycleEvent {
	e := LifecycleEvent{
		Type:      "connection",
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// ValueJSON is the JSON shape of one client value. Table values carry their
// children recursively and no scalar value.
type ValueJSON struct {
	Name     string      `json:"name"`
	TypeName string      `json:"typeName"`
	Kind     string      `json:"kind,omitempty"`
	Value    any         `json:"value,omitempty"`
	Values   []ValueJSON `json:"values,omitempty"`
}

func toValueJSON(v value.ClientValue) ValueJSON {
	out := ValueJSON{Name: v.Name, TypeName: v.TypeName, Kind: string(v.Kind)}
	if nested, ok := v.Table(); ok {
		out.Values = lo.Map(nested, func(n value.ClientValue, _ int) ValueJSON {
			return toValueJSON(n)
		})
		return out
	}
	out.Value = v.Value
	return out
}
