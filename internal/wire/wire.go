// Package wire builds and parses the XML envelopes exchanged with a debug
// server. One envelope travels per WebSocket text message; requests carry a
// decimal token attribute injected just before transmission, and the server
// echoes the same token on the matching reply.
package wire

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// Subprotocol is the WebSocket sub-protocol negotiated with the debug server.
const Subprotocol = "dedbg"

// RootPath is the node path selected on a fresh connection.
const RootPath = "/"

// MaxMessageSize bounds a single inbound message. A frame sequence that
// exceeds it closes the connection with a "message too large" indication.
const MaxMessageSize = 1 << 20

// Attribute and tag names used on the wire.
const (
	tokenAttr = "token"
	nodeAttr  = "node"

	opUse     = "use"
	opExecute = "execute"
	opMembers = "member"
	opList    = "list"

	faultTag = "exception"
)

// Envelope is an outbound request document awaiting a token stamp.
type Envelope struct {
	doc *etree.Document
}

func newEnvelope(op string) *Envelope {
	doc := etree.NewDocument()
	doc.CreateElement(op)
	return &Envelope{doc: doc}
}

// NewUse builds a `use` envelope selecting the given node path.
func NewUse(node string) *Envelope {
	e := newEnvelope(opUse)
	e.doc.Root().CreateAttr(nodeAttr, node)
	return e
}

// NewExecute builds an `execute` envelope carrying free-form command text.
func NewExecute(command string) *Envelope {
	e := newEnvelope(opExecute)
	e.doc.Root().SetText(command)
	return e
}

// NewMembers builds a `member` envelope listing the current node's members.
func NewMembers() *Envelope {
	return newEnvelope(opMembers)
}

// NewList builds a `list` envelope. The recursive flag travels as the `r`
// attribute.
func NewList(recursive bool) *Envelope {
	e := newEnvelope(opList)
	e.doc.Root().CreateAttr("r", strconv.FormatBool(recursive))
	return e
}

// Op returns the operation name (the root tag).
func (e *Envelope) Op() string {
	return e.doc.Root().Tag
}

// StampToken injects the request token attribute. A zero token is never
// stamped by callers; zero is reserved for unsolicited server notifications.
func (e *Envelope) StampToken(token uint32) {
	e.doc.Root().CreateAttr(tokenAttr, strconv.FormatUint(uint64(token), 10))
}

// Token returns the stamped token, or 0 if none has been stamped yet.
func (e *Envelope) Token() uint32 {
	return tokenOf(e.doc.Root())
}

// Bytes serializes the envelope for transmission.
func (e *Envelope) Bytes() ([]byte, error) {
	b, err := e.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", e.Op(), err)
	}
	return b, nil
}

// Reply is a parsed inbound document.
type Reply struct {
	doc *etree.Document
}

// ParseReply parses one inbound message into a reply document.
func ParseReply(data []byte) (*Reply, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parse reply: document has no root element")
	}
	return &Reply{doc: doc}, nil
}

// Token returns the echoed request token, or 0 for unsolicited notifications
// and replies whose token attribute is missing or malformed.
func (r *Reply) Token() uint32 {
	return tokenOf(r.doc.Root())
}

// IsFault reports whether the server marked this reply as a remote exception.
func (r *Reply) IsFault() bool {
	return r.doc.Root().Tag == faultTag
}

// Fault extracts the remote fault carried by an exception reply, or nil for
// ordinary replies.
func (r *Reply) Fault() *RemoteFault {
	root := r.doc.Root()
	if root.Tag != faultTag {
		return nil
	}
	f := &RemoteFault{
		Message: root.SelectAttrValue("message", ""),
		Type:    root.SelectAttrValue("type", ""),
	}
	if st := root.SelectElement("stackTrace"); st != nil {
		f.StackTrace = st.Text()
	}
	return f
}

// Node returns the server-reported node path, or fallback when the reply
// carries none.
func (r *Reply) Node(fallback string) string {
	return r.doc.Root().SelectAttrValue(nodeAttr, fallback)
}

// Root exposes the reply's root element for value marshalling.
func (r *Reply) Root() *etree.Element {
	return r.doc.Root()
}

// Doc exposes the raw reply document. `list` replies are returned to the
// caller this way; the caller interprets the structure.
func (r *Reply) Doc() *etree.Document {
	return r.doc
}

func tokenOf(root *etree.Element) uint32 {
	attr := root.SelectAttrValue(tokenAttr, "")
	if attr == "" {
		return 0
	}
	tok, err := strconv.ParseUint(attr, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(tok)
}
