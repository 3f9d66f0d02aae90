package wire

import "fmt"

// RemoteFault is a server-reported error delivered as a reply rather than a
// transport error. It reaches only the waiter of the request it answers.
type RemoteFault struct {
	Message    string // human-readable failure description
	Type       string // remote exception category name
	StackTrace string // remote stack trace, empty when the server omits it
}

func (f *RemoteFault) Error() string {
	if f.Type == "" {
		return fmt.Sprintf("remote fault: %s", f.Message)
	}
	return fmt.Sprintf("remote fault [%s]: %s", f.Type, f.Message)
}
