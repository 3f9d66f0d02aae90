package pending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dedbg/dedbg/internal/wire"
)

func reply(t *testing.T, xml string) *wire.Reply {
	t.Helper()
	r, err := wire.ParseReply([]byte(xml))
	require.NoError(t, err)
	return r
}

func TestFutureResolveOnce(t *testing.T) {
	fut := NewFuture()
	first := reply(t, `<return token="1"/>`)
	fut.Resolve(first)

	// Later completions are no-ops, not panics.
	fut.Fail(&wire.RemoteFault{Message: "late"})
	fut.Cancel()
	fut.Resolve(reply(t, `<return token="2"/>`))

	got, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestFutureFault(t *testing.T) {
	fut := NewFuture()
	fut.Fail(&wire.RemoteFault{Message: "boom", Type: "E"})

	_, err := fut.Await(context.Background())
	var fault *wire.RemoteFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "boom", fault.Message)
}

func TestFutureCancel(t *testing.T) {
	fut := NewFuture()
	fut.Cancel()

	_, err := fut.Await(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFutureAwaitContextCancellation(t *testing.T) {
	fut := NewFuture()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := fut.Await(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("Await did not observe context cancellation")
	}

	// The abandoned future is now terminally cancelled; a late resolve
	// cannot flip it back.
	fut.Resolve(reply(t, `<return token="1"/>`))
	_, err := fut.Await(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestTableRegisterRemove(t *testing.T) {
	tbl := NewTable(1)

	tok, fut := tbl.Register()
	assert.NotZero(t, tok)
	assert.Equal(t, 1, tbl.Len())

	assert.Same(t, fut, tbl.Remove(tok))
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.Remove(tok))
}

func TestTableTokensUniqueAmongOutstanding(t *testing.T) {
	tbl := NewTable(42)

	seen := make(map[uint32]bool)
	for i := 0; i < 1000; i++ {
		tok, _ := tbl.Register()
		require.False(t, seen[tok], "token %d issued twice while outstanding", tok)
		seen[tok] = true
	}
	assert.Equal(t, 1000, tbl.Len())
}

func TestTableDropLeavesFutureUnresolved(t *testing.T) {
	tbl := NewTable(1)
	tok, fut := tbl.Register()
	tbl.Drop(tok)

	assert.Equal(t, 0, tbl.Len())
	select {
	case <-fut.Done():
		t.Fatal("dropped future must not complete")
	default:
	}
}

func TestTableCancelAll(t *testing.T) {
	tbl := NewTable(1)

	var futures []*Future
	for i := 0; i < 5; i++ {
		_, fut := tbl.Register()
		futures = append(futures, fut)
	}

	tbl.CancelAll()
	assert.Equal(t, 0, tbl.Len())
	for _, fut := range futures {
		_, err := fut.Await(context.Background())
		assert.ErrorIs(t, err, ErrCancelled)
	}
}

func TestTableTokenWithoutRegistration(t *testing.T) {
	tbl := NewTable(1)
	tok := tbl.Token()
	assert.NotZero(t, tok)
	assert.Equal(t, 0, tbl.Len())
}
