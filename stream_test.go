package mqttflow

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler forwards stream callbacks to channels.
type recordingHandler struct {
	data    chan []byte
	drained chan struct{}
	errs    chan error
	closed  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		data:    make(chan []byte, 64),
		drained: make(chan struct{}, 8),
		errs:    make(chan error, 8),
		closed:  make(chan struct{}, 8),
	}
}

func (h *recordingHandler) streamData(_ *stream, data []byte) { h.data <- data }
func (h *recordingHandler) streamDrained(*stream)             { h.drained <- struct{}{} }
func (h *recordingHandler) streamError(_ *stream, err error)  { h.errs <- err }
func (h *recordingHandler) streamClosed(*stream)              { h.closed <- struct{}{} }

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

// failingReadConn returns err from every Read.
type failingReadConn struct {
	net.Conn
	err error
}

func (c *failingReadConn) Read([]byte) (int, error) { return 0, c.err }

func newTestStream(t *testing.T, conn Conn, highWater int, writeTimeout time.Duration) (*stream, *recordingHandler) {
	t.Helper()

	l := newEventLoop()
	t.Cleanup(l.stop)

	h := newRecordingHandler()
	s := newStream(conn, l, h, highWater, writeTimeout)
	s.start()
	t.Cleanup(s.close)
	return s, h
}

func TestStreamReceivesData(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	_, h := newTestStream(t, client, 0, 0)

	_, err := server.Write([]byte{0xD0, 0x00})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xD0, 0x00}, waitFor(t, h.data, "data"))
}

func TestStreamWritesInOrder(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	s, _ := newTestStream(t, client, 0, 0)

	for i := range 10 {
		assert.True(t, s.write([]byte{byte(i)}))
	}

	got := make([]byte, 10)
	require.NoError(t, server.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := io.ReadFull(server, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestStreamBackpressure(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	s, h := newTestStream(t, client, 4, 0)

	// net.Pipe blocks writes until the peer reads, so nothing is flushed yet.
	assert.True(t, s.write([]byte("abc")))
	assert.False(t, s.write([]byte("def")))
	assert.Len(t, h.drained, 0)

	got := make([]byte, 6)
	require.NoError(t, server.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := io.ReadFull(server, got)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)

	waitFor(t, h.drained, "drain")
	assert.True(t, s.write([]byte("g")))
}

func TestStreamPeerClose(t *testing.T) {
	client, server := net.Pipe()

	s, h := newTestStream(t, client, 0, 0)
	server.Close()

	waitFor(t, h.closed, "close")
	assert.False(t, s.isOpen())
	assert.Len(t, h.errs, 0)
}

func TestStreamLocalClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	s, h := newTestStream(t, client, 0, 0)
	s.close()
	s.close()

	waitFor(t, h.closed, "close")
	assert.False(t, s.isOpen())
	assert.True(t, s.write([]byte("ignored")))

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.closed, 0)
	assert.Len(t, h.errs, 0)
}

func TestStreamReadError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	cause := errors.New("connection reset by peer")
	_, h := newTestStream(t, &failingReadConn{Conn: client, err: cause}, 0, 0)

	assert.ErrorIs(t, waitFor(t, h.errs, "error"), cause)
	waitFor(t, h.closed, "close")
}

func TestStreamWriteTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	s, h := newTestStream(t, client, 0, 20*time.Millisecond)
	s.write(bytes.Repeat([]byte{0x30}, 8))

	err := waitFor(t, h.errs, "write error")
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	waitFor(t, h.closed, "close")
}

func TestIsClosedConnError(t *testing.T) {
	assert.True(t, isClosedConnError(io.EOF))
	assert.True(t, isClosedConnError(net.ErrClosed))
	assert.False(t, isClosedConnError(io.ErrUnexpectedEOF))
	assert.False(t, isClosedConnError(errors.New("reset")))
}
