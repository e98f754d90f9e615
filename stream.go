package mqttflow

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

const (
	streamReadBufferSize = 4096

	// defaultWriteHighWater is the amount of unsent bytes after which
	// stream.write reports backpressure.
	defaultWriteHighWater = 64 * 1024
)

// streamHandler receives stream events on the event loop.
type streamHandler interface {
	streamData(s *stream, data []byte)
	streamDrained(s *stream)
	streamError(s *stream, err error)
	streamClosed(s *stream)
}

// stream adapts a Conn to the event loop. A reader goroutine posts inbound
// data, a writer goroutine drains the outbound queue so write never blocks
// the loop. The close event is posted exactly once.
type stream struct {
	conn         Conn
	loop         *eventLoop
	handler      streamHandler
	highWater    int
	writeTimeout time.Duration

	mu        sync.Mutex
	queue     [][]byte
	pending   int
	needDrain bool
	closed    bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newStream(conn Conn, loop *eventLoop, handler streamHandler, highWater int, writeTimeout time.Duration) *stream {
	if highWater <= 0 {
		highWater = defaultWriteHighWater
	}
	return &stream{
		conn:         conn,
		loop:         loop,
		handler:      handler,
		highWater:    highWater,
		writeTimeout: writeTimeout,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

func (s *stream) start() {
	go s.readLoop()
	go s.writeLoop()
}

// write queues data for sending. It reports false when the unsent bytes
// exceed the high water mark; a drain event follows once they are flushed.
func (s *stream) write(data []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}
	s.queue = append(s.queue, data)
	s.pending += len(data)
	ok := s.pending <= s.highWater
	if !ok {
		s.needDrain = true
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return ok
}

// isOpen reports whether the stream still accepts writes.
func (s *stream) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// close shuts the connection down. The close event is posted once.
func (s *stream) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
		s.conn.Close()
		s.loop.post(func() { s.handler.streamClosed(s) })
	})
}

func (s *stream) remoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (s *stream) readLoop() {
	buf := make([]byte, streamReadBufferSize)

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.loop.post(func() { s.handler.streamData(s, data) })
		}

		if err != nil {
			if !s.isClosing() && !isClosedConnError(err) {
				s.loop.post(func() { s.handler.streamError(s, err) })
			}
			s.close()
			return
		}
	}
}

func (s *stream) writeLoop() {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				drain := s.needDrain
				s.needDrain = false
				s.mu.Unlock()

				if drain {
					s.loop.post(func() { s.handler.streamDrained(s) })
				}
				break
			}
			data := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			if s.writeTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}

			if _, err := s.conn.Write(data); err != nil {
				if !s.isClosing() {
					s.loop.post(func() { s.handler.streamError(s, err) })
				}
				s.close()
				return
			}

			s.mu.Lock()
			s.pending -= len(data)
			s.mu.Unlock()
		}
	}
}

func (s *stream) isClosing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// isClosedConnError reports errors that only signal an orderly close.
func isClosedConnError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
