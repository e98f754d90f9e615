package mqttflow

import (
	"fmt"
	"time"
)

// FlowCode names the kind of interaction a Flow drives. Successful flows
// emit the event of the same name unless they are silent.
type FlowCode string

// Flow codes.
const (
	FlowConnect     FlowCode = "connect"
	FlowDisconnect  FlowCode = "disconnect"
	FlowPing        FlowCode = "ping"
	FlowSubscribe   FlowCode = "subscribe"
	FlowUnsubscribe FlowCode = "unsubscribe"
	FlowPublish     FlowCode = "publish"
	FlowMessage     FlowCode = "message"
)

// Flow is one MQTT interaction modeled as a small state machine. The engine
// calls Start once, then for every inbound packet the flow Accepts it calls
// Next. A flow is done once Finished reports true.
type Flow interface {
	// Code returns the flow kind.
	Code() FlowCode

	// Start returns the first packet to send, or nil if there is nothing to send.
	Start() (Packet, error)

	// Accept reports whether the inbound packet belongs to this flow.
	Accept(packet Packet) bool

	// Next consumes an accepted packet and returns the next packet to send, or nil.
	Next(packet Packet) (Packet, error)

	// Finished reports whether the flow reached a terminal state.
	Finished() bool

	// Success reports whether a finished flow succeeded.
	Success() bool

	// Result returns the value produced by a successful flow.
	Result() any

	// ErrorMessage describes why an unsuccessful flow failed.
	ErrorMessage() string
}

// flowFailure is implemented by flows that carry a typed failure cause.
type flowFailure interface {
	Err() error
}

// flowAborter is implemented by flows that can be terminated from outside,
// releasing whatever they hold.
type flowAborter interface {
	abort(err error)
}

// flowState holds the terminal state shared by the built-in flows.
type flowState struct {
	finished bool
	success  bool
	result   any
	err      error
	release  func()
}

// Finished reports whether the flow reached a terminal state.
func (s *flowState) Finished() bool { return s.finished }

// Success reports whether the flow succeeded.
func (s *flowState) Success() bool { return s.success }

// Result returns the value produced by a successful flow.
func (s *flowState) Result() any { return s.result }

// ErrorMessage describes why the flow failed.
func (s *flowState) ErrorMessage() string {
	if s.err == nil {
		return ""
	}
	return s.err.Error()
}

// Err returns the failure cause.
func (s *flowState) Err() error { return s.err }

func (s *flowState) succeed(result any) {
	if s.finished {
		return
	}
	s.finished = true
	s.success = true
	s.result = result
	s.releaseOnce()
}

func (s *flowState) fail(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	s.releaseOnce()
}

func (s *flowState) abort(err error) {
	s.fail(err)
}

func (s *flowState) releaseOnce() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// flowWrapper is the engine side bookkeeping for a running flow.
type flowWrapper struct {
	id     uint64
	flow   Flow
	packet Packet
	silent bool

	// complete receives the outcome exactly once.
	complete func(result any, err error)

	// transform maps the flow result before it is emitted and delivered.
	transform func(any) any

	// ownsFailure marks flows whose failures the completion reports itself.
	ownsFailure bool

	timer   *loopTimer
	started time.Time
	settled bool
}

// flowParams configures how startFlow runs a flow.
type flowParams struct {
	silent      bool
	ownsFailure bool
	timeout     time.Duration
	complete    func(result any, err error)
	transform   func(any) any
}

// discardResult is the completion for flows nobody waits on.
func discardResult(any, error) {}

// completeFuture adapts a typed future to a flow completion callback.
func completeFuture[T any](f *Future[T]) func(any, error) {
	return func(result any, err error) {
		if err != nil {
			f.reject(err)
			return
		}
		if result == nil {
			var zero T
			f.resolve(zero)
			return
		}
		v, ok := result.(T)
		if !ok {
			f.reject(fmt.Errorf("%w: unexpected result %T", ErrFlowFailed, result))
			return
		}
		f.resolve(v)
	}
}
