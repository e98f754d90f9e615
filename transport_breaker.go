package mqttflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrDialBreakerOpen is returned while the dial circuit breaker rejects attempts.
var ErrDialBreakerOpen = errors.New("dial circuit breaker open")

// BreakerSettings configures a BreakerDialer.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failed dials that opens the breaker.
	MaxFailures uint32

	// Timeout is how long the breaker stays open before a trial dial is allowed.
	Timeout time.Duration
}

// BreakerDialer wraps a Dialer with a circuit breaker so that an engine
// reconnecting against an unreachable broker fails fast instead of waiting
// for every dial to time out.
type BreakerDialer struct {
	dialer Dialer
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerDialer wraps dialer. Breaker state changes are logged at Warn.
func NewBreakerDialer(name string, dialer Dialer, settings BreakerSettings, logger Logger) *BreakerDialer {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("dial circuit breaker state changed", LogFields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &BreakerDialer{dialer: dialer, cb: cb}
}

// Dial connects through the wrapped Dialer unless the breaker is open.
func (d *BreakerDialer) Dial(ctx context.Context, address string) (Conn, error) {
	result, err := d.cb.Execute(func() (interface{}, error) {
		return d.dialer.Dial(ctx, address)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrDialBreakerOpen, address)
		}
		return nil, err
	}
	return result.(Conn), nil
}

// State returns the current breaker state name: closed, half-open or open.
func (d *BreakerDialer) State() string {
	return d.cb.State().String()
}
