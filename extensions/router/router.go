// Package router dispatches messages received by an engine to handlers
// selected by topic filter and message attributes.
package router

import (
	"regexp"
	"sort"
	"sync"

	"github.com/vitalvas/mqttflow"
)

// Handler processes an MQTT message.
type Handler func(msg *mqttflow.Message)

// Condition defines filtering criteria for message routing.
type Condition struct {
	topicFilter   *string
	qos           *byte
	retain        *bool
	payloadRegexp *regexp.Regexp
}

// ConditionOption configures a Condition.
type ConditionOption func(*Condition)

// WithTopic sets the topic filter for message matching.
// Supports MQTT wildcards: + (single level) and # (multi level).
func WithTopic(filter string) ConditionOption {
	return func(c *Condition) {
		c.topicFilter = &filter
	}
}

// WithQoS filters messages by QoS level.
func WithQoS(qos byte) ConditionOption {
	return func(c *Condition) {
		c.qos = &qos
	}
}

// WithRetain filters messages by the retain flag.
func WithRetain(retain bool) ConditionOption {
	return func(c *Condition) {
		c.retain = &retain
	}
}

// WithPayload filters messages whose payload matches the regexp pattern.
func WithPayload(pattern *regexp.Regexp) ConditionOption {
	return func(c *Condition) {
		c.payloadRegexp = pattern
	}
}

type registration struct {
	handler   Handler
	condition Condition
}

// Router dispatches messages to handlers based on conditions.
type Router struct {
	mu       sync.RWMutex
	handlers []registration
}

// New creates a new Router.
func New() *Router {
	return &Router{}
}

// Handle registers a handler with optional conditions.
//
// Examples:
//
//	r.Handle(handler, WithTopic("sensors/#"))
//	r.Handle(handler, WithTopic("sensors/#"), WithQoS(1))
//	r.Handle(handler, WithTopic("zigbee2mqtt/+/state"), WithPayload(regexp.MustCompile(`^online$`)))
func (r *Router) Handle(handler Handler, opts ...ConditionOption) {
	var cond Condition
	for _, opt := range opts {
		opt(&cond)
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, registration{
		handler:   handler,
		condition: cond,
	})
	r.mu.Unlock()
}

func (c *Condition) matches(msg *mqttflow.Message) bool {
	if c.topicFilter != nil && !mqttflow.TopicMatch(*c.topicFilter, msg.Topic) {
		return false
	}
	if c.qos != nil && *c.qos != msg.QoS {
		return false
	}
	if c.retain != nil && *c.retain != msg.Retain {
		return false
	}
	if c.payloadRegexp != nil && !c.payloadRegexp.Match(msg.Payload) {
		return false
	}
	return true
}

// Route dispatches a message to all matching handlers, in registration order.
func (r *Router) Route(msg *mqttflow.Message) {
	if msg == nil {
		return
	}

	r.mu.RLock()
	var matched []Handler
	for _, reg := range r.handlers {
		if reg.condition.matches(msg) {
			matched = append(matched, reg.handler)
		}
	}
	r.mu.RUnlock()

	for _, handler := range matched {
		handler(msg)
	}
}

// Filters returns the unique registered topic filters, sorted, so callers
// can subscribe to them after connecting.
func (r *Router) Filters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, reg := range r.handlers {
		if reg.condition.topicFilter != nil {
			seen[*reg.condition.topicFilter] = struct{}{}
		}
	}

	filters := make([]string, 0, len(seen))
	for filter := range seen {
		filters = append(filters, filter)
	}
	sort.Strings(filters)
	return filters
}

// Len returns the number of registered handlers.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes all handlers.
func (r *Router) Clear() {
	r.mu.Lock()
	r.handlers = nil
	r.mu.Unlock()
}

// EventHandler returns an engine event handler routing every MessageEvent.
//
//	engine.On(r.EventHandler())
func (r *Router) EventHandler() mqttflow.EventHandler {
	return func(_ *mqttflow.Engine, ev mqttflow.Event) {
		if msg, ok := ev.(mqttflow.MessageEvent); ok {
			r.Route(msg.Message)
		}
	}
}
