package mqttflow

// ProducerInterceptor sees every message passed to Publish before the
// outgoing flow is built. Interceptors run in registration order, each one
// receiving the result of the previous.
type ProducerInterceptor interface {
	// OnSend returns the message to publish. Returning nil drops it and
	// the publish fails with ErrMessageDropped.
	//
	// The message is not a copy; use msg.Clone() to keep the caller's value intact.
	OnSend(msg *Message) *Message
}

// ConsumerInterceptor sees every inbound message before its MessageEvent
// is emitted. Interceptors run in registration order.
type ConsumerInterceptor interface {
	// OnConsume returns the message to deliver. Returning nil suppresses
	// the MessageEvent; the broker is still acknowledged.
	OnConsume(msg *Message) *Message
}

// ProducerInterceptorFunc adapts a function to ProducerInterceptor.
type ProducerInterceptorFunc func(msg *Message) *Message

// OnSend calls f(msg).
func (f ProducerInterceptorFunc) OnSend(msg *Message) *Message { return f(msg) }

// ConsumerInterceptorFunc adapts a function to ConsumerInterceptor.
type ConsumerInterceptorFunc func(msg *Message) *Message

// OnConsume calls f(msg).
func (f ConsumerInterceptorFunc) OnConsume(msg *Message) *Message { return f(msg) }

func applyProducerInterceptors(logger Logger, chain []ProducerInterceptor, msg *Message) *Message {
	return runInterceptors(logger, "producer", chain, msg, ProducerInterceptor.OnSend)
}

func applyConsumerInterceptors(logger Logger, chain []ConsumerInterceptor, msg *Message) *Message {
	return runInterceptors(logger, "consumer", chain, msg, ConsumerInterceptor.OnConsume)
}

// runInterceptors passes msg through chain. A nil result stops the chain.
// A panicking interceptor is logged and skipped with its input unchanged.
func runInterceptors[I any](logger Logger, kind string, chain []I, msg *Message, call func(I, *Message) *Message) *Message {
	for i, interceptor := range chain {
		if msg == nil {
			return nil
		}
		msg = callInterceptor(logger, kind, i, interceptor, msg, call)
	}
	return msg
}

func callInterceptor[I any](logger Logger, kind string, index int, interceptor I, msg *Message, call func(I, *Message) *Message) (result *Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(kind+" interceptor panic", LogFields{
				LogFieldTopic:       msg.Topic,
				LogFieldError:       r,
				"interceptor_index": index,
			})
			result = msg
		}
	}()
	return call(interceptor, msg)
}
