// Package mqttflow provides an asynchronous MQTT 3.1.1 client engine.
//
// This package implements the client side of the MQTT Version 3.1.1 OASIS Standard:
// https://docs.oasis-open.org/mqtt/mqtt/v3.1.1/mqtt-v3.1.1.html
//
// # Features
//
//   - One Engine per broker connection, driven by a single event loop goroutine
//   - Every operation returns a Future; nothing blocks the caller
//   - CONNECT, DISCONNECT, PING, SUBSCRIBE, UNSUBSCRIBE and PUBLISH modeled as flows
//   - QoS 0, 1 and 2 in both directions
//   - Keep-alive pings at three quarters of the negotiated interval
//   - Transport: TCP, TLS, WebSocket, WSS, Unix socket, QUIC, HTTP/SOCKS5 proxy
//   - Typed lifecycle events, interceptors, metrics and pluggable logging
//
// # Engine
//
// Create an engine, register handlers and connect:
//
//	engine, err := mqttflow.New(
//	    mqttflow.WithServer("tcp://localhost:1883"),
//	    mqttflow.WithClientID("my-client"),
//	    mqttflow.WithKeepAlive(30),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	engine.On(func(_ *mqttflow.Engine, ev mqttflow.Event) {
//	    if msg, ok := ev.(mqttflow.MessageEvent); ok {
//	        fmt.Printf("%s: %s\n", msg.Message.Topic, msg.Message.Payload)
//	    }
//	})
//
//	conn, err := engine.Connect(5 * time.Second).Await(ctx)
//
// Subscribe, Unsubscribe and Publish return immediately:
//
//	sub, err := engine.Subscribe("sensors/+/temperature", mqttflow.QoS1).Await(ctx)
//	msg, err := engine.Publish("sensors/1/temperature", []byte("21.5"), mqttflow.QoS1, false).Await(ctx)
//
// Disconnect sends DISCONNECT and resolves once the broker closed the transport:
//
//	_, err = engine.Disconnect(time.Second).Await(ctx)
//
// # Flows
//
// Each interaction is a Flow: Start produces the first packet, Accept and
// Next consume the broker's answers. Packets are handed to the transport one
// at a time in call order; inbound acknowledgements go to the first pending
// flow that accepts them. A custom FlowFactory can be supplied with
// WithFlowFactory.
//
// # Events
//
// Handlers registered with On or OnEvent receive ConnectEvent,
// DisconnectEvent, MessageEvent, PublishEvent, SubscribeEvent,
// UnsubscribeEvent, OpenEvent, CloseEvent, WarningEvent and ErrorEvent.
// Internal flows such as keep-alive pings emit no lifecycle events; their
// failures surface as WarningEvent.
//
// # Errors
//
// Misuse is rejected synchronously with a *LogicError:
//
//	_, err := engine.Subscribe("a/b", 0).Result()
//	if errors.Is(err, mqttflow.ErrNotConnected) {
//	    // not connected
//	}
//
// Runtime failures are reported through the future and an event:
//
//	var flowErr *mqttflow.FlowError
//	if errors.As(err, &flowErr) {
//	    log.Printf("%s failed: %s", flowErr.Code, flowErr.Message)
//	}
//
//	var connErr *mqttflow.ConnectError
//	if errors.As(err, &connErr) {
//	    log.Printf("broker refused: %s", connErr.ReturnCode)
//	}
//
// # Connection Manager
//
// Manager hands out one Engine per connection identity, so several parts of
// an application share a single broker session:
//
//	manager := mqttflow.NewManager()
//	engine, key, err := manager.GetOrCreate("tcp://broker:1883", mqttflow.WithClientID("gateway"))
//	defer manager.ShutdownAll(ctx)
//
// # Configuration
//
// Config loads engine settings from YAML:
//
//	cfg, err := mqttflow.LoadConfig("mqtt.yaml")
//	opts, err := cfg.Options()
//	engine, err := mqttflow.New(opts...)
//
// # Codec
//
// ReadPacket, WritePacket and EncodePacket work on single packets;
// StreamParser splits a byte stream into packets:
//
//	parser := mqttflow.NewStreamParser(mqttflow.MaxPacketSizeDefault)
//	for _, pkt := range parser.Push(data) {
//	    // handle pkt
//	}
package mqttflow
