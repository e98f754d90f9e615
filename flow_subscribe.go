package mqttflow

import (
	"errors"
	"fmt"
)

// ErrSubscriptionRejected is the cause of a subscribe flow whose filter the broker refused.
var ErrSubscriptionRejected = errors.New("subscription rejected by broker")

// subscribeFlow sends SUBSCRIBE and waits for the matching SUBACK. The
// result is the first subscription with the QoS granted by the broker.
type subscribeFlow struct {
	flowState
	ids           *PacketIDManager
	subscriptions []Subscription
	packetID      uint16
}

func (f *subscribeFlow) Code() FlowCode { return FlowSubscribe }

func (f *subscribeFlow) Start() (Packet, error) {
	if len(f.subscriptions) == 0 {
		return nil, ErrNoTopicFilters
	}

	id, err := allocateID(f.ids, &f.flowState)
	if err != nil {
		return nil, err
	}
	f.packetID = id

	pkt := &SubscribePacket{PacketID: id, Subscriptions: f.subscriptions}
	if err := pkt.Validate(); err != nil {
		f.fail(err)
		return nil, err
	}
	return pkt, nil
}

func (f *subscribeFlow) Accept(packet Packet) bool {
	suback, ok := packet.(*SubackPacket)
	return ok && !f.finished && suback.PacketID == f.packetID
}

func (f *subscribeFlow) Next(packet Packet) (Packet, error) {
	suback := packet.(*SubackPacket)

	if len(suback.ReturnCodes) != len(f.subscriptions) {
		f.fail(fmt.Errorf("%w: SUBACK has %d return codes for %d filters",
			ErrMalformedPacket, len(suback.ReturnCodes), len(f.subscriptions)))
		return nil, nil
	}

	granted := make([]Subscription, len(f.subscriptions))
	for i, sub := range f.subscriptions {
		code := suback.ReturnCodes[i]
		if code == SubackFailure {
			f.fail(fmt.Errorf("%w: %s", ErrSubscriptionRejected, sub.Filter))
			return nil, nil
		}
		granted[i] = Subscription{Filter: sub.Filter, QoS: code}
	}

	f.succeed(granted[0])
	return nil, nil
}

// unsubscribeFlow sends UNSUBSCRIBE and waits for the matching UNSUBACK.
// The result is the list of filters removed.
type unsubscribeFlow struct {
	flowState
	ids           *PacketIDManager
	subscriptions []Subscription
	packetID      uint16
}

func (f *unsubscribeFlow) Code() FlowCode { return FlowUnsubscribe }

func (f *unsubscribeFlow) Start() (Packet, error) {
	if len(f.subscriptions) == 0 {
		return nil, ErrNoTopicFilters
	}

	id, err := allocateID(f.ids, &f.flowState)
	if err != nil {
		return nil, err
	}
	f.packetID = id

	filters := make([]string, len(f.subscriptions))
	for i, sub := range f.subscriptions {
		filters[i] = sub.Filter
	}

	pkt := &UnsubscribePacket{PacketID: id, TopicFilters: filters}
	if err := pkt.Validate(); err != nil {
		f.fail(err)
		return nil, err
	}
	return pkt, nil
}

func (f *unsubscribeFlow) Accept(packet Packet) bool {
	unsuback, ok := packet.(*UnsubackPacket)
	return ok && !f.finished && unsuback.PacketID == f.packetID
}

func (f *unsubscribeFlow) Next(Packet) (Packet, error) {
	f.succeed(f.subscriptions)
	return nil, nil
}
