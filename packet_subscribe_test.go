package mqttflow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePacketEncodeWire(t *testing.T) {
	p := &SubscribePacket{
		PacketID:      1,
		Subscriptions: []Subscription{{Filter: "a/+", QoS: QoS1}},
	}

	var buf bytes.Buffer
	_, err := p.Encode(&buf)
	require.NoError(t, err)

	want := []byte{
		0x82, 0x08,
		0x00, 0x01,
		0x00, 0x03, 'a', '/', '+',
		0x01,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestSubscribePacketEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		packet SubscribePacket
	}{
		{
			name:   "single",
			packet: SubscribePacket{PacketID: 10, Subscriptions: []Subscription{{Filter: "a/b", QoS: QoS0}}},
		},
		{
			name: "multiple",
			packet: SubscribePacket{PacketID: 65535, Subscriptions: []Subscription{
				{Filter: "sensors/+/temperature", QoS: QoS1},
				{Filter: "#", QoS: QoS2},
				{Filter: "$SYS/broker/uptime", QoS: QoS0},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePacket(&tt.packet, 0)
			require.NoError(t, err)

			pkt, n, err := ReadPacket(bytes.NewReader(data), 0)
			require.NoError(t, err)
			assert.Equal(t, len(data), n)
			assert.Equal(t, &tt.packet, pkt)
		})
	}
}

func TestSubscribePacketValidate(t *testing.T) {
	tests := []struct {
		name    string
		packet  SubscribePacket
		wantErr error
	}{
		{"zero id", SubscribePacket{Subscriptions: []Subscription{{Filter: "a"}}}, ErrPacketIDRequired},
		{"no filters", SubscribePacket{PacketID: 1}, ErrNoTopicFilters},
		{"invalid filter", SubscribePacket{PacketID: 1, Subscriptions: []Subscription{{Filter: "a/#/b"}}}, ErrInvalidTopicFilter},
		{"invalid qos", SubscribePacket{PacketID: 1, Subscriptions: []Subscription{{Filter: "a", QoS: 3}}}, ErrInvalidQoS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.packet.Validate(), tt.wantErr)
		})
	}
}

func TestSubscribePacketDecodeErrors(t *testing.T) {
	t.Run("reserved option bits", func(t *testing.T) {
		data := []byte{0x82, 0x06, 0x00, 0x01, 0x00, 0x01, 'a', 0x04}
		_, _, err := ReadPacket(bytes.NewReader(data), 0)
		assert.ErrorIs(t, err, ErrInvalidSubscription)
	})

	t.Run("wrong flags", func(t *testing.T) {
		data := []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x01, 'a', 0x00}
		_, _, err := ReadPacket(bytes.NewReader(data), 0)
		assert.ErrorIs(t, err, ErrInvalidPacketFlags)
	})

	t.Run("no filters", func(t *testing.T) {
		data := []byte{0x82, 0x02, 0x00, 0x01}
		_, _, err := ReadPacket(bytes.NewReader(data), 0)
		assert.ErrorIs(t, err, ErrNoTopicFilters)
	})
}
