package mqttflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage("a/b", []byte("hi"), QoS1, true)

	assert.Equal(t, "a/b", msg.Topic)
	assert.Equal(t, []byte("hi"), msg.Payload)
	assert.Equal(t, QoS1, msg.QoS)
	assert.True(t, msg.Retain)
	assert.False(t, msg.Duplicate)
}

func TestMessageClone(t *testing.T) {
	t.Run("deep copies payload", func(t *testing.T) {
		msg := NewMessage("a/b", []byte("hello"), QoS2, false)
		clone := msg.Clone()

		require.NotSame(t, msg, clone)
		assert.Equal(t, msg, clone)

		clone.Payload[0] = 'j'
		assert.Equal(t, []byte("hello"), msg.Payload)
	})

	t.Run("nil payload", func(t *testing.T) {
		clone := NewMessage("a", nil, QoS0, false).Clone()
		assert.Nil(t, clone.Payload)
	})

	t.Run("nil message", func(t *testing.T) {
		var msg *Message
		assert.Nil(t, msg.Clone())
	})
}

func TestPublishPacketMessageConversion(t *testing.T) {
	pkt := &PublishPacket{
		Topic:    "sensors/1",
		Payload:  []byte("21.5"),
		QoS:      QoS1,
		Retain:   true,
		DUP:      true,
		PacketID: 7,
	}

	msg := pkt.ToMessage()
	assert.Equal(t, &Message{
		Topic:     "sensors/1",
		Payload:   []byte("21.5"),
		QoS:       QoS1,
		Retain:    true,
		Duplicate: true,
	}, msg)

	var out PublishPacket
	out.FromMessage(msg)
	assert.Equal(t, "sensors/1", out.Topic)
	assert.Equal(t, QoS1, out.QoS)
	assert.True(t, out.Retain)
	assert.False(t, out.DUP, "DUP is never copied to outgoing packets")
	assert.Zero(t, out.PacketID)
}

func TestNewPacket(t *testing.T) {
	for pt := PacketCONNECT; pt <= PacketDISCONNECT; pt++ {
		pkt, err := newPacket(pt)
		require.NoError(t, err, pt.String())
		assert.Equal(t, pt, pkt.Type())
	}

	_, err := newPacket(PacketType(15))
	assert.ErrorIs(t, err, ErrUnknownPacketType)
}
