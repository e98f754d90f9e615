package mqttflow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsubscribePacketEncodeDecode(t *testing.T) {
	p := &UnsubscribePacket{PacketID: 3, TopicFilters: []string{"a/b", "c/#"}}

	var buf bytes.Buffer
	_, err := p.Encode(&buf)
	require.NoError(t, err)

	want := []byte{
		0xA2, 0x0C,
		0x00, 0x03,
		0x00, 0x03, 'a', '/', 'b',
		0x00, 0x03, 'c', '/', '#',
	}
	assert.Equal(t, want, buf.Bytes())

	pkt, _, err := ReadPacket(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, p, pkt)
}

func TestUnsubscribePacketValidate(t *testing.T) {
	assert.ErrorIs(t, (&UnsubscribePacket{TopicFilters: []string{"a"}}).Validate(), ErrPacketIDRequired)
	assert.ErrorIs(t, (&UnsubscribePacket{PacketID: 1}).Validate(), ErrNoTopicFilters)
	assert.ErrorIs(t, (&UnsubscribePacket{PacketID: 1, TopicFilters: []string{""}}).Validate(), ErrEmptyTopic)
	assert.NoError(t, (&UnsubscribePacket{PacketID: 1, TopicFilters: []string{"+"}}).Validate())
}

func TestUnsubscribePacketDecodeWrongFlags(t *testing.T) {
	data := []byte{0xA0, 0x05, 0x00, 0x01, 0x00, 0x01, 'a'}
	_, _, err := ReadPacket(bytes.NewReader(data), 0)
	assert.ErrorIs(t, err, ErrInvalidPacketFlags)
}
