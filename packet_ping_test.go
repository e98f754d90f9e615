package mqttflow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyPacketsEncodeDecode(t *testing.T) {
	tests := []struct {
		packet Packet
		want   []byte
	}{
		{&PingreqPacket{}, []byte{0xC0, 0x00}},
		{&PingrespPacket{}, []byte{0xD0, 0x00}},
		{&DisconnectPacket{}, []byte{0xE0, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.packet.Type().String(), func(t *testing.T) {
			require.NoError(t, tt.packet.Validate())

			var buf bytes.Buffer
			n, err := tt.packet.Encode(&buf)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, tt.want, buf.Bytes())

			pkt, _, err := ReadPacket(&buf, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.packet, pkt)
		})
	}
}

func TestEmptyPacketsDecodeErrors(t *testing.T) {
	t.Run("non-zero length", func(t *testing.T) {
		_, _, err := ReadPacket(bytes.NewReader([]byte{0xD0, 0x01, 0x00}), 0)
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})

	t.Run("flags", func(t *testing.T) {
		var p PingrespPacket
		_, err := p.Decode(nil, FixedHeader{PacketType: PacketPINGRESP, Flags: 0x01})
		assert.ErrorIs(t, err, ErrInvalidPacketFlags)
	})

	t.Run("wrong type", func(t *testing.T) {
		var p DisconnectPacket
		_, err := p.Decode(nil, FixedHeader{PacketType: PacketPINGREQ})
		assert.ErrorIs(t, err, ErrInvalidPacketType)
	})
}
