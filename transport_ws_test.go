package mqttflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSBroker serves one WebSocket connection with handle.
func newWSBroker(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{
		Subprotocols: []string{WebSocketSubprotocol},
		CheckOrigin:  func(*http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/mqtt"
}

func TestWSDialer(t *testing.T) {
	t.Run("negotiates subprotocol and exchanges packets", func(t *testing.T) {
		url := newWSBroker(t, func(conn *websocket.Conn) {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Echo the frame back split in two to exercise reassembly.
			half := len(data) / 2
			_ = conn.WriteMessage(websocket.BinaryMessage, data[:half])
			_ = conn.WriteMessage(websocket.BinaryMessage, data[half:])
			_, _, _ = conn.ReadMessage()
		})

		conn, err := NewWSDialer().Dial(context.Background(), url)
		require.NoError(t, err)
		defer conn.Close()

		wsConn, ok := conn.(*WSConn)
		require.True(t, ok)
		assert.Equal(t, WebSocketSubprotocol, wsConn.conn.Subprotocol())
		assert.NotNil(t, conn.LocalAddr())
		assert.NotNil(t, conn.RemoteAddr())

		sent := &PublishPacket{Topic: "ws/test", Payload: []byte("over websocket"), QoS: 1, PacketID: 3}
		_, err = WritePacket(conn, sent, 0)
		require.NoError(t, err)

		require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
		pkt, _, err := ReadPacket(conn, 0)
		require.NoError(t, err)
		assert.Equal(t, sent, pkt)
	})

	t.Run("frame shared by two packets", func(t *testing.T) {
		frame := encodeAll(t, &PubackPacket{PacketID: 1}, &PubackPacket{PacketID: 2})
		url := newWSBroker(t, func(conn *websocket.Conn) {
			_ = conn.WriteMessage(websocket.BinaryMessage, frame)
			_, _, _ = conn.ReadMessage()
		})

		conn, err := NewWSDialer().Dial(context.Background(), url)
		require.NoError(t, err)
		defer conn.Close()

		for _, id := range []uint16{1, 2} {
			pkt, _, err := ReadPacket(conn, 0)
			require.NoError(t, err)
			assert.Equal(t, &PubackPacket{PacketID: id}, pkt)
		}
	})

	t.Run("text frame rejected", func(t *testing.T) {
		url := newWSBroker(t, func(conn *websocket.Conn) {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
			_, _, _ = conn.ReadMessage()
		})

		conn, err := NewWSDialer().Dial(context.Background(), url)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Read(make([]byte, 16))
		assert.ErrorIs(t, err, ErrNonBinaryFrame)
	})

	t.Run("handshake failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := NewWSDialer().Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("default dialer", func(t *testing.T) {
		url := newWSBroker(t, func(conn *websocket.Conn) {
			_, _, _ = conn.ReadMessage()
		})

		conn, err := (&WSDialer{}).Dial(context.Background(), url)
		require.NoError(t, err)
		conn.Close()
	})
}

func TestWSConnDeadlines(t *testing.T) {
	url := newWSBroker(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	conn, err := NewWSDialer().Dial(context.Background(), url)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Millisecond)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)

	assert.NoError(t, conn.SetWriteDeadline(time.Time{}))
}
