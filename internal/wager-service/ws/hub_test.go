package ws_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/wager-service/ws"
)

type reply struct {
	Type    string         `json:"type"`
	Symbol  string         `json:"symbol"`
	Error   string         `json:"error"`
	Payload map[string]any `json:"payload"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) reply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var r reply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub := ws.NewHub(zap.NewNop(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)

	require.NoError(t, a.WriteJSON(ws.ClientMsg{Type: "subscribe", Symbol: "SOLUSDT"}))
	assert.Equal(t, "subscribed", read(t, a).Type)
	require.NoError(t, b.WriteJSON(ws.ClientMsg{Type: "subscribe", Symbol: "BTCUSDT"}))
	assert.Equal(t, "subscribed", read(t, b).Type)
	assert.Equal(t, 1, hub.Subscribers("SOLUSDT"))

	ws.Dispatch(hub, []byte(`{"symbol":"SOLUSDT","payload":{"price":101.5}}`), zap.NewNop())

	got := read(t, a)
	assert.Equal(t, "SOLUSDT", got.Symbol)
	assert.Equal(t, 101.5, got.Payload["price"])

	// b só recebe o próprio símbolo: o próximo quadro é o pong
	require.NoError(t, b.WriteJSON(ws.ClientMsg{Type: "ping"}))
	assert.Equal(t, "pong", read(t, b).Type)
}

func TestHub_UnsubscribeAndErrors(t *testing.T) {
	hub := ws.NewHub(zap.NewNop(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(ws.ClientMsg{Type: "subscribe"}))
	r := read(t, c)
	assert.Equal(t, "error", r.Type)
	assert.Equal(t, "symbol required", r.Error)

	require.NoError(t, c.WriteJSON(ws.ClientMsg{Type: "subscribe", Symbol: "SOLUSDT"}))
	read(t, c)
	require.NoError(t, c.WriteJSON(ws.ClientMsg{Type: "unsubscribe", Symbol: "SOLUSDT"}))
	assert.Equal(t, "unsubscribed", read(t, c).Type)
	assert.Equal(t, 0, hub.Subscribers("SOLUSDT"))

	// payload inválido é ignorado
	ws.Dispatch(hub, []byte(`not json`), zap.NewNop())
}

func TestHub_DisconnectDropsSubscriptions(t *testing.T) {
	hub := ws.NewHub(zap.NewNop(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(ws.ClientMsg{Type: "subscribe", Symbol: "SOLUSDT"}))
	read(t, c)
	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool { return hub.Subscribers("SOLUSDT") == 0 }, 2*time.Second, 10*time.Millisecond)
}
