// Package ws entrega os ticks de preço aos renderers via WebSocket.
// É só leitura: nenhuma decisão de aposta passa por aqui.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 2 * time.Second

// client serializa as escritas: gorilla aceita um único writer por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) writeRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões e assinaturas por símbolo
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*client]struct{} // símbolo -> conexões

	OnSent func() // métricas
}

// NewHub cria o hub com a política de origem informada (nil aceita qualquer origem)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP faz o upgrade e atende subscribe/unsubscribe/ping até o cliente sair
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.Symbol == "" {
				_ = c.write(serverMsg{Type: "error", Error: "symbol required"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Symbol]; !ok {
				h.subs[msg.Symbol] = make(map[*client]struct{})
			}
			h.subs[msg.Symbol][c] = struct{}{}
			h.mu.Unlock()
			_ = c.write(serverMsg{Type: "subscribed", Symbol: msg.Symbol})
		case "unsubscribe":
			h.unsubscribe(c, msg.Symbol)
			_ = c.write(serverMsg{Type: "unsubscribed", Symbol: msg.Symbol})
		case "ping":
			_ = c.write(serverMsg{Type: "pong"})
		default:
			_ = c.write(serverMsg{Type: "error", Error: "unknown message type"})
		}
	}
}

// Broadcast envia a atualização para os inscritos no símbolo
func (h *Hub) Broadcast(u PriceUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[u.Symbol]))
	for c := range h.subs[u.Symbol] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	for _, c := range targets {
		if err := c.writeRaw(b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
			_ = c.conn.Close()
			continue
		}
		if h.OnSent != nil {
			h.OnSent()
		}
	}
}

// Subscribers devolve quantas conexões acompanham o símbolo
func (h *Hub) Subscribers(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[symbol])
}

func (h *Hub) unsubscribe(c *client, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[symbol]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, symbol)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for symbol, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, symbol)
		}
	}
}
