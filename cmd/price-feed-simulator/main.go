package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/shared/config"
	"github.com/radieske/gridbet-engine/internal/shared/logger"
	"github.com/radieske/gridbet-engine/internal/shared/metrics"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
)

type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes conectados e faz broadcast dos ticks
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

// walk é um passeio aleatório com volatilidade fixa por passo
type walk struct {
	mu    sync.RWMutex
	price float64
	vol   float64
	rng   *rand.Rand
}

func (w *walk) step() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.price * (1 + w.rng.NormFloat64()*w.vol)
	// nunca chega a zero
	w.price = math.Max(next, 0.01)
	return w.price
}

func (w *walk) current() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.price
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent)

	start := 150.0
	if v, err := strconv.ParseFloat(os.Getenv("FEED_START_PRICE"), 64); err == nil && v > 0 {
		start = v
	}
	wk := &walk{price: start, vol: 0.0008, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	h := newHub(log)

	// Gera um tick a cada 500ms e envia para todos os clientes
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			h.broadcast(events.PriceTick{
				Symbol:   cfg.PriceSymbol,
				Price:    wk.step(),
				TsUnixMs: time.Now().UnixMilli(),
				Source:   cfg.ServiceName,
			})
		}
	}()

	appMux := http.NewServeMux()

	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		h.add(&clientConn{id: id, conn: conn})

		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			for {
				// descarta mensagens do cliente; erro = desconexão
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// /price serve como fonte HTTP do oráculo (PRICE_SOURCES=http:http://host:8081/price)
	appMux.HandleFunc("/price", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"symbol": cfg.PriceSymbol,
			"price":  wk.current(),
			"ts":     time.Now().UnixMilli(),
		})
	})

	metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	publicAddr := ":" + cfg.HTTPPort
	log.Info("price feed simulator running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws,/price"),
		zap.Float64("start_price", start),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
