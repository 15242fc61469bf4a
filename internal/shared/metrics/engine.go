package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine agrupa os coletores do motor de apostas.
// Os componentes recebem callbacks; só o main conhece o Prometheus.
type Engine struct {
	PriceFetches    *prometheus.CounterVec // source, result
	PriceCacheHits  prometheus.Counter
	PriceStale      prometheus.Counter
	WagersPlaced    prometheus.Counter
	WagersResolved  *prometheus.CounterVec // status
	WagersCancelled prometheus.Counter
	LedgerAdjusts   *prometheus.CounterVec // result
	AuditFailures   prometheus.Counter
	StreamReconnect prometheus.Counter
}

// NewEngine cria e registra os coletores no registerer informado
func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		PriceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_oracle_fetches_total", Help: "buscas em fontes de preço por resultado",
		}, []string{"source", "result"}),
		PriceCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "price_oracle_cache_hits_total", Help: "leituras servidas do cache",
		}),
		PriceStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "price_oracle_stale_served_total", Help: "preço antigo servido após falha de todas as fontes",
		}),
		WagersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wagers_placed_total", Help: "apostas criadas",
		}),
		WagersResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wagers_resolved_total", Help: "apostas resolvidas por status",
		}, []string{"status"}),
		WagersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wagers_cancelled_total", Help: "apostas canceladas com reembolso",
		}),
		LedgerAdjusts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_adjustments_total", Help: "ajustes de saldo por resultado",
		}, []string{"result"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total", Help: "falhas ao gravar auditoria",
		}),
		StreamReconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "price_stream_reconnects_total", Help: "tentativas de reconexão do stream de preço",
		}),
	}
	reg.MustRegister(
		m.PriceFetches, m.PriceCacheHits, m.PriceStale,
		m.WagersPlaced, m.WagersResolved, m.WagersCancelled,
		m.LedgerAdjusts, m.AuditFailures, m.StreamReconnect,
	)
	return m
}
