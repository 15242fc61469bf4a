package oracle

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrUpstreamUnavailable indica que todas as fontes falharam e não há cache
var ErrUpstreamUnavailable = errors.New("price upstream unavailable")

const (
	DefaultTTL         = 500 * time.Millisecond
	DefaultTimeout     = 5 * time.Second
	DefaultHistorySize = 120

	refreshKey = "price"
)

// PricePoint é efêmero: vive só no cache/histórico do oráculo
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// PriceData é o resultado de GetPrice
type PriceData struct {
	PricePoint
	Cached bool `json:"cached"` // servido do cache dentro do TTL
	Stale  bool `json:"stale"`  // todas as fontes falharam; último preço conhecido
}

// Source é uma fonte upstream independente de preço
type Source interface {
	Name() string
	Fetch(ctx context.Context) (float64, error)
}

// Hooks permitem ao main ligar métricas sem acoplar o pacote ao Prometheus
type Hooks struct {
	OnCacheHit func()
	OnFetch    func(source, result string) // result: ok | error | invalid
	OnStale    func()
}

type Options struct {
	TTL         time.Duration
	Timeout     time.Duration // limite por chamada de fonte
	HistorySize int
	Now         func() time.Time
	Hooks       Hooks
}

// Oracle é a fonte única de verdade para o preço corrente.
// Cada instância tem o próprio cache; Close aborta buscas em andamento.
type Oracle struct {
	log     *zap.Logger
	sources []Source
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	hooks   Hooks

	baseCtx context.Context
	cancel  context.CancelFunc
	group   singleflight.Group

	mu      sync.RWMutex
	last    *PricePoint
	history []PricePoint
	histCap int
}

// New cria o oráculo com as fontes em ordem de preferência
func New(log *zap.Logger, sources []Source, opts Options) *Oracle {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Oracle{
		log:     log,
		sources: sources,
		ttl:     opts.TTL,
		timeout: opts.Timeout,
		now:     opts.Now,
		hooks:   opts.Hooks,
		baseCtx: ctx,
		cancel:  cancel,
		histCap: opts.HistorySize,
	}
}

// Close encerra o oráculo; refreshes em voo são cancelados
func (o *Oracle) Close() { o.cancel() }

// GetPrice devolve o preço em cache se estiver dentro do TTL.
// Caso contrário dispara um refresh; chamadas concorrentes aguardam o mesmo refresh.
func (o *Oracle) GetPrice(ctx context.Context) (PriceData, error) {
	if p, ok := o.fresh(); ok {
		if o.hooks.OnCacheHit != nil {
			o.hooks.OnCacheHit()
		}
		return PriceData{PricePoint: p, Cached: true}, nil
	}

	ch := o.group.DoChan(refreshKey, func() (interface{}, error) {
		return o.refresh()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return PriceData{}, res.Err
		}
		return res.Val.(PriceData), nil
	case <-ctx.Done():
		// o refresh continua para os demais; este chamador desiste sem
		// receber preço vencido, que só vale quando todas as fontes falham
		return PriceData{}, ctx.Err()
	}
}

// refresh percorre as fontes em ordem; a primeira com preço finito e positivo vence.
// Fonte com erro ou timeout é pulada, sem retry dentro do mesmo refresh.
func (o *Oracle) refresh() (PriceData, error) {
	if p, ok := o.fresh(); ok {
		return PriceData{PricePoint: p, Cached: true}, nil
	}

	for _, src := range o.sources {
		ctx, cancel := context.WithTimeout(o.baseCtx, o.timeout)
		price, err := src.Fetch(ctx)
		cancel()

		if err != nil {
			o.log.Warn("price source failed", zap.String("source", src.Name()), zap.Error(err))
			o.fetched(src.Name(), "error")
			continue
		}
		if !validPrice(price) {
			o.log.Warn("price source returned invalid price", zap.String("source", src.Name()), zap.Float64("price", price))
			o.fetched(src.Name(), "invalid")
			continue
		}

		o.fetched(src.Name(), "ok")
		p := PricePoint{Price: price, Timestamp: o.now(), Source: src.Name()}
		o.store(p)
		return PriceData{PricePoint: p}, nil
	}

	if p, ok := o.Last(); ok {
		o.log.Warn("all price sources failed, serving stale price",
			zap.Float64("price", p.Price), zap.Duration("age", o.now().Sub(p.Timestamp)))
		if o.hooks.OnStale != nil {
			o.hooks.OnStale()
		}
		return PriceData{PricePoint: p, Stale: true}, nil
	}

	o.log.Error("all price sources failed and no cached price")
	return PriceData{}, ErrUpstreamUnavailable
}

// Observe aceita ticks do stream; só substitui o cache por pontos mais novos
func (o *Oracle) Observe(p PricePoint) {
	if !validPrice(p.Price) {
		return
	}
	// relógio do feed não estende o TTL além do relógio local
	if now := o.now(); p.Timestamp.IsZero() || p.Timestamp.After(now) {
		p.Timestamp = now
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last != nil && !p.Timestamp.After(o.last.Timestamp) {
		return
	}
	o.setLocked(p)
}

// Last devolve o último preço conhecido, independente da idade
func (o *Oracle) Last() (PricePoint, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return PricePoint{}, false
	}
	return *o.last, true
}

// History devolve os pontos recentes, do mais antigo para o mais novo
func (o *Oracle) History() []PricePoint {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PricePoint, len(o.history))
	copy(out, o.history)
	return out
}

func (o *Oracle) fresh() (PricePoint, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil || o.now().Sub(o.last.Timestamp) > o.ttl {
		return PricePoint{}, false
	}
	return *o.last, true
}

func (o *Oracle) store(p PricePoint) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setLocked(p)
}

func (o *Oracle) setLocked(p PricePoint) {
	o.last = &p
	o.history = append(o.history, p)
	if len(o.history) > o.histCap {
		o.history = o.history[len(o.history)-o.histCap:]
	}
}

func (o *Oracle) fetched(source, result string) {
	if o.hooks.OnFetch != nil {
		o.hooks.OnFetch(source, result)
	}
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// ValidateClientPrice diz se o preço do cliente está dentro da tolerância relativa
// (em %) do preço do servidor. Ajuda defensiva, não é fronteira de confiança.
func ValidateClientPrice(clientPrice, serverPrice, tolerancePercent float64) bool {
	if !validPrice(clientPrice) || !validPrice(serverPrice) || tolerancePercent < 0 {
		return false
	}
	return math.Abs(clientPrice-serverPrice)*100 <= tolerancePercent*serverPrice
}
