package oracle_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/price-oracle/oracle"
)

type fakeSource struct {
	name  string
	price float64
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) (float64, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.price, f.err
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newOracle(t *testing.T, clk *clock, opts oracle.Options, sources ...oracle.Source) *oracle.Oracle {
	t.Helper()
	if clk != nil {
		opts.Now = clk.Now
	}
	o := oracle.New(zap.NewNop(), sources, opts)
	t.Cleanup(o.Close)
	return o
}

func TestGetPrice_ServesCacheWithinTTL(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{name: "a", price: 142.5}
	o := newOracle(t, clk, oracle.Options{TTL: 500 * time.Millisecond}, src)

	first, err := o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 142.5, first.Price)

	clk.Advance(400 * time.Millisecond)
	second, err := o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), src.calls.Load())

	clk.Advance(200 * time.Millisecond)
	_, err = o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestGetPrice_SingleFlight(t *testing.T) {
	src := &fakeSource{name: "slow", price: 99, block: make(chan struct{})}
	o := newOracle(t, nil, oracle.Options{}, src)

	const callers = 50
	var wg sync.WaitGroup
	results := make([]float64, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := o.GetPrice(context.Background())
			results[i], errs[i] = p.Price, err
		}(i)
	}

	// espera todos entrarem no refresh antes de liberar a fonte
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.block)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 99.0, results[i])
	}
}

func TestGetPrice_FallsBackInOrder(t *testing.T) {
	bad := &fakeSource{name: "bad", err: errors.New("boom")}
	zero := &fakeSource{name: "zero", price: 0}
	nan := &fakeSource{name: "nan", price: math.NaN()}
	good := &fakeSource{name: "good", price: 10.25}
	never := &fakeSource{name: "never", price: 1}

	var fetches []string
	var mu sync.Mutex
	o := newOracle(t, nil, oracle.Options{Hooks: oracle.Hooks{
		OnFetch: func(source, result string) {
			mu.Lock()
			fetches = append(fetches, source+":"+result)
			mu.Unlock()
		},
	}}, bad, zero, nan, good, never)

	p, err := o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "good", p.Source)
	assert.Equal(t, 10.25, p.Price)
	assert.Equal(t, int32(0), never.calls.Load())
	assert.Equal(t, []string{"bad:error", "zero:invalid", "nan:invalid", "good:ok"}, fetches)
}

func TestGetPrice_SourceTimeoutIsSkipped(t *testing.T) {
	hung := &fakeSource{name: "hung", block: make(chan struct{})}
	good := &fakeSource{name: "good", price: 5}
	o := newOracle(t, nil, oracle.Options{Timeout: 30 * time.Millisecond}, hung, good)

	start := time.Now()
	p, err := o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "good", p.Source)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetPrice_OutageWithoutCache(t *testing.T) {
	o := newOracle(t, nil, oracle.Options{},
		&fakeSource{name: "a", err: errors.New("down")},
		&fakeSource{name: "b", err: errors.New("down")},
		&fakeSource{name: "c", err: errors.New("down")},
	)

	_, err := o.GetPrice(context.Background())
	assert.ErrorIs(t, err, oracle.ErrUpstreamUnavailable)
}

func TestGetPrice_OutageServesStaleCache(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	a := &fakeSource{name: "a", price: 120}
	b := &fakeSource{name: "b", err: errors.New("down")}
	c := &fakeSource{name: "c", err: errors.New("down")}
	stale := 0
	o := newOracle(t, clk, oracle.Options{
		TTL:   100 * time.Millisecond,
		Hooks: oracle.Hooks{OnStale: func() { stale++ }},
	}, a, b, c)

	_, err := o.GetPrice(context.Background())
	require.NoError(t, err)

	a.price, a.err = 0, errors.New("down")
	clk.Advance(300 * time.Millisecond)

	p, err := o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Stale)
	assert.Equal(t, 120.0, p.Price)
	assert.Equal(t, 1, stale)
}

func TestObserve_OnlyNewerPointsReplaceCache(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{name: "a", price: 1}
	o := newOracle(t, clk, oracle.Options{TTL: time.Second}, src)

	o.Observe(oracle.PricePoint{Price: 50, Timestamp: clk.Now(), Source: "stream"})
	o.Observe(oracle.PricePoint{Price: 40, Timestamp: clk.Now().Add(-time.Second), Source: "stream"})
	o.Observe(oracle.PricePoint{Price: -3, Timestamp: clk.Now().Add(time.Second), Source: "stream"})

	p, err := o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Cached)
	assert.Equal(t, 50.0, p.Price)
	assert.Equal(t, int32(0), src.calls.Load())
	assert.Len(t, o.History(), 1)
}

func TestHistory_IsBounded(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	o := newOracle(t, clk, oracle.Options{HistorySize: 3})
	for i := 1; i <= 5; i++ {
		clk.Advance(time.Second)
		o.Observe(oracle.PricePoint{Price: float64(i), Timestamp: clk.Now()})
	}
	h := o.History()
	require.Len(t, h, 3)
	assert.Equal(t, 3.0, h[0].Price)
	assert.Equal(t, 5.0, h[2].Price)
}

func TestValidateClientPrice(t *testing.T) {
	tests := []struct {
		name   string
		client float64
		server float64
		tol    float64
		want   bool
	}{
		{"exact", 100, 100, 0, true},
		{"inside tolerance", 101, 100, 1.5, true},
		{"on the edge", 95, 100, 5, true},
		{"outside tolerance", 106, 100, 5, false},
		{"non positive client", 0, 100, 5, false},
		{"nan client", math.NaN(), 100, 5, false},
		{"non positive server", 100, 0, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, oracle.ValidateClientPrice(tt.client, tt.server, tt.tol))
		})
	}
}

func TestGetPrice_CancelledCallerGetsNoStalePrice(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{name: "hung", price: 7, block: make(chan struct{})}
	o := newOracle(t, clk, oracle.Options{TTL: 100 * time.Millisecond, Timeout: time.Second}, src)

	o.Observe(oracle.PricePoint{Price: 120, Timestamp: clk.Now(), Source: "stream"})
	clk.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := o.GetPrice(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, p.Stale)
	assert.Zero(t, p.Price)
}

func TestObserve_FutureTimestampDoesNotExtendTTL(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{name: "a", price: 88}
	o := newOracle(t, clk, oracle.Options{TTL: time.Second}, src)

	o.Observe(oracle.PricePoint{Price: 50, Timestamp: clk.Now().Add(time.Hour), Source: "stream"})
	last, ok := o.Last()
	require.True(t, ok)
	assert.True(t, last.Timestamp.Equal(clk.Now()))

	clk.Advance(2 * time.Second)
	p, err := o.GetPrice(context.Background())
	require.NoError(t, err)
	assert.False(t, p.Cached)
	assert.Equal(t, 88.0, p.Price)
	assert.Equal(t, int32(1), src.calls.Load())
}
