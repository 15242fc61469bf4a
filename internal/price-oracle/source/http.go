package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrFieldNotFound = errors.New("price field not found")

const (
	// limite por fonte: bem abaixo do que as APIs públicas aceitam
	defaultRatePerSec = 10
	defaultBurst      = 5
)

// HTTPSource busca um JSON e extrai o preço por um caminho pontuado (ex: "data.amount").
// O valor pode vir como número ou string.
type HTTPSource struct {
	name    string
	url     string
	path    []string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPSource cria uma fonte HTTP genérica
func NewHTTPSource(name, url, fieldPath string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{
		name:    name,
		url:     url,
		path:    strings.Split(fieldPath, "."),
		http:    client,
		limiter: rate.NewLimiter(defaultRatePerSec, defaultBurst),
	}
}

// Binance usa o ticker público: {"symbol":"SOLUSDT","price":"143.21"}
func Binance(symbol string, client *http.Client) *HTTPSource {
	return NewHTTPSource("binance",
		"https://api.binance.com/api/v3/ticker/price?symbol="+symbol, "price", client)
}

// Coinbase usa o spot público: {"data":{"amount":"143.21",...}}
func Coinbase(pair string, client *http.Client) *HTTPSource {
	return NewHTTPSource("coinbase",
		"https://api.coinbase.com/v2/prices/"+pair+"/spot", "data.amount", client)
}

func (s *HTTPSource) Name() string { return s.name }

// Fetch faz um único GET; o oráculo cuida de timeout e fallback
func (s *HTTPSource) Fetch(ctx context.Context) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%s http %d", s.name, resp.StatusCode)
	}

	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return extract(doc, s.path)
}

func extract(doc map[string]any, path []string) (float64, error) {
	var cur any = doc
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, ErrFieldNotFound
		}
		if cur, ok = m[p]; !ok {
			return 0, ErrFieldNotFound
		}
	}
	switch v := cur.(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unexpected price type %T", cur)
	}
}
