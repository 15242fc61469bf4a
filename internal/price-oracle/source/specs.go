package source

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/gridbet-engine/internal/price-oracle/oracle"
)

// FromSpecs monta as fontes na ordem configurada em PRICE_SOURCES.
//
//	redis                 último tick no Redis (requer ticks != nil)
//	binance[:SYMBOL]      ticker público da Binance
//	coinbase:PAIR         spot público da Coinbase, ex: coinbase:SOL-USD
//	http:URL[|campo]      JSON genérico; campo padrão "price"
func FromSpecs(specs []string, symbol string, ticks TickReader, client *http.Client) ([]oracle.Source, error) {
	var out []oracle.Source
	for _, spec := range specs {
		kind, arg, _ := strings.Cut(spec, ":")
		switch kind {
		case "redis":
			if ticks == nil {
				return nil, fmt.Errorf("price source %q: redis not configured", spec)
			}
			out = append(out, NewRedisSource(ticks, symbol, 5*time.Second))
		case "binance":
			if arg == "" {
				arg = symbol
			}
			out = append(out, Binance(arg, client))
		case "coinbase":
			if arg == "" {
				return nil, fmt.Errorf("price source %q: pair required", spec)
			}
			out = append(out, Coinbase(arg, client))
		case "http":
			url, field, ok := strings.Cut(arg, "|")
			if !ok || field == "" {
				field = "price"
			}
			if url == "" {
				return nil, fmt.Errorf("price source %q: url required", spec)
			}
			out = append(out, NewHTTPSource("http:"+url, url, field, client))
		default:
			return nil, fmt.Errorf("unknown price source %q", spec)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no price sources configured")
	}
	return out, nil
}
