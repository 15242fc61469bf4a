package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GridConfig é a superfície de configuração compartilhada entre o motor e
// qualquer renderer da grade. Divergência entre os dois é bug de corretude.
type GridConfig struct {
	CellSize              float64 `yaml:"cell_size" json:"cellSize"`     // px por célula (vertical)
	PriceScale            float64 `yaml:"price_scale" json:"priceScale"` // px por unidade de preço
	HouseEdge             float64 `yaml:"house_edge" json:"houseEdge"`
	BaseMultiplier        float64 `yaml:"base_multiplier" json:"baseMultiplier"`
	DistanceCoefficient   float64 `yaml:"distance_coefficient" json:"distanceCoefficient"`
	MinBet                float64 `yaml:"min_bet" json:"minBet"`
	MaxBet                float64 `yaml:"max_bet" json:"maxBet"`
	MinMultiplier         float64 `yaml:"min_multiplier" json:"minMultiplier"`
	MaxMultiplier         float64 `yaml:"max_multiplier" json:"maxMultiplier"`
	MinBetDistanceColumns int     `yaml:"min_bet_distance_columns" json:"minBetDistanceColumns"`
	MaxOddsRange          int     `yaml:"max_odds_range" json:"maxOddsRange"`
	OddsValidityMs        int64   `yaml:"odds_validity_ms" json:"oddsValidityMs"`
	MaxRangeWidth         float64 `yaml:"max_range_width" json:"maxRangeWidth"`
	MaxCenterDrift        float64 `yaml:"max_center_drift" json:"maxCenterDrift"`
	BasePriceTolerancePct float64 `yaml:"base_price_tolerance_pct" json:"basePriceTolerancePct"`
}

// DefaultGrid devolve os valores padrão da grade
func DefaultGrid() GridConfig {
	return GridConfig{
		CellSize:              50,
		PriceScale:            100,
		HouseEdge:             0.05,
		BaseMultiplier:        1.5,
		DistanceCoefficient:   0.35,
		MinBet:                1,
		MaxBet:                1000,
		MinMultiplier:         1.1,
		MaxMultiplier:         100,
		MinBetDistanceColumns: 2,
		MaxOddsRange:          20,
		OddsValidityMs:        60000,
		MaxRangeWidth:         2.0,
		MaxCenterDrift:        0.50,
		BasePriceTolerancePct: 0.5,
	}
}

// OddsValidity devolve a janela de validade das odds assinadas
func (g GridConfig) OddsValidity() time.Duration {
	return time.Duration(g.OddsValidityMs) * time.Millisecond
}

// LoadGrid lê o YAML da grade sobre os defaults. path vazio = defaults.
func LoadGrid(path string) (GridConfig, error) {
	g := DefaultGrid()
	if path == "" {
		return g, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return g, fmt.Errorf("grid config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("grid config: parse YAML: %w", err)
	}
	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}

// Validate rejeita combinações que quebram os invariantes das apostas
func (g GridConfig) Validate() error {
	switch {
	case g.CellSize <= 0 || g.PriceScale <= 0:
		return errors.New("grid config: cell_size and price_scale must be positive")
	case g.HouseEdge < 0 || g.HouseEdge >= 1:
		return errors.New("grid config: house_edge must be in [0,1)")
	case g.MinBet <= 0 || g.MaxBet < g.MinBet:
		return errors.New("grid config: invalid bet bounds")
	case g.MinMultiplier <= 0 || g.MaxMultiplier < g.MinMultiplier:
		return errors.New("grid config: invalid multiplier bounds")
	case g.OddsValidityMs <= 0 || g.MaxOddsRange <= 0:
		return errors.New("grid config: odds validity and range must be positive")
	case g.MaxRangeWidth <= 0 || g.MaxCenterDrift <= 0:
		return errors.New("grid config: resolution tolerances must be positive")
	}
	return nil
}
