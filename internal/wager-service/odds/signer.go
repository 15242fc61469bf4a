package odds

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/gridbet-engine/internal/shared/config"
)

var (
	ErrNoSecret       = errors.New("odds signing secret is empty")
	ErrBadSignature   = errors.New("odds signature mismatch")
	ErrOddsExpired    = errors.New("odds expired")
	ErrMalformedID    = errors.New("malformed odds id")
	ErrRangeTooLarge  = errors.New("odds range too large")
	ErrNegativeColumn = errors.New("column must be non-negative")
)

// SignedOdds é uma cotação emitida para uma célula.
// OddsID carrega a expiração, então ela também fica coberta pela assinatura.
type SignedOdds struct {
	OddsID     string    `json:"oddsId"`
	YIndex     int       `json:"yIndex"`
	ColumnX    int       `json:"columnX"`
	Multiplier float64   `json:"multiplier"`
	Signature  string    `json:"signature"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Sheet é a folha de odds de uma coluna em torno do índice atual
type Sheet struct {
	Odds          []SignedOdds `json:"odds"`
	HouseEdge     float64      `json:"houseEdge"`
	MinMultiplier float64      `json:"minMultiplier"`
	MaxMultiplier float64      `json:"maxMultiplier"`
	GeneratedAt   time.Time    `json:"generatedAt"`
	ExpiresAt     time.Time    `json:"expiresAt"`
}

// Quote é o que o cliente devolve ao apostar numa cotação assinada
type Quote struct {
	OddsID    string
	Signature string
	ColumnX   int
}

type Signer struct {
	secret []byte
	grid   config.GridConfig
	now    func() time.Time
}

func NewSigner(secret string, grid config.GridConfig) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret), grid: grid, now: time.Now}, nil
}

// WithClock troca o relógio (testes)
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Multiplier calcula o multiplicador da célula yIndex dado o índice atual do preço.
// Cresce com a distância e fica sempre dentro de [MinMultiplier, MaxMultiplier].
func (s *Signer) Multiplier(yIndex, currentPriceIndex int) float64 {
	return Curve(s.grid, yIndex, currentPriceIndex)
}

// Curve é a curva de odds da grade, sem arredondamento
func Curve(g config.GridConfig, yIndex, currentPriceIndex int) float64 {
	dist := math.Abs(float64(yIndex - currentPriceIndex))
	raw := (g.BaseMultiplier + math.Pow(dist, 1.6)*g.DistanceCoefficient) * (1 - g.HouseEdge)
	return math.Max(g.MinMultiplier, math.Min(g.MaxMultiplier, raw))
}

// Quoted é o multiplicador como aparece numa cotação: duas casas decimais
func Quoted(g config.GridConfig, yIndex, currentPriceIndex int) float64 {
	return round2(Curve(g, yIndex, currentPriceIndex))
}

// IssueOdds emite odds assinadas para as células centerYIndex-rng..centerYIndex+rng
func (s *Signer) IssueOdds(centerYIndex, columnX, rng int) (Sheet, error) {
	if rng < 0 || rng > s.grid.MaxOddsRange {
		return Sheet{}, fmt.Errorf("%w: %d (max %d)", ErrRangeTooLarge, rng, s.grid.MaxOddsRange)
	}
	if columnX < 0 {
		return Sheet{}, ErrNegativeColumn
	}

	now := s.now().UTC()
	expires := now.Add(s.grid.OddsValidity())
	sheet := Sheet{
		Odds:          make([]SignedOdds, 0, 2*rng+1),
		HouseEdge:     s.grid.HouseEdge,
		MinMultiplier: s.grid.MinMultiplier,
		MaxMultiplier: s.grid.MaxMultiplier,
		GeneratedAt:   now,
		ExpiresAt:     expires,
	}
	for y := centerYIndex - rng; y <= centerYIndex+rng; y++ {
		id := newOddsID(expires)
		m := Quoted(s.grid, y, centerYIndex)
		sheet.Odds = append(sheet.Odds, SignedOdds{
			OddsID:     id,
			YIndex:     y,
			ColumnX:    columnX,
			Multiplier: m,
			Signature:  s.Sign(id, m, columnX, y),
			IssuedAt:   now,
			ExpiresAt:  expires,
		})
	}
	return sheet, nil
}

// Sign devolve o HMAC-SHA256 em hex de (oddsId, multiplier, columnX, yIndex)
func (s *Signer) Sign(oddsID string, multiplier float64, columnX, yIndex int) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(oddsID, multiplier, columnX, yIndex)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compara em tempo constante
func (s *Signer) Verify(oddsID string, multiplier float64, columnX, yIndex int, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(oddsID, multiplier, columnX, yIndex)))
	return hmac.Equal(mac.Sum(nil), want)
}

// VerifyQuote valida assinatura e expiração de uma cotação usada numa aposta
func (s *Signer) VerifyQuote(q Quote, multiplier float64, yIndex int) error {
	if !s.Verify(q.OddsID, multiplier, q.ColumnX, yIndex, q.Signature) {
		return ErrBadSignature
	}
	exp, err := ExpiresAt(q.OddsID)
	if err != nil {
		return err
	}
	if s.now().After(exp) {
		return ErrOddsExpired
	}
	return nil
}

// ExpiresAt extrai a expiração embutida no oddsId
func ExpiresAt(oddsID string) (time.Time, error) {
	i := strings.LastIndexByte(oddsID, '.')
	if i < 0 {
		return time.Time{}, ErrMalformedID
	}
	ms, err := strconv.ParseInt(oddsID[i+1:], 10, 64)
	if err != nil {
		return time.Time{}, ErrMalformedID
	}
	return time.UnixMilli(ms).UTC(), nil
}

func newOddsID(expires time.Time) string {
	return uuid.NewString() + "." + strconv.FormatInt(expires.UnixMilli(), 10)
}

// formato mais curto: 5.79 e 5.791 geram mensagens distintas
func canonical(oddsID string, multiplier float64, columnX, yIndex int) string {
	return oddsID + "|" + strconv.FormatFloat(multiplier, 'f', -1, 64) + "|" +
		strconv.Itoa(columnX) + "|" + strconv.Itoa(yIndex)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
