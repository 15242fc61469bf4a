package lifecycle

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("wager belongs to another wallet")
	ErrAccountSuspended     = errors.New("account is not active")
	ErrAmountOutOfRange     = errors.New("amount out of range")
	ErrMultiplierOutOfRange = errors.New("multiplier out of range")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrOddsRejected         = errors.New("odds rejected")
)

// InsufficientFundsError carrega o saldo real para o cliente reconciliar
type InsufficientFundsError struct {
	Balance decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return "insufficient funds: balance " + e.Balance.String()
}

func (e *InsufficientFundsError) Unwrap() error { return repo.ErrInsufficientFunds }
