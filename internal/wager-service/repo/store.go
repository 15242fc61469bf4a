package repo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
)

// AccountStore cobre saldo e estatísticas
type AccountStore interface {
	GetAccount(ctx context.Context, wallet string) (Account, error)
	// GetOrCreateAccount cria a conta ativa com saldo zero se não existir
	GetOrCreateAccount(ctx context.Context, wallet string) (Account, error)
	SetAccountStatus(ctx context.Context, wallet string, status AccountStatus) error
	// IncrementBalance soma delta ao saldo de forma atômica com piso em zero.
	// Se o resultado ficaria negativo nada muda e volta ErrInsufficientFunds
	// com prev == next == saldo atual.
	IncrementBalance(ctx context.Context, wallet string, delta decimal.Decimal) (prev, next decimal.Decimal, err error)
	// IncrementStats soma contadores sem ler-modificar-escrever o documento inteiro
	IncrementStats(ctx context.Context, wallet string, d StatsDelta) error
}

// WagerStore cobre o ciclo de vida das apostas
type WagerStore interface {
	InsertWager(ctx context.Context, w Wager) error
	GetWager(ctx context.Context, id string) (Wager, error)
	// TransitionWager aplica a resolução só se a aposta ainda estiver pending.
	// false = outra chamada já tirou a aposta de pending.
	TransitionWager(ctx context.Context, id string, r Resolution) (bool, error)
	// ListPending devolve apostas pending criadas antes de createdBefore (zero = todas)
	ListPending(ctx context.Context, createdBefore time.Time) ([]Wager, error)
}

// AuditStore é o log append-only
type AuditStore interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
}

// Store é o document store completo usado pelo motor
type Store interface {
	AccountStore
	WagerStore
	AuditStore
	Ping(ctx context.Context) error
}
