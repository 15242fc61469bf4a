package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Schema é idempotente; Migrate roda no boot do wager-service
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	wallet_address TEXT PRIMARY KEY,
	balance        NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	total_bets     BIGINT NOT NULL DEFAULT 0,
	total_wagered  NUMERIC(20,8) NOT NULL DEFAULT 0,
	total_won      NUMERIC(20,8) NOT NULL DEFAULT 0,
	total_lost     NUMERIC(20,8) NOT NULL DEFAULT 0,
	total_wins     BIGINT NOT NULL DEFAULT 0,
	total_losses   BIGINT NOT NULL DEFAULT 0,
	biggest_win    NUMERIC(20,8) NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'active',
	version        BIGINT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wagers (
	id                  TEXT PRIMARY KEY,
	wallet_address      TEXT NOT NULL REFERENCES accounts(wallet_address),
	session_id          TEXT NOT NULL DEFAULT '',
	amount              NUMERIC(20,8) NOT NULL,
	multiplier          DOUBLE PRECISION NOT NULL,
	potential_win       NUMERIC(20,8) NOT NULL,
	column_id           TEXT NOT NULL,
	y_index             INTEGER NOT NULL,
	price_at_bet        DOUBLE PRECISION NOT NULL,
	win_price_min       DOUBLE PRECISION,
	win_price_max       DOUBLE PRECISION,
	status              TEXT NOT NULL,
	actual_win          NUMERIC(20,8),
	price_at_resolution DOUBLE PRECISION,
	created_at          TIMESTAMPTZ NOT NULL,
	resolved_at         TIMESTAMPTZ,
	CHECK (win_price_min IS NULL OR win_price_min <= win_price_max)
);

CREATE INDEX IF NOT EXISTS idx_wagers_pending ON wagers(created_at) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_wagers_wallet ON wagers(wallet_address, created_at DESC);

CREATE TABLE IF NOT EXISTS audit_log (
	id             BIGSERIAL PRIMARY KEY,
	wallet_address TEXT,
	action         TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	previous_value TEXT,
	new_value      TEXT,
	related_id     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Postgres implementa Store. Toda mutação de saldo é um único UPDATE condicional,
// sem ler-modificar-escrever no processo.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

const accountColumns = `wallet_address, balance, total_bets, total_wagered, total_won, total_lost,
	total_wins, total_losses, biggest_win, status, version, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var a Account
	var status string
	err := row.Scan(&a.WalletAddress, &a.Balance, &a.TotalBets, &a.TotalWagered, &a.TotalWon, &a.TotalLost,
		&a.TotalWins, &a.TotalLosses, &a.BiggestWin, &status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	a.Status = AccountStatus(status)
	return a, err
}

func (p *Postgres) GetAccount(ctx context.Context, wallet string) (Account, error) {
	return scanAccount(p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE wallet_address=$1`, wallet))
}

// GetOrCreateAccount usa ON CONFLICT para ser seguro sob criação concorrente
func (p *Postgres) GetOrCreateAccount(ctx context.Context, wallet string) (Account, error) {
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO accounts(wallet_address) VALUES($1) ON CONFLICT (wallet_address) DO NOTHING`, wallet); err != nil {
		return Account{}, err
	}
	return p.GetAccount(ctx, wallet)
}

func (p *Postgres) SetAccountStatus(ctx context.Context, wallet string, status AccountStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE accounts SET status=$1, updated_at=NOW() WHERE wallet_address=$2`, string(status), wallet)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) IncrementBalance(ctx context.Context, wallet string, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var next decimal.Decimal
	err := p.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE wallet_address = $2 AND balance + $1 >= 0
		RETURNING balance`, delta, wallet).Scan(&next)
	if err == nil {
		return next.Sub(delta), next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, decimal.Zero, err
	}

	// nenhuma linha: conta inexistente ou piso violado
	var current decimal.Decimal
	err = p.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE wallet_address=$1`, wallet).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return current, current, ErrInsufficientFunds
}

func (p *Postgres) IncrementStats(ctx context.Context, wallet string, d StatsDelta) error {
	won, lost := decimal.Zero, decimal.Zero
	wins, losses := 0, 0
	if d.IsWin {
		won, wins = d.WinAmount, 1
	} else {
		lost, losses = d.BetAmount, 1
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE accounts SET
			total_bets    = total_bets + 1,
			total_wagered = total_wagered + $2,
			total_won     = total_won + $3,
			total_lost    = total_lost + $4,
			total_wins    = total_wins + $5,
			total_losses  = total_losses + $6,
			biggest_win   = GREATEST(biggest_win, $3),
			updated_at    = NOW()
		WHERE wallet_address = $1`,
		wallet, d.BetAmount, won, lost, wins, losses)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) InsertWager(ctx context.Context, w Wager) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wagers(id, wallet_address, session_id, amount, multiplier, potential_win, column_id, y_index,
			price_at_bet, win_price_min, win_price_max, status, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		w.ID, w.WalletAddress, w.SessionID, w.Amount, w.Multiplier, w.PotentialWin, w.ColumnID, w.YIndex,
		w.PriceAtBet, w.WinPriceMin, w.WinPriceMax, string(w.Status), w.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

const wagerColumns = `id, wallet_address, session_id, amount, multiplier, potential_win, column_id, y_index,
	price_at_bet, win_price_min, win_price_max, status, actual_win, price_at_resolution, created_at, resolved_at`

func scanWager(row interface{ Scan(...any) error }) (Wager, error) {
	var (
		w          Wager
		status     string
		minP, maxP sql.NullFloat64
		actual     decimal.NullDecimal
		atRes      sql.NullFloat64
		resolvedAt sql.NullTime
	)
	err := row.Scan(&w.ID, &w.WalletAddress, &w.SessionID, &w.Amount, &w.Multiplier, &w.PotentialWin,
		&w.ColumnID, &w.YIndex, &w.PriceAtBet, &minP, &maxP, &status, &actual, &atRes, &w.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Wager{}, ErrNotFound
	}
	if err != nil {
		return Wager{}, err
	}
	w.Status = Status(status)
	if minP.Valid && maxP.Valid {
		lo, hi := minP.Float64, maxP.Float64
		w.WinPriceMin, w.WinPriceMax = &lo, &hi
	}
	if actual.Valid {
		w.ActualWin = actual.Decimal
	}
	w.PriceAtResolution = atRes.Float64
	if resolvedAt.Valid {
		t := resolvedAt.Time
		w.ResolvedAt = &t
	}
	return w, nil
}

func (p *Postgres) GetWager(ctx context.Context, id string) (Wager, error) {
	return scanWager(p.db.QueryRowContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id=$1`, id))
}

// TransitionWager é o compare-and-set de pending para terminal
func (p *Postgres) TransitionWager(ctx context.Context, id string, r Resolution) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE wagers
		SET status=$2, actual_win=$3, price_at_resolution=$4, resolved_at=$5
		WHERE id=$1 AND status='pending'`,
		id, string(r.Status), r.ActualWin, r.PriceAtResolution, r.ResolvedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Postgres) ListPending(ctx context.Context, createdBefore time.Time) ([]Wager, error) {
	if createdBefore.IsZero() {
		createdBefore = time.Now().Add(time.Hour)
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+wagerColumns+` FROM wagers
		WHERE status='pending' AND created_at < $1
		ORDER BY created_at`, createdBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendAudit(ctx context.Context, e AuditEntry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_log(wallet_address, action, description, previous_value, new_value, related_id)
		VALUES($1,$2,$3,$4,$5,$6)`,
		nullString(e.WalletAddress), e.Action, e.Description,
		nullString(e.PreviousValue), nullString(e.NewValue), nullString(e.RelatedID))
	return err
}

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }
