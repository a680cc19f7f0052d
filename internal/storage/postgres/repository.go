package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/utils"
)

const paymentsTable = "payments"

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	id              UUID PRIMARY KEY,
	transaction_id  TEXT NOT NULL,
	method          TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	amount          NUMERIC(14, 4) NOT NULL,
	status          TEXT NOT NULL,
	bank_account_id TEXT,
	provider_detail TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS payments_created_at_idx ON payments (created_at DESC);
`

var paymentColumns = []string{
	"id", "transaction_id", "method", "strategy", "amount::text",
	"status", "bank_account_id", "provider_detail", "created_at",
}

type postgresRepo struct {
	tx      *PostgresTransactor
	builder squirrel.StatementBuilderType
}

func NewPostgresRepo(conn *Postgres, tx *PostgresTransactor) domain.Repository {
	return &postgresRepo{tx: tx, builder: conn.Builder}
}

// EnsureSchema creates the payments table when it does not exist.
func EnsureSchema(ctx context.Context, conn *Postgres) error {
	if _, err := conn.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *postgresRepo) InsertPayment(ctx context.Context, payment *domain.PaymentRecord) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	query, args, err := insertPaymentQuery(r.builder, payment)
	if err != nil {
		return fmt.Errorf("failed to build insert payment query: %w", err)
	}

	if _, err := r.tx.Querier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert payment %s: %w", payment.TransactionID, err)
	}
	return nil
}

func (r *postgresRepo) ListPayments(ctx context.Context, limit uint64) ([]*domain.PaymentRecord, error) {
	query, args, err := listPaymentsQuery(r.builder, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build list payments query: %w", err)
	}

	rows, err := r.tx.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*domain.PaymentRecord, 0, limit)
	for rows.Next() {
		var (
			p              domain.PaymentRecord
			method         string
			strategy       string
			amount         string
			status         string
			bankAccountID  sql.NullString
			providerDetail sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.TransactionID, &method, &strategy, &amount,
			&status, &bankAccountID, &providerDetail, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}

		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q for payment %s: %w", amount, p.ID, err)
		}
		p.Method = domain.PaymentMethod(method)
		p.Strategy = domain.StrategyName(strategy)
		p.Status = domain.PaymentStatus(status)
		p.BankAccountID = utils.SqlToNullString(bankAccountID)
		p.ProviderDetail = utils.SqlToNullString(providerDetail)
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}

	return payments, nil
}

func insertPaymentQuery(b squirrel.StatementBuilderType, p *domain.PaymentRecord) (string, []interface{}, error) {
	return b.Insert(paymentsTable).
		Columns("id", "transaction_id", "method", "strategy", "amount",
			"status", "bank_account_id", "provider_detail", "created_at").
		Values(p.ID, p.TransactionID, string(p.Method), string(p.Strategy), p.Amount.String(),
			string(p.Status), utils.NullStringToSQL(p.BankAccountID), utils.NullStringToSQL(p.ProviderDetail), p.CreatedAt).
		ToSql()
}

func listPaymentsQuery(b squirrel.StatementBuilderType, limit uint64) (string, []interface{}, error) {
	return b.Select(paymentColumns...).
		From(paymentsTable).
		OrderBy("created_at DESC").
		Limit(limit).
		ToSql()
}
