package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles the repositories sharing one connection or transaction.
type Repositories struct {
	Tickets    TicketRepository
	Messages   TicketMessageRepository
	History    TicketHistoryRepository
	Companies  CompanyRepository
	Users      UserRepository
	References ReferenceRepository
}

// NewRepositories builds Postgres repositories on top of db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:    NewTicketRepository(db),
		Messages:   NewTicketMessageRepository(db),
		History:    NewTicketHistoryRepository(db),
		Companies:  NewCompanyRepository(db),
		Users:      NewUserRepository(db),
		References: NewReferenceRepository(db),
	}
}

// TxRunner runs a unit of work atomically. Returning an error from fn rolls it back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type pgTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner returns a TxRunner backed by Postgres transactions.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &pgTxRunner{pool: pool}
}

func (r *pgTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}
