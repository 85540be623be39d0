package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shipworks/backoffice/internal/repository"
)

// DBTX is satisfied by both pgxpool.Pool and pgx.Tx, so every repo works the
// same inside and outside a transaction.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) Party() repository.PartyRepo {
	return &PartyRepo{db: s.db}
}

func (s *Storage) Wallet() repository.WalletRepo {
	return &WalletRepo{db: s.db}
}

func (s *Storage) Address() repository.AddressRepo {
	return &AddressRepo{db: s.db}
}

func (s *Storage) Order() repository.OrderRepo {
	return &OrderRepo{db: s.db}
}

func (s *Storage) Charge() repository.ChargeRepo {
	return &ChargeRepo{db: s.db}
}

func (s *Storage) Claim() repository.ClaimRepo {
	return &ClaimRepo{db: s.db}
}

func (s *Storage) Courier() repository.CourierRepo {
	return &CourierRepo{db: s.db}
}

// InTx begins a transaction (a savepoint when db already is one) and hands fn
// a Storage bound to it. Any error rolls the whole scope back.
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
