package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool and by pgxmock pools.
type Pool interface {
	executor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements ports.Store on PostgreSQL. WithinTx runs fn in one database
// transaction.
type Store struct {
	pool Pool
}

var _ ports.Store = (*Store)(nil)

func NewStore(pool Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (s *Store) Repositories() ports.Repositories {
	return repositoriesFor(s.pool)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, repositoriesFor(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(err, "commit transaction")
	}
	return nil
}

func (s *Store) ListIDs(ctx context.Context, entity domain.EntityType) ([]string, error) {
	q := builder.Select("id").OrderBy("id")
	switch entity {
	case domain.EntityUser:
		q = q.From("users")
	case domain.EntityGroup:
		q = q.From("groups")
	case domain.EntityCompany:
		q = q.From("companies")
	default:
		if !entity.Valid() {
			return nil, domain.ErrInvalidInput
		}
		q = q.From("records").Where(squirrel.Eq{"entity": string(entity)})
	}
	return queryStrings(ctx, s.pool, q, "list ids")
}

var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func repositoriesFor(exec executor) ports.Repositories {
	return ports.Repositories{
		Users:        &userRepository{exec: exec},
		Groups:       &groupRepository{exec: exec},
		Grants:       &grantRepository{exec: exec},
		Companies:    &companyRepository{exec: exec},
		Sales:        newRecordRepository[domain.Sale](exec, domain.EntitySale),
		Purchases:    newRecordRepository[domain.Purchase](exec, domain.EntityPurchase),
		Bookings:     newRecordRepository[domain.Booking](exec, domain.EntityBooking),
		BookingTypes: newRecordRepository[domain.BookingType](exec, domain.EntityBookingType),
		Media:        newRecordRepository[domain.Media](exec, domain.EntityMedia),
	}
}

func execStmt(ctx context.Context, exec executor, q squirrel.Sqlizer, op string) (pgconn.CommandTag, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build %s sql: %w", op, err)
	}
	tag, err := exec.Exec(ctx, stmt, args...)
	if err != nil {
		return pgconn.CommandTag{}, translate(err, op)
	}
	return tag, nil
}

func queryStrings(ctx context.Context, exec executor, q squirrel.SelectBuilder, op string) ([]string, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s sql: %w", op, err)
	}
	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, translate(err, op)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	return out, nil
}
