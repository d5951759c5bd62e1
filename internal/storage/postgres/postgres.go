package postgres

import (
	"context"
	"errors"

	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage — Postgres implementation of storage.Storage
type PostgresStorage struct {
	pool     *pgxpool.Pool
	plans    *plansStorage
	recipes  *recipesStorage
	patients *patientsStorage
}

// New opens the pool and checks connectivity. Schema is managed by goose
// (cmd/migrate or RUN_MIGRATIONS_ON_STARTUP).
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{
		pool:     pool,
		plans:    newPlansStorage(pool),
		recipes:  newRecipesStorage(pool),
		patients: newPatientsStorage(pool),
	}, nil
}

func (p *PostgresStorage) GetPlansStorage() storage.PlansStorage {
	return p.plans
}

func (p *PostgresStorage) GetRecipesStorage() storage.RecipesStorage {
	return p.recipes
}

func (p *PostgresStorage) GetPatientsStorage() storage.PatientsStorage {
	return p.patients
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so read helpers
// can run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// isUUID guards UUID columns: a malformed id cannot match any row.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
