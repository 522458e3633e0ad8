package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by repositories (also satisfied by pgxmock)
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PersonRepositoryInterface defines read access to the person record store
type PersonRepositoryInterface interface {
	ListSearching(ctx context.Context) ([]domain.PersonRecord, error)
	GetByID(ctx context.Context, id string) (*domain.PersonRecord, error)
}
