// Package store is the pgx-backed persistence layer shared by the ingestor
// and the alerter.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andresdiniz/wazeBR-sub001/internal/report"
)

// querier is the subset of pgxpool.Pool the store executes against. Tests
// substitute an in-memory implementation.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps the connection pool. GlobalPartnerID marks recipients that
// receive alerts from every partner's feed.
type Store struct {
	db              querier
	pool            *pgxpool.Pool
	rep             *report.Reporter
	GlobalPartnerID int
}

// Open connects and verifies the database before returning.
func Open(ctx context.Context, dsn string, rep *report.Reporter) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db pool init: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Store{db: pool, pool: pool, rep: rep}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database reachability, backing the /health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
