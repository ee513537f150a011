package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig bounds the sink connection pool.
type PoolConfig struct {
	DSN            string
	MinConns       int
	MaxConns       int
	AcquireTimeout time.Duration
}

// Validate checks pool bounds before any connection is opened.
func (c PoolConfig) Validate() error {
	if c.DSN == "" {
		return errors.New("database DSN is required")
	}
	if c.MinConns < 1 {
		return fmt.Errorf("pool min conns must be >= 1, got %d", c.MinConns)
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("pool max conns (%d) must be >= min conns (%d)", c.MaxConns, c.MinConns)
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("acquire timeout must be positive, got %v", c.AcquireTimeout)
	}
	return nil
}

// Pool owns the bounded set of sink connections. Physical connections are
// opened lazily on first acquire; Close invalidates every handle.
type Pool struct {
	pgx    *pgxpool.Pool
	db     *sql.DB
	config PoolConfig
}

// NewPool builds the pool from validated config. No connection is dialed
// here; pgxpool opens lazily on first use.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pgxCfg.MinConns = int32(cfg.MinConns)
	pgxCfg.MaxConns = int32(cfg.MaxConns)
	pgxCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout

	pgxPool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return &Pool{
		pgx:    pgxPool,
		db:     stdlib.OpenDBFromPool(pgxPool),
		config: cfg,
	}, nil
}

// Acquire lends a dedicated connection from the pool, blocking up to the
// configured acquire timeout. The caller must Release it on every exit path.
// Exhaustion and timeout surface as a retryable pool-unavailable error.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	conn, err := p.pgx.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapError(CodePoolUnavailable, true, err)
		}
		return nil, Classify(err)
	}
	return conn, nil
}

// DB exposes the database/sql bridge over the same bounded pool, for the
// store layer. database/sql checks connections out per statement and pins
// one for the duration of a transaction, so scoped acquisition holds.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Ping verifies the sink is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.pgx.Ping(ctx); err != nil {
		return Classify(err)
	}
	return nil
}

// Close invalidates all handles and tears down every physical connection.
func (p *Pool) Close() {
	if p.db != nil {
		p.db.Close()
	}
	if p.pgx != nil {
		p.pgx.Close()
	}
}
