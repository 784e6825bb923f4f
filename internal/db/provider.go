package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotConnected = errors.New("database is not connected")

type Options struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	RunMigrations   bool
}

// Provider opens the database on Connect and hands out the shared handle
// afterwards. Connect is meant to be driven by a readiness gate, which
// guarantees it is not called concurrently.
type Provider struct {
	opts Options
	db   atomic.Pointer[sql.DB]
}

func NewProvider(opts Options) *Provider {
	return &Provider{opts: opts}
}

func (p *Provider) Connect(ctx context.Context) error {
	if p.db.Load() != nil {
		return nil
	}

	database, err := sql.Open("pgx", p.opts.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(p.opts.MaxOpenConns)
	database.SetMaxIdleConns(p.opts.MaxIdleConns)
	database.SetConnMaxLifetime(p.opts.ConnMaxLifetime)
	database.SetConnMaxIdleTime(p.opts.ConnMaxIdleTime)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	if p.opts.RunMigrations {
		if err := RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	p.db.Store(database)
	return nil
}

// DB returns the connected handle, or nil before Connect succeeds.
func (p *Provider) DB() *sql.DB {
	return p.db.Load()
}

// Ping checks the live connection; it never opens one.
func (p *Provider) Ping(ctx context.Context) error {
	database := p.db.Load()
	if database == nil {
		return ErrNotConnected
	}
	return database.PingContext(ctx)
}

func (p *Provider) Close() error {
	database := p.db.Swap(nil)
	if database == nil {
		return nil
	}
	return database.Close()
}
