// Package db provides scoped database connection acquisition. A Provider
// keeps one lazily-opened pool per target database and hands out dedicated
// connections that callers must release on every exit path.
package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"sqlgate/internal/action"
	"sqlgate/internal/dialect"
)

// Pool configuration.
const (
	connectTimeout  = 10 * time.Second
	maxIdleConns    = 5
	maxOpenConns    = 10
	connMaxLifetime = time.Hour
)

// OpenFunc opens a database pool. Overridable in tests.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

type Option func(*Provider)

func WithOpener(open OpenFunc) Option {
	return func(p *Provider) { p.open = open }
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// Provider owns the pools. The pools map is the only shared mutable state;
// checkout of individual connections is serialized by database/sql itself.
type Provider struct {
	dialect dialect.Dialect
	params  dialect.ConnParams
	open    OpenFunc
	log     *slog.Logger

	mu    sync.Mutex
	pools map[string]*sql.DB
}

func NewProvider(d dialect.Dialect, params dialect.ConnParams, opts ...Option) *Provider {
	p := &Provider{
		dialect: d,
		params:  params,
		open:    func(driverName, dsn string) (*sql.DB, error) { return sql.Open(driverName, dsn) },
		log:     slog.New(slog.DiscardHandler),
		pools:   make(map[string]*sql.DB),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle is a connection checked out for exactly one in-flight call.
type Handle struct {
	conn *sql.Conn
	once sync.Once
}

func (h *Handle) Conn() *sql.Conn { return h.conn }

// Release returns the connection to its pool. Safe to call more than once,
// so handlers can defer it and still release early.
func (h *Handle) Release() {
	h.once.Do(func() {
		_ = h.conn.Close()
	})
}

// Acquire checks out a dedicated connection for the named database, opening
// the pool on first use. An empty name connects without selecting a default
// schema. The target is taken from this call only, never from a prior one.
func (p *Provider) Acquire(ctx context.Context, database string) (*Handle, error) {
	pool, err := p.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, action.Errorf(action.KindConnection, "acquire connection: %v", err)
	}
	return &Handle{conn: conn}, nil
}

func (p *Provider) pool(ctx context.Context, database string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.pools[database]; ok {
		return pool, nil
	}

	dsn := p.dialect.DSN(p.params, database)
	pool, err := p.open(p.dialect.DriverName(), dsn)
	if err != nil {
		return nil, action.Errorf(action.KindConnection, "open database: %v", err)
	}

	pool.SetMaxIdleConns(maxIdleConns)
	pool.SetMaxOpenConns(maxOpenConns)
	pool.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, action.Errorf(action.KindConnection, "connect to database: %v", err)
	}

	p.log.Debug("opened pool", "driver", p.dialect.DriverName(), "database", database)
	p.pools[database] = pool
	return pool, nil
}

// Stats reports pool statistics for the named database; the zero value when
// no pool has been opened for it.
func (p *Provider) Stats(database string) sql.DBStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok := p.pools[database]; ok {
		return pool.Stats()
	}
	return sql.DBStats{}
}

// Close shuts down every pool. The provider is unusable afterwards.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, pool := range p.pools {
		if err := pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.pools, name)
	}
	return firstErr
}
