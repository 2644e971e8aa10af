package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/echocoach/pkg/store"
)

var _ store.Store = (*Store)(nil)

// DefaultEmbeddingDimensions is used when no embeddings provider is
// configured. The embedding column stays NULL in that case.
const DefaultEmbeddingDimensions = 1536

// Store is the PostgreSQL-backed [store.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
	dims int
}

type options struct {
	dims     int
	maxConns int32
	trace    bool
}

// Option configures [NewStore].
type Option func(*options)

// WithEmbeddingDimensions sets the size of the question embedding column. It
// must match the embeddings provider used for deduplication. Default
// [DefaultEmbeddingDimensions].
func WithEmbeddingDimensions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.dims = n
		}
	}
}

// WithMaxConns caps the pool size. Zero keeps the pgxpool default, which
// is the larger of 4 and the CPU count.
func WithMaxConns(n int) Option {
	return func(o *options) { o.maxConns = int32(n) }
}

// WithQueryTracing records every query as an OpenTelemetry client span on
// the global tracer provider.
func WithQueryTracing() Option {
	return func(o *options) { o.trace = true }
}

// NewStore connects to the database at dsn, registers the pgvector types on
// every pooled connection and runs [Migrate].
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := options{dims: DefaultEmbeddingDimensions}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}
	if o.trace {
		cfg.ConnConfig.Tracer = newQueryTracer(cfg.ConnConfig.Database)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	s := &Store{pool: pool, dims: o.dims}
	if err := s.open(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) open(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, s.pool, s.dims); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases all pooled connections.
func (s *Store) Close() { s.pool.Close() }

// newID keeps a caller-chosen ID and mints a UUID otherwise.
func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
