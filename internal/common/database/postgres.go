// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vocab-reconciler/internal/common/config"
	"vocab-reconciler/internal/common/logger"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection pool. One logical session
// is drawn from it per batch request (or per sub-query when the coordinator
// runs sub-queries concurrently).
type PostgresClient struct {
	DB     *sql.DB
	logger logger.Logger
}

// NewPostgres creates a new PostgreSQL client.
func NewPostgres(cfg config.PostgresConfig, log logger.Logger) (*PostgresClient, error) {
	dsn := cfg.GetDSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db, logger: log}, nil
}

// NewPostgresFromDB wraps an existing *sql.DB. Used by tests with sqlmock.
func NewPostgresFromDB(db *sql.DB, log logger.Logger) *PostgresClient {
	return &PostgresClient{DB: db, logger: log}
}

// Ping tests the database connection.
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection.
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// NewSession opens a fresh reconciliation session. The session begins its
// transaction lazily on the first statement, bound to ctx, which must outlive
// every statement run on the session. Per-statement deadlines belong to the
// contexts passed to Query.
func (c *PostgresClient) NewSession(ctx context.Context) *Session {
	return &Session{
		db:     c.DB,
		txCtx:  ctx,
		state:  StateIdle,
		logger: c.logger,
	}
}
