// Package sqlite carries transactions through a context so repositories
// join whatever unit of work the workflow engine opened.
package sqlite

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/pkg/database"
)

type txKey struct{}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB implements port.TransactionManager over an open database.
type DB struct {
	conn *database.DB
}

func NewDB(conn *database.DB) *DB {
	return &DB{conn: conn}
}

// WithTransaction runs fn with a transaction in its context. A context that
// already carries one is passed through, so nested calls share the outer
// transaction and only the outermost call commits.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return db.conn.Tx(ctx, func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Executor returns the context's transaction, or the pool when there is none.
func (db *DB) Executor(ctx context.Context) Executor {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.conn.DB
}

func (db *DB) Logger() *zap.Logger {
	return db.conn.Logger()
}

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

var _ port.TransactionManager = (*DB)(nil)
