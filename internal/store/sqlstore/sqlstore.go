// Package sqlstore implements store.Store on database/sql for PostgreSQL
// (lib/pq) and SQLite (modernc.org/sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/terminal-bench/fleetcompliance/internal/store"

	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// maxTxAttempts bounds retries of postgres serialization failures.
const maxTxAttempts = 3

type dialect struct {
	name      string
	schema    []string
	forUpdate string
	txOptions *sql.TxOptions
}

var (
	postgresDialect = dialect{
		name:      DriverPostgres,
		schema:    postgresSchema,
		forUpdate: " FOR UPDATE",
		txOptions: &sql.TxOptions{Isolation: sql.LevelSerializable},
	}
	sqliteDialect = dialect{
		name:   DriverSQLite,
		schema: sqliteSchema,
	}
)

// rebind rewrites ? placeholders into $n for postgres.
func (d dialect) rebind(query string) string {
	if d.name != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is a SQL-backed store.Store. A Store returned to a RunInTx callback
// is bound to that transaction.
type Store struct {
	db   *sql.DB
	q    querier
	d    dialect
	inTx bool
}

var _ store.Store = (*Store)(nil)

// Open connects to driver ("postgres" or "sqlite") using dsn. For sqlite the
// dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	case DriverSQLite:
		db, err = sql.Open("sqlite", "file:"+dsn+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
		if err == nil {
			// One connection: sqlite has a single writer and :memory:
			// databases are per connection.
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return New(db, driver)
}

// New wraps an existing handle.
func New(db *sql.DB, driver string) (*Store, error) {
	switch driver {
	case DriverPostgres:
		return &Store{db: db, q: db, d: postgresDialect}, nil
	case DriverSQLite:
		return &Store{db: db, q: db, d: sqliteDialect}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying handle. It is a no-op on a transactional Store.
func (s *Store) Close() error {
	if s.inTx || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTx runs fn in a transaction, committing when fn returns nil. Nested
// calls join the running transaction. Postgres serialization failures are
// retried.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn func(tx store.Store) error) (err error) {
	tx, err := s.db.BeginTx(ctx, s.d.txOptions)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Store{db: s.db, q: tx, d: s.d, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// lockSuffix returns the row-lock clause when running inside a transaction.
func (s *Store) lockSuffix() string {
	if s.inTx {
		return s.d.forUpdate
	}
	return ""
}
