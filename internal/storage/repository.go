package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Options selects and configures the backing database.
type Options struct {
	Dialect     Dialect
	SQLitePath  string
	DatabaseURL string
}

// DSN returns the connection string for the configured dialect.
func (o Options) DSN() string {
	if o.Dialect == Postgres {
		return o.DatabaseURL
	}
	// _txlock=immediate makes every BEGIN take the write lock up front, which
	// serialises read-then-write transactions such as a principal paydown.
	return "file:" + o.SQLitePath +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Repository is the ledger store. Every method is scoped to an account id.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects, verifies the connection and applies migrations.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Dialect == "" {
		opts.Dialect = SQLite
	}
	switch opts.Dialect {
	case SQLite:
		if strings.TrimSpace(opts.SQLitePath) == "" {
			return nil, errors.New("sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	case Postgres:
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, errors.New("database url is required for postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}

	dsn := opts.DSN()
	db, err := sql.Open(opts.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Dialect, err)
	}
	if opts.Dialect == SQLite {
		// One writer at a time; readers still proceed under WAL.
		db.SetMaxOpenConns(4)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(opts.Dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Ledger store ready", "dialect", string(opts.Dialect))

	return &Repository{
		db:      db,
		dialect: opts.Dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Dialect returns the SQL dialect in use.
func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) q(query string) string {
	return r.dialect.Rebind(query)
}

// withTx runs fn in a transaction, committing on nil and rolling back
// otherwise. A cancelled ctx aborts the transaction.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// timestamp scans created_at columns. Postgres returns time.Time; SQLite may
// return text depending on how the value was written.
type timestamp struct {
	t *time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (s timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
}

func (s timestamp) parse(v string) error {
	// Go's default time formatting appends a monotonic clock reading.
	if i := strings.Index(v, " m="); i >= 0 {
		v = v[:i]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan timestamp: unrecognised format %q", v)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// rowsAffected turns a zero-row update or delete into ErrNotFound.
func rowsAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
