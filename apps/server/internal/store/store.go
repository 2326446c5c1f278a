// Package store opens the sqlite / postgres handles shared by auth and ledger.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// OpTimeout bounds every single storage round trip.
const OpTimeout = 5 * time.Second

// DB is a *sql.DB that knows which SQL flavour it talks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

func OpenSQLite(dbPath string) (*DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// 单连接: 内存库在连接间不共享, WAL 也只需要一个写者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), OpTimeout)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db, Dialect: SQLite}, nil
}

func OpenPostgres(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), OpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db, Dialect: Postgres}, nil
}

// Rebind rewrites '?' placeholders to $n for postgres.
func (d *DB) Rebind(query string) string {
	if d.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// DDL expands {{pk}} and {{int}} column types for the dialect.
func (d *DB) DDL(stmt string) string {
	pk, integer := "INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER"
	if d.Dialect == Postgres {
		pk, integer = "BIGSERIAL PRIMARY KEY", "BIGINT"
	}
	return strings.NewReplacer("{{pk}}", pk, "{{int}}", integer).Replace(stmt)
}

// EnsureSchema runs idempotent CREATE statements.
func (d *DB) EnsureSchema(ctx context.Context, statements ...string) error {
	for _, stmt := range statements {
		if _, err := d.ExecContext(ctx, d.DDL(stmt)); err != nil {
			return err
		}
	}
	return nil
}

// InsertID runs an INSERT inside tx and returns the generated id column.
func (d *DB) InsertID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if d.Dialect == Postgres {
		var id int64
		err := tx.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func NowMs() int64 { return time.Now().UTC().UnixMilli() }

// DefaultSQLitePath places the local database under the user config dir.
func DefaultSQLitePath(name string) (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "AsylumLite", name), nil
}
