package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	pingTimeout     = 5 * time.Second
)

type Store struct {
	DB      *sqlx.DB
	dialect string // "sqlite" or "postgres"
}

// IsPostgresDSN reports whether dsn selects the lib/pq driver.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the database named by dsn and runs migrations.
// postgres:// DSNs pick the lib/pq driver; anything else is treated as a
// SQLite file path (":memory:" works for tests).
func Open(dsn string) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
		st  *Store
	)

	if IsPostgresDSN(dsn) {
		db, err = sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		st = &Store{DB: db, dialect: "postgres"}
	} else {
		path := dsn
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			path = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
		}
		db, err = sqlx.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// sqlite wants a single writer; in-memory databases are also
		// per-connection, so one connection keeps everyone on the same data.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(connMaxLifetime)
		st = &Store{DB: db, dialect: "sqlite"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// rebind converts ?-style placeholders for the active driver.
func (s *Store) rebind(query string) string {
	if s.dialect == "postgres" {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return query
}
