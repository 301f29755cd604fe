package bunrepo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// MemoryDSN is a shared in-memory sqlite database
const MemoryDSN = "file::memory:?cache=shared"

// IsPostgresDSN reports whether dsn points at a postgres server
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open picks the dialect from the DSN: postgres URLs use pgdriver, anything
// else is handed to sqlite.
func Open(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("bunrepo: empty database url")
	}

	if IsPostgresDSN(dsn) {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	dsn = strings.TrimPrefix(dsn, "sqlite://")
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("bunrepo: open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
