package data

import (
	"clouddb/internal/core"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type dialect struct {
	name        string
	driverName  string
	createTable string
	placeholder func(n int) string
}

func question(int) string { return "?" }

var dialects = map[string]dialect{
	"sqlite": {
		name:       "sqlite",
		driverName: "sqlite",
		createTable: `CREATE TABLE IF NOT EXISTS documents (
			doc_key TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			version INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		placeholder: question,
	},
	"postgres": {
		name:       "postgres",
		driverName: "postgres",
		createTable: `CREATE TABLE IF NOT EXISTS documents (
			doc_key TEXT PRIMARY KEY,
			body BYTEA NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	},
	"mysql": {
		name:       "mysql",
		driverName: "mysql",
		createTable: `CREATE TABLE IF NOT EXISTS documents (
			doc_key VARCHAR(191) PRIMARY KEY,
			body LONGBLOB NOT NULL,
			version BIGINT NOT NULL,
			updated_at DATETIME(3) NULL
		)`,
		placeholder: question,
	},
	"sqlserver": {
		name:       "sqlserver",
		driverName: "sqlserver",
		createTable: `IF OBJECT_ID(N'documents', N'U') IS NULL
		CREATE TABLE documents (
			doc_key NVARCHAR(191) PRIMARY KEY,
			body VARBINARY(MAX) NOT NULL,
			version BIGINT NOT NULL,
			updated_at DATETIME2 NULL
		)`,
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	},
	// Sql Anywhere through ODBC, as deployed by the bridge installs.
	"odbc": {
		name:       "odbc",
		driverName: "odbc",
		createTable: `CREATE TABLE IF NOT EXISTS documents (
			doc_key VARCHAR(191) PRIMARY KEY,
			body LONG BINARY NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMP NULL
		)`,
		placeholder: question,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
	return d, nil
}

// SQLStore keeps one row per document key in the documents table.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, d: d}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	query := fmt.Sprintf(`SELECT body, version FROM documents WHERE doc_key = %s`, s.d.placeholder(1))

	var body []byte
	var version int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrBlobNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return body, version, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, body []byte, expectVersion int64) (int64, error) {
	ph := s.d.placeholder
	now := time.Now().UTC()

	if expectVersion == 0 {
		query := fmt.Sprintf(`INSERT INTO documents (doc_key, body, version, updated_at) VALUES (%s, %s, %s, %s)`,
			ph(1), ph(2), ph(3), ph(4))
		if _, err := s.db.ExecContext(ctx, query, key, body, int64(1), now); err != nil {
			// A concurrent first write wins the primary key.
			if _, _, getErr := s.Get(ctx, key); getErr == nil {
				return 0, core.ErrVersionConflict
			}
			return 0, err
		}
		return 1, nil
	}

	next := expectVersion + 1
	query := fmt.Sprintf(`UPDATE documents SET body = %s, version = %s, updated_at = %s WHERE doc_key = %s AND version = %s`,
		ph(1), ph(2), ph(3), ph(4), ph(5))
	res, err := s.db.ExecContext(ctx, query, body, next, now, key, expectVersion)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, core.ErrVersionConflict
	}
	return next, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
