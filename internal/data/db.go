package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultSQLitePath places clouddb.db next to the executable, falling back to
// the working directory when running from a temp build (go run).
func DefaultSQLitePath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "clouddb.db"
	}
	dbPath := filepath.Join(filepath.Dir(exePath), "clouddb.db")

	dir := filepath.Base(filepath.Dir(exePath))
	if dir != "clouddb" && dir != "build" {
		wd, _ := os.Getwd()
		dbPath = filepath.Join(wd, "clouddb.db")
	}
	return dbPath
}

// InitDB opens the document table on the given driver and runs migrations.
// The caller is responsible for importing the driver package.
func InitDB(driver, dsn string) (*sql.DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, err
	}

	if d.name == "sqlite" {
		// One connection keeps sqlite writes serialized inside the process.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := runMigrations(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}

	return db, nil
}

func runMigrations(db *sql.DB, d dialect) error {
	_, err := db.Exec(d.createTable)
	return err
}
