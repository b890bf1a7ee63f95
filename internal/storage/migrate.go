package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

func MigrateUp(db *sql.DB) error {
	return applyMigrations(db, DialectSQLite, ".up.sql")
}

func MigrateDown(db *sql.DB) error {
	return applyMigrations(db, DialectSQLite, ".down.sql")
}

// Migrate applies the up or down migrations of the repository's dialect.
func (r *SQLRepository) Migrate(up bool) error {
	suffix := ".down.sql"
	if up {
		suffix = ".up.sql"
	}
	return applyMigrations(r.db, r.dialect, suffix)
}

func applyMigrations(db *sql.DB, dialect Dialect, suffix string) error {
	entries, err := fs.Glob(migrationFiles, "migrations/"+string(dialect)+"/*"+suffix)
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no %s migrations for dialect %s", suffix, dialect)
	}
	sort.Strings(entries)
	if suffix == ".down.sql" {
		sort.Sort(sort.Reverse(sort.StringSlice(entries)))
	}
	for _, name := range entries {
		sqlBytes, readErr := migrationFiles.ReadFile(name)
		if readErr != nil {
			return fmt.Errorf("read migration %s: %w", name, readErr)
		}
		if _, execErr := db.Exec(string(sqlBytes)); execErr != nil {
			return fmt.Errorf("apply migration %s: %w", name, execErr)
		}
	}
	return nil
}
