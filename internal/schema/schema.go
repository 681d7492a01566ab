// Package schema holds the destination schema as embedded SQL migrations
// and applies them with sql-migrate.
package schema

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	dialect        = "postgres"
	migrationTable = "seed_migrations"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func init() {
	migrate.SetTable(migrationTable)
}

// Source returns the embedded migration set.
func Source() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}
}

// MigrationStatus reports whether one migration has been applied.
type MigrationStatus struct {
	ID        string
	Applied   bool
	AppliedAt time.Time
}

// Up applies every pending migration and returns how many ran.
func Up(pool *pgxpool.Pool) (int, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	n, err := migrate.Exec(db, dialect, Source(), migrate.Up)
	if err != nil {
		return n, fmt.Errorf("apply migrations: %w", err)
	}
	return n, nil
}

// Down rolls back the most recent steps migrations. steps <= 0 rolls back all.
func Down(pool *pgxpool.Pool, steps int) (int, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if steps < 0 {
		steps = 0
	}
	n, err := migrate.ExecMax(db, dialect, Source(), migrate.Down, steps)
	if err != nil {
		return n, fmt.Errorf("roll back migrations: %w", err)
	}
	return n, nil
}

// Status lists every known migration with its applied state.
func Status(pool *pgxpool.Pool) ([]MigrationStatus, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return status(db, Source())
}

func status(db *sql.DB, src migrate.MigrationSource) ([]MigrationStatus, error) {
	migrations, err := src.FindMigrations()
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	records, err := migrate.GetMigrationRecords(db, dialect)
	if err != nil {
		return nil, fmt.Errorf("read migration records: %w", err)
	}
	applied := make(map[string]time.Time, len(records))
	for _, r := range records {
		applied[r.Id] = r.AppliedAt
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		at, ok := applied[m.Id]
		out = append(out, MigrationStatus{ID: m.Id, Applied: ok, AppliedAt: at})
	}
	return out, nil
}
