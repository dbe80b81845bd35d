package sqlqueue

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scrapeforge/crawlcore/internal/logger"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue/sqlqueue/migrations"
)

// runPostgresMigrations applies sqlqueue's schema to a Postgres database.
// golang-migrate uses Postgres advisory locks automatically, so concurrent
// callers from multiple processes racing to open the same queue are safe.
func runPostgresMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("sqlqueue: open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "sqlqueue_schema_migrations",
		DatabaseName:    "sqlqueue",
	})
	if err != nil {
		return fmt.Errorf("sqlqueue: create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("sqlqueue: create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("sqlqueue: create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("sqlqueue: apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("sqlqueue: read migration version: %w", err)
	}
	if dirty {
		logger.Warn("sqlqueue schema is in a dirty migration state", "version", version)
	}
	return nil
}
