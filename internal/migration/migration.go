package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/payrelay/internal/ledger/sqlstore"
	"github.com/smallbiznis/payrelay/pkg/db"
	"gorm.io/gorm"
)

// ledgerMigrationsTable keeps the ledger's version row apart from any other
// schema sharing the database.
const ledgerMigrationsTable = "payrelay_schema_migrations"

// Run brings the ledger tables up to date. Postgres uses the versioned SQL
// files; the other dialects fall back to AutoMigrate.
func Run(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if !strings.EqualFold(strings.TrimSpace(dbType), db.TypePostgres) {
		if err := conn.AutoMigrate(sqlstore.Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded postgres migrations. The migrator is
// left open since closing it would close db.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	files, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("ledger migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: ledgerMigrationsTable})
	if err != nil {
		return fmt.Errorf("ledger migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("ledger migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply ledger migrations: %w", err)
	}
	return nil
}
