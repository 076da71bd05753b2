package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	customerdomain "github.com/justinhw1987/invoiceflow/internal/customer/domain"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
	recurringdomain "github.com/justinhw1987/invoiceflow/internal/recurring/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted table in creation order.
func Models() []any {
	return []any{
		&authdomain.User{},
		&authdomain.Session{},
		&customerdomain.Customer{},
		&recurringdomain.Template{},
		&recurringdomain.Item{},
		&invoicedomain.Invoice{},
		&invoicedomain.Item{},
		&paymentdomain.EventRecord{},
	}
}

// AutoMigrate creates the schema from the models. It backs mysql, sqlite and
// tests; cascades there are carried out by the repositories.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	return db.AutoMigrate(Models()...)
}

// Apply picks the migration strategy for the connected dialect.
func Apply(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if db.Dialector.Name() != "postgres" {
		return AutoMigrate(db)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
