package database

import (
	"database/sql"
	"fmt"
	"log/slog" // use slog for structured logging

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sockethub/internal/hub"
)

// Connect opens the postgres database through the pgx driver, verifies the
// connection and migrates the history schema.
func Connect(databaseURL string, logger *slog.Logger) (*gorm.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection
	if err := sqlDB.Ping(); err != nil {
		// close the handle if ping fails to avoid a resource leak
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	if err := db.AutoMigrate(&hub.MessageRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("connected_to_database")
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
