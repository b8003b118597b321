package database

import (
	"fmt"

	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig, debug bool, log logrus.FieldLogger) (*gorm.DB, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)

	log.WithField("host", cfg.Host).Info("connected to PostgreSQL")
	return db, nil
}

// AutoMigrate creates or updates the bills table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&entity.Bill{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
