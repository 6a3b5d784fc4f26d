package db

import (
	"fmt"

	"switchpac/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		// Error level hides "SLOW SQL" warnings during bulk saves
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Option{}, &model.Fetch{})
}

// Open connects and migrates in one step.
func Open(path string) (*gorm.DB, error) {
	database, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(database); err != nil {
		Close(database)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database, nil
}

func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
