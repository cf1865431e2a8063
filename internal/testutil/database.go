// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenInMemory returns an empty, migrated sqlite database. The pool is pinned
// to one connection since every connection to :memory: is its own database,
// so code under test must run transactional work on the tx it was handed.
func OpenInMemory(migrate func(db *gorm.DB) error) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if migrate != nil {
		if err := migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
