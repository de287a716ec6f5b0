package gormstore

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres and runs migrations for the store's tables.
func Open(dsn string, verbose bool) (*gorm.DB, error) {
	logLevel := gormlogger.Error
	if verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[gormstore.Open] connect")
	}

	if err := db.AutoMigrate(
		&clientModel{},
		&grantModel{},
		&userModel{},
		&sessionModel{},
		&consentModel{},
		&accessTokenModel{},
		&refreshTokenModel{},
	); err != nil {
		return nil, errors.Wrap(err, "[gormstore.Open] migrate")
	}

	return db, nil
}
