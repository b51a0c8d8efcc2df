// Package store persists the scheme catalog, user profiles and applications with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalidStatus = errors.New("invalid application status")
)

// Open connects to postgres for postgres:// DSNs and to a sqlite file otherwise,
// then migrates the tables this package owns.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemeRecord{}, &SchemeVersionRecord{}, &ProfileRecord{}, &ApplicationRecord{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// EventSink receives change events emitted by the profile and application stores.
type EventSink interface {
	ProfileChanged(ctx context.Context, before, after models.Profile)
	ApplicationStatusChanged(ctx context.Context, app models.Application, previous models.ApplicationStatus)
}

type nopSink struct{}

func (nopSink) ProfileChanged(context.Context, models.Profile, models.Profile) {}
func (nopSink) ApplicationStatusChanged(context.Context, models.Application, models.ApplicationStatus) {
}

func sinkOrNop(s EventSink) EventSink {
	if s == nil {
		return nopSink{}
	}
	return s
}
