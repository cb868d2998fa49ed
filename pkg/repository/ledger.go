package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"invoice-scan/pkg/models"
)

// GormLedger records upload directory contents in a stored_files table.
type GormLedger struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func NewGormLedger(db *gorm.DB) (*GormLedger, error) {
	if err := db.AutoMigrate(&models.StoredFile{}); err != nil {
		return nil, fmt.Errorf("migrate stored_files: %w", err)
	}
	return &GormLedger{db: db}, nil
}

// Track inserts f or, for an existing name, refreshes its metadata and
// updated_at.
func (l *GormLedger) Track(ctx context.Context, f models.StoredFile) error {
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "size", "sha256", "updated_at"}),
	}).Create(&f).Error
}

func (l *GormLedger) Expired(ctx context.Context, cutoff time.Time) ([]string, error) {
	var names []string
	err := l.db.WithContext(ctx).
		Model(&models.StoredFile{}).
		Where("updated_at < ?", cutoff).
		Order("updated_at").
		Pluck("name", &names).Error
	return names, err
}

func (l *GormLedger) Forget(ctx context.Context, name string) error {
	return l.db.WithContext(ctx).Unscoped().Where("name = ?", name).Delete(&models.StoredFile{}).Error
}
