package storage

import (
	"context"

	"github.com/provenkit/provenkit/pkg/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type sqliteAuditEventsRepo struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewSQLiteAuditEventsRepo opens (or creates) the sqlite database holding the
// audit log. The table is insert-only: no update or delete path exists on the
// repository, which is how the append-only contract is enforced.
func NewSQLiteAuditEventsRepo(logger *logrus.Entry, path string) (AuditEventsRepo, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		logger.Errorf("could not open audit database at %s: %s", path, err)
		return nil, err
	}

	if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
		logger.Errorf("could not migrate audit events table: %s", err)
		return nil, err
	}

	return &sqliteAuditEventsRepo{
		db:     db,
		logger: logger,
	}, nil
}

func (repo *sqliteAuditEventsRepo) Insert(ctx context.Context, event *models.AuditEvent) error {
	return repo.db.WithContext(ctx).Create(event).Error
}

func (repo *sqliteAuditEventsRepo) SelectAll(ctx context.Context, queryParams AuditEventsQuery) ([]models.AuditEvent, error) {
	tx := repo.db.WithContext(ctx).Model(&models.AuditEvent{})

	if queryParams.Kind != "" {
		tx = tx.Where("kind = ?", queryParams.Kind)
	}

	if !queryParams.Since.IsZero() {
		tx = tx.Where("timestamp >= ?", queryParams.Since.UTC())
	}

	if queryParams.Limit > 0 {
		tx = tx.Limit(queryParams.Limit)
	}

	events := []models.AuditEvent{}
	if err := tx.Order("timestamp asc").Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (repo *sqliteAuditEventsRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.AuditEvent{}).Count(&count).Error
	return count, err
}
