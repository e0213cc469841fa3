package storage

import (
	"context"
	"time"

	"github.com/provenkit/provenkit/pkg/models"
)

type AuditEventsRepo interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	SelectAll(ctx context.Context, queryParams AuditEventsQuery) ([]models.AuditEvent, error)
	Count(ctx context.Context) (int64, error)
}

type AuditEventsQuery struct {
	Kind  models.EventType
	Since time.Time
	Limit int
}
