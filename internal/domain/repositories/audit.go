package repositories

import (
	"context"

	"docvault/internal/domain/models"
)

// AuditSink is the append-only audit contract consumed by the delivery
// pipeline and the administrative mutation paths.
type AuditSink interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

// AuditRepository adds the administrative read side.
type AuditRepository interface {
	AuditSink
	ListRecent(ctx context.Context, limit int) ([]models.AuditEvent, error)
}
