package service

import (
	"context"

	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

const defaultAuditLimit = 100

// AuditService is the administrative read side of the audit trail.
type AuditService struct {
	audit repositories.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(audit repositories.AuditRepository) *AuditService {
	return &AuditService{audit: audit}
}

// Recent returns the newest events, most recent first. A non-positive
// limit falls back to the default page size.
func (s *AuditService) Recent(ctx context.Context, principal models.Principal, limit int) ([]models.AuditEvent, error) {
	if err := requireAdmin(principal, "read audit"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	return s.audit.ListRecent(ctx, limit)
}
