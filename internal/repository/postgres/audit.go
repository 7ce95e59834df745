package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// PostgresAuditRepository implements the append-only AuditRepository
type PostgresAuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(config *RepositoryConfig) repositories.AuditRepository {
	return &PostgresAuditRepository{pool: config.Pool}
}

// Append writes one audit event
func (r *PostgresAuditRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	q := GetExecutor(ctx, r.pool)

	if event.CreatedAt.IsZero() {
		err := q.QueryRow(ctx, `
			INSERT INTO audit_events (actor_id, document_id, action, trace_token)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, event.ActorID, event.DocumentID, event.Action, event.TraceToken).Scan(&event.ID, &event.CreatedAt)
		if err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
		return nil
	}

	err := q.QueryRow(ctx, `
		INSERT INTO audit_events (actor_id, document_id, action, trace_token, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, event.ActorID, event.DocumentID, event.Action, event.TraceToken, event.CreatedAt).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	return nil
}

// ListRecent returns the most recent events, newest first
func (r *PostgresAuditRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT id, actor_id, document_id, action, trace_token, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		err := rows.Scan(&e.ID, &e.ActorID, &e.DocumentID, &e.Action, &e.TraceToken, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
