package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// PostgresGroupRepository implements the GroupRepository interface
type PostgresGroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(config *RepositoryConfig) repositories.GroupRepository {
	return &PostgresGroupRepository{pool: config.Pool}
}

// Create creates a new group
func (r *PostgresGroupRepository) Create(ctx context.Context, group *models.Group) error {
	q := GetExecutor(ctx, r.pool)

	err := q.QueryRow(ctx, `
		INSERT INTO groups (name, created_at) VALUES ($1, now())
		RETURNING id, created_at
	`, group.Name).Scan(&group.ID, &group.CreatedAt)

	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("group '%s': %w", group.Name, domain.ErrConflict)
		}
		return fmt.Errorf("create group: %w", err)
	}

	return nil
}

// GetByID retrieves a group by ID
func (r *PostgresGroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	q := GetExecutor(ctx, r.pool)

	var group models.Group
	err := q.QueryRow(ctx, `
		SELECT id, name, created_at FROM groups WHERE id = $1
	`, id).Scan(&group.ID, &group.Name, &group.CreatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("group %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get group: %w", err)
	}

	return &group, nil
}

// GetByName finds a group by name
func (r *PostgresGroupRepository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	q := GetExecutor(ctx, r.pool)

	var group models.Group
	err := q.QueryRow(ctx, `
		SELECT id, name, created_at FROM groups WHERE name = $1
	`, name).Scan(&group.ID, &group.Name, &group.CreatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("group %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get group by name: %w", err)
	}

	return &group, nil
}

// Rename updates a group's name
func (r *PostgresGroupRepository) Rename(ctx context.Context, id int64, name string) error {
	q := GetExecutor(ctx, r.pool)

	result, err := q.Exec(ctx, `UPDATE groups SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("group '%s': %w", name, domain.ErrConflict)
		}
		return fmt.Errorf("rename group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("group %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a group row
func (r *PostgresGroupRepository) Delete(ctx context.Context, id int64) error {
	q := GetExecutor(ctx, r.pool)

	result, err := q.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("group %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// List lists every group
func (r *PostgresGroupRepository) List(ctx context.Context) ([]models.Group, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `SELECT id, name, created_at FROM groups ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	return groups, nil
}

// GroupIDsForUser resolves a user to its set of group subjects
func (r *PostgresGroupRepository) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `SELECT group_id FROM group_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group ids: %w", err)
	}

	return ids, nil
}

// ReplaceUserGroups swaps a user's memberships wholesale
func (r *PostgresGroupRepository) ReplaceUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	q := GetExecutor(ctx, r.pool)

	if _, err := q.Exec(ctx, `DELETE FROM group_members WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user memberships: %w", err)
	}

	for _, gid := range groupIDs {
		if _, err := q.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, gid, userID); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
	}

	return nil
}

// DeleteMemberships removes every membership of a group
func (r *PostgresGroupRepository) DeleteMemberships(ctx context.Context, groupID int64) error {
	q := GetExecutor(ctx, r.pool)

	if _, err := q.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}

	return nil
}
