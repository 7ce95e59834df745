package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool *pgxpool.Pool
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &PostgresFolderRepository{pool: config.Pool}
}

// Create creates a new folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	q := GetExecutor(ctx, r.pool)

	err := q.QueryRow(ctx, `
		INSERT INTO folders (name, parent_id, creator_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`,
		folder.Name,
		folder.ParentID,
		folder.CreatorID,
		folder.CreatedAt,
	).Scan(&folder.ID, &folder.CreatedAt)

	if err != nil {
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id int64) (*models.Folder, error) {
	q := GetExecutor(ctx, r.pool)

	var folder models.Folder
	err := q.QueryRow(ctx, `
		SELECT id, name, parent_id, creator_id, created_at
		FROM folders
		WHERE id = $1
	`, id).Scan(
		&folder.ID,
		&folder.Name,
		&folder.ParentID,
		&folder.CreatorID,
		&folder.CreatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return &folder, nil
}

// Rename updates a folder's name
func (r *PostgresFolderRepository) Rename(ctx context.Context, id int64, name string) error {
	q := GetExecutor(ctx, r.pool)

	result, err := q.Exec(ctx, `UPDATE folders SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("rename folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a single folder row. Recursive subtree deletion is
// orchestrated by the folder service.
func (r *PostgresFolderRepository) Delete(ctx context.Context, id int64) error {
	q := GetExecutor(ctx, r.pool)

	result, err := q.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListChildren lists immediate child folders
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, parentID int64) ([]models.Folder, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT id, name, parent_id, creator_id, created_at
		FROM folders
		WHERE parent_id = $1
		ORDER BY created_at ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list folder children: %w", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(
			&folder.ID,
			&folder.Name,
			&folder.ParentID,
			&folder.CreatorID,
			&folder.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

// GetByNameAndParent finds a folder by name within a parent, returning
// nil without error when absent.
func (r *PostgresFolderRepository) GetByNameAndParent(ctx context.Context, name string, parentID int64) (*models.Folder, error) {
	q := GetExecutor(ctx, r.pool)

	var folder models.Folder
	err := q.QueryRow(ctx, `
		SELECT id, name, parent_id, creator_id, created_at
		FROM folders
		WHERE name = $1 AND parent_id = $2
	`, name, parentID).Scan(
		&folder.ID,
		&folder.Name,
		&folder.ParentID,
		&folder.CreatorID,
		&folder.CreatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("folder %q under %d: %w", name, parentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder by name and parent: %w", err)
	}

	return &folder, nil
}

// ParentIDs loads the id -> parent_id adjacency map for the whole forest.
func (r *PostgresFolderRepository) ParentIDs(ctx context.Context) (map[int64]int64, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `SELECT id, parent_id FROM folders`)
	if err != nil {
		return nil, fmt.Errorf("load folder adjacency: %w", err)
	}
	defer rows.Close()

	parents := make(map[int64]int64)
	for rows.Next() {
		var id, parentID int64
		if err := rows.Scan(&id, &parentID); err != nil {
			return nil, fmt.Errorf("scan folder adjacency: %w", err)
		}
		parents[id] = parentID
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder adjacency: %w", err)
	}

	return parents, nil
}

// LockForUpdate takes a row lock on the folder within the current
// transaction.
func (r *PostgresFolderRepository) LockForUpdate(ctx context.Context, id int64) error {
	q := GetExecutor(ctx, r.pool)

	var locked int64
	err := q.QueryRow(ctx, `SELECT id FROM folders WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("lock folder: %w", err)
	}

	return nil
}

// SearchByName finds folders whose name contains the query.
func (r *PostgresFolderRepository) SearchByName(ctx context.Context, query string) ([]models.Folder, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT id, name, parent_id, creator_id, created_at
		FROM folders
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name ASC
	`, query)
	if err != nil {
		return nil, fmt.Errorf("search folders: %w", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(
			&folder.ID,
			&folder.Name,
			&folder.ParentID,
			&folder.CreatorID,
			&folder.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}
