package repositories

import (
	"context"

	"docvault/internal/domain/models"
)

// FolderRepository persists the folder forest. Single-row lookups report
// an absent row as domain.ErrNotFound, never as a nil result.
type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, id int64) (*models.Folder, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	ListChildren(ctx context.Context, parentID int64) ([]models.Folder, error)
	GetByNameAndParent(ctx context.Context, name string, parentID int64) (*models.Folder, error)

	// ParentIDs loads the full id -> parent_id adjacency map in one query.
	// Both the upward visibility closure and the downward descendant walks
	// run over this map with explicit worklists.
	ParentIDs(ctx context.Context) (map[int64]int64, error)

	// LockForUpdate takes a row lock on the folder for the duration of the
	// surrounding transaction, serializing concurrent propagations over
	// overlapping subtrees.
	LockForUpdate(ctx context.Context, id int64) error

	SearchByName(ctx context.Context, query string) ([]models.Folder, error)
}
