package repositories

import (
	"context"

	"docvault/internal/domain/models"
)

// DocumentRepository persists document rows. Single-row lookups report
// an absent row as domain.ErrNotFound, never as a nil result.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	Rename(ctx context.Context, id int64, title string) error
	Delete(ctx context.Context, id int64) error
	Replace(ctx context.Context, id int64, storagePath string, size int64) error
	GetByTitle(ctx context.Context, folderID int64, title string) (*models.Document, error)
	ListByFolder(ctx context.Context, folderID int64) ([]models.Document, error)

	// IDsByFolders returns the ids of every document directly inside any of
	// the given folders. Callers pass the transitive folder set to collect
	// a subtree's documents.
	IDsByFolders(ctx context.Context, folderIDs []int64) ([]int64, error)
	ListByFolders(ctx context.Context, folderIDs []int64) ([]models.Document, error)

	// ListWithAccess performs the per-row grant aggregation for a folder
	// listing: MAX of the view/download flags across the user's own grant
	// row and every group grant row, keeping rows the principal uploaded
	// or can view.
	ListWithAccess(ctx context.Context, folderID, userID int64, groupIDs []int64) ([]models.DocumentAccess, error)

	SearchByTitle(ctx context.Context, query string) ([]models.Document, error)
	SearchByTitleVisible(ctx context.Context, query string, userID int64, groupIDs []int64) ([]models.Document, error)
}
