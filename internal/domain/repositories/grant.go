package repositories

import (
	"context"

	"docvault/internal/domain/models"
)

// GrantRepository persists folder and document grant rows. Folder grants
// and document grants share one shape and one uniqueness rule (at most one
// row per resource/subject pair), so they live behind one repository.
type GrantRepository interface {
	FolderGrants(ctx context.Context, folderID int64) ([]models.Grant, error)
	InsertFolderGrants(ctx context.Context, folderID int64, grants []models.Grant) error
	DeleteFolderGrants(ctx context.Context, folderID int64) error

	DocumentGrants(ctx context.Context, documentID int64) ([]models.Grant, error)

	// InsertDocumentGrantsAbsent copies grants onto a document with
	// insert-if-absent semantics: an existing row for the same subject is
	// left untouched. Used by creation-time inheritance.
	InsertDocumentGrantsAbsent(ctx context.Context, documentID int64, grants []models.Grant) error

	// UpsertDocumentGrants mirrors grants onto every listed document,
	// overwriting the flags of any existing row for the same subject.
	// Used by the replace-time cascade.
	UpsertDocumentGrants(ctx context.Context, documentIDs []int64, grants []models.Grant) error

	DeleteDocumentGrants(ctx context.Context, documentIDs []int64) error
	ReplaceDocumentGrants(ctx context.Context, documentID int64, grants []models.Grant) error

	// FolderFlags and DocumentFlags aggregate the effective view/download
	// flags for a principal: logical OR across the user's own grant row
	// and every group grant row.
	FolderFlags(ctx context.Context, folderID, userID int64, groupIDs []int64) (canView, canDownload bool, err error)
	DocumentFlags(ctx context.Context, documentID, userID int64, groupIDs []int64) (canView, canDownload bool, err error)

	// ViewableDocumentFolderIDs returns the folders containing at least one
	// document the principal uploaded or can view (closure seed set a).
	ViewableDocumentFolderIDs(ctx context.Context, userID int64, groupIDs []int64) ([]int64, error)

	// ViewableFolderIDs returns the folders the principal created or holds
	// a view grant on, directly or via a group (closure seed set b).
	ViewableFolderIDs(ctx context.Context, userID int64, groupIDs []int64) ([]int64, error)

	// DeleteBySubject removes every folder and document grant row held by
	// the subject. Used when a group or user is removed.
	DeleteBySubject(ctx context.Context, subjectType string, subjectID int64) error
}
