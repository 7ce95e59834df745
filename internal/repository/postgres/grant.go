package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// PostgresGrantRepository implements the GrantRepository interface over
// the folder_grants and document_grants tables.
type PostgresGrantRepository struct {
	pool *pgxpool.Pool
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(config *RepositoryConfig) repositories.GrantRepository {
	return &PostgresGrantRepository{pool: config.Pool}
}

// FolderGrants lists the grant rows on a folder
func (r *PostgresGrantRepository) FolderGrants(ctx context.Context, folderID int64) ([]models.Grant, error) {
	return r.grants(ctx, `
		SELECT subject_id, subject_type, can_view, can_download
		FROM folder_grants WHERE folder_id = $1
		ORDER BY subject_type, subject_id
	`, folderID)
}

// InsertFolderGrants inserts grant rows on a folder verbatim
func (r *PostgresGrantRepository) InsertFolderGrants(ctx context.Context, folderID int64, grants []models.Grant) error {
	q := GetExecutor(ctx, r.pool)

	for _, g := range grants {
		_, err := q.Exec(ctx, `
			INSERT INTO folder_grants (folder_id, subject_id, subject_type, can_view, can_download)
			VALUES ($1, $2, $3, $4, $5)
		`, folderID, g.SubjectID, g.SubjectType, g.CanView, g.CanDownload)
		if err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("grant for %s %d on folder %d: duplicate subject", g.SubjectType, g.SubjectID, folderID)
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: folder %d", domain.ErrNotFound, folderID)
			}
			return fmt.Errorf("insert folder grant: %w", err)
		}
	}

	return nil
}

// DeleteFolderGrants removes every grant row on a folder
func (r *PostgresGrantRepository) DeleteFolderGrants(ctx context.Context, folderID int64) error {
	q := GetExecutor(ctx, r.pool)

	if _, err := q.Exec(ctx, `DELETE FROM folder_grants WHERE folder_id = $1`, folderID); err != nil {
		return fmt.Errorf("delete folder grants: %w", err)
	}

	return nil
}

// DocumentGrants lists the grant rows on a document
func (r *PostgresGrantRepository) DocumentGrants(ctx context.Context, documentID int64) ([]models.Grant, error) {
	return r.grants(ctx, `
		SELECT subject_id, subject_type, can_view, can_download
		FROM document_grants WHERE document_id = $1
		ORDER BY subject_type, subject_id
	`, documentID)
}

// InsertDocumentGrantsAbsent copies grants onto a document, leaving any
// existing row for the same subject untouched.
func (r *PostgresGrantRepository) InsertDocumentGrantsAbsent(ctx context.Context, documentID int64, grants []models.Grant) error {
	q := GetExecutor(ctx, r.pool)

	for _, g := range grants {
		_, err := q.Exec(ctx, `
			INSERT INTO document_grants (document_id, subject_id, subject_type, can_view, can_download)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (document_id, subject_id, subject_type) DO NOTHING
		`, documentID, g.SubjectID, g.SubjectType, g.CanView, g.CanDownload)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: document %d", domain.ErrNotFound, documentID)
			}
			return fmt.Errorf("insert document grant: %w", err)
		}
	}

	return nil
}

// UpsertDocumentGrants mirrors grants onto every listed document,
// overwriting the flags of existing rows for the same subject.
func (r *PostgresGrantRepository) UpsertDocumentGrants(ctx context.Context, documentIDs []int64, grants []models.Grant) error {
	q := GetExecutor(ctx, r.pool)

	for _, g := range grants {
		_, err := q.Exec(ctx, `
			INSERT INTO document_grants (document_id, subject_id, subject_type, can_view, can_download)
			SELECT unnest($1::bigint[]), $2, $3, $4, $5
			ON CONFLICT (document_id, subject_id, subject_type)
			DO UPDATE SET can_view = EXCLUDED.can_view, can_download = EXCLUDED.can_download
		`, documentIDs, g.SubjectID, g.SubjectType, g.CanView, g.CanDownload)
		if err != nil {
			return fmt.Errorf("upsert document grants: %w", err)
		}
	}

	return nil
}

// DeleteDocumentGrants removes every grant row on the listed documents
func (r *PostgresGrantRepository) DeleteDocumentGrants(ctx context.Context, documentIDs []int64) error {
	q := GetExecutor(ctx, r.pool)

	if _, err := q.Exec(ctx, `DELETE FROM document_grants WHERE document_id = ANY($1)`, documentIDs); err != nil {
		return fmt.Errorf("delete document grants: %w", err)
	}

	return nil
}

// ReplaceDocumentGrants swaps a single document's grant rows wholesale
func (r *PostgresGrantRepository) ReplaceDocumentGrants(ctx context.Context, documentID int64, grants []models.Grant) error {
	q := GetExecutor(ctx, r.pool)

	if _, err := q.Exec(ctx, `DELETE FROM document_grants WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document grants: %w", err)
	}

	for _, g := range grants {
		_, err := q.Exec(ctx, `
			INSERT INTO document_grants (document_id, subject_id, subject_type, can_view, can_download)
			VALUES ($1, $2, $3, $4, $5)
		`, documentID, g.SubjectID, g.SubjectType, g.CanView, g.CanDownload)
		if err != nil {
			return fmt.Errorf("insert document grant: %w", err)
		}
	}

	return nil
}

// FolderFlags aggregates the principal's effective flags on a folder
func (r *PostgresGrantRepository) FolderFlags(ctx context.Context, folderID, userID int64, groupIDs []int64) (bool, bool, error) {
	return r.flags(ctx, `
		SELECT COALESCE(BOOL_OR(can_view), FALSE), COALESCE(BOOL_OR(can_download), FALSE)
		FROM folder_grants
		WHERE folder_id = $1
		  AND ((subject_type = 'user' AND subject_id = $2)
		       OR (subject_type = 'group' AND subject_id = ANY($3)))
	`, folderID, userID, groupIDs)
}

// DocumentFlags aggregates the principal's effective flags on a document
func (r *PostgresGrantRepository) DocumentFlags(ctx context.Context, documentID, userID int64, groupIDs []int64) (bool, bool, error) {
	return r.flags(ctx, `
		SELECT COALESCE(BOOL_OR(can_view), FALSE), COALESCE(BOOL_OR(can_download), FALSE)
		FROM document_grants
		WHERE document_id = $1
		  AND ((subject_type = 'user' AND subject_id = $2)
		       OR (subject_type = 'group' AND subject_id = ANY($3)))
	`, documentID, userID, groupIDs)
}

// ViewableDocumentFolderIDs returns folders containing a document the
// principal uploaded or can view.
func (r *PostgresGrantRepository) ViewableDocumentFolderIDs(ctx context.Context, userID int64, groupIDs []int64) ([]int64, error) {
	return r.ids(ctx, `
		SELECT DISTINCT d.folder_id
		FROM documents d
		LEFT JOIN document_grants g ON g.document_id = d.id
		WHERE d.uploader_id = $1
		   OR (g.subject_type = 'user' AND g.subject_id = $1 AND g.can_view)
		   OR (g.subject_type = 'group' AND g.subject_id = ANY($2) AND g.can_view)
	`, userID, groupIDs)
}

// ViewableFolderIDs returns folders the principal created or holds a view
// grant on, directly or through a group.
func (r *PostgresGrantRepository) ViewableFolderIDs(ctx context.Context, userID int64, groupIDs []int64) ([]int64, error) {
	return r.ids(ctx, `
		SELECT DISTINCT f.id
		FROM folders f
		LEFT JOIN folder_grants g ON g.folder_id = f.id
		WHERE f.creator_id = $1
		   OR (g.subject_type = 'user' AND g.subject_id = $1 AND g.can_view)
		   OR (g.subject_type = 'group' AND g.subject_id = ANY($2) AND g.can_view)
	`, userID, groupIDs)
}

// DeleteBySubject removes every grant row held by the subject
func (r *PostgresGrantRepository) DeleteBySubject(ctx context.Context, subjectType string, subjectID int64) error {
	q := GetExecutor(ctx, r.pool)

	if _, err := q.Exec(ctx, `
		DELETE FROM folder_grants WHERE subject_type = $1 AND subject_id = $2
	`, subjectType, subjectID); err != nil {
		return fmt.Errorf("delete folder grants by subject: %w", err)
	}

	if _, err := q.Exec(ctx, `
		DELETE FROM document_grants WHERE subject_type = $1 AND subject_id = $2
	`, subjectType, subjectID); err != nil {
		return fmt.Errorf("delete document grants by subject: %w", err)
	}

	return nil
}

func (r *PostgresGrantRepository) grants(ctx context.Context, sql string, args ...interface{}) ([]models.Grant, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []models.Grant
	for rows.Next() {
		var g models.Grant
		if err := rows.Scan(&g.SubjectID, &g.SubjectType, &g.CanView, &g.CanDownload); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}

	return grants, nil
}

func (r *PostgresGrantRepository) flags(ctx context.Context, sql string, args ...interface{}) (bool, bool, error) {
	q := GetExecutor(ctx, r.pool)

	var canView, canDownload bool
	if err := q.QueryRow(ctx, sql, args...).Scan(&canView, &canDownload); err != nil {
		return false, false, fmt.Errorf("aggregate grant flags: %w", err)
	}

	return canView, canDownload, nil
}

func (r *PostgresGrantRepository) ids(ctx context.Context, sql string, args ...interface{}) ([]int64, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}

	return ids, nil
}
