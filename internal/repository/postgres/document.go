package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{pool: config.Pool}
}

const documentColumns = `id, title, storage_path, content_type, size, uploader_id, folder_id, created_at`

func scanDocument(row pgx.Row, doc *models.Document) error {
	return row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.StoragePath,
		&doc.ContentType,
		&doc.Size,
		&doc.UploaderID,
		&doc.FolderID,
		&doc.CreatedAt,
	)
}

// Create creates a new document
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	q := GetExecutor(ctx, r.pool)

	err := q.QueryRow(ctx, `
		INSERT INTO documents (title, storage_path, content_type, size, uploader_id, folder_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		doc.Title,
		doc.StoragePath,
		doc.ContentType,
		doc.Size,
		doc.UploaderID,
		doc.FolderID,
		doc.CreatedAt,
	).Scan(&doc.ID, &doc.CreatedAt)

	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	q := GetExecutor(ctx, r.pool)

	var doc models.Document
	err := scanDocument(q.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = $1
	`, id), &doc)

	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

// Rename updates a document's title
func (r *PostgresDocumentRepository) Rename(ctx context.Context, id int64, title string) error {
	q := GetExecutor(ctx, r.pool)

	result, err := q.Exec(ctx, `UPDATE documents SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a document row
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id int64) error {
	q := GetExecutor(ctx, r.pool)

	result, err := q.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Replace swaps the backing blob of an existing document (upload with
// conflict_mode=replace), refreshing size and creation time.
func (r *PostgresDocumentRepository) Replace(ctx context.Context, id int64, storagePath string, size int64) error {
	q := GetExecutor(ctx, r.pool)

	result, err := q.Exec(ctx, `
		UPDATE documents SET storage_path = $1, size = $2, created_at = now() WHERE id = $3
	`, storagePath, size, id)
	if err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// GetByTitle finds a document by title within a folder.
func (r *PostgresDocumentRepository) GetByTitle(ctx context.Context, folderID int64, title string) (*models.Document, error) {
	q := GetExecutor(ctx, r.pool)

	var doc models.Document
	err := scanDocument(q.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE folder_id = $1 AND title = $2
	`, folderID, title), &doc)

	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("document %q in folder %d: %w", title, folderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document by title: %w", err)
	}

	return &doc, nil
}

// ListByFolder lists every document directly inside a folder
func (r *PostgresDocumentRepository) ListByFolder(ctx context.Context, folderID int64) ([]models.Document, error) {
	return r.list(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE folder_id = $1 ORDER BY created_at DESC
	`, folderID)
}

// ListByFolders lists every document directly inside any of the folders
func (r *PostgresDocumentRepository) ListByFolders(ctx context.Context, folderIDs []int64) ([]models.Document, error) {
	return r.list(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE folder_id = ANY($1) ORDER BY created_at DESC
	`, folderIDs)
}

// IDsByFolders returns the ids of documents directly inside the folders
func (r *PostgresDocumentRepository) IDsByFolders(ctx context.Context, folderIDs []int64) ([]int64, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `SELECT id FROM documents WHERE folder_id = ANY($1)`, folderIDs)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document ids: %w", err)
	}

	return ids, nil
}

// ListWithAccess aggregates the principal's effective flags per document
// in a folder: BOOL_OR across the user's own grant row and every group
// grant row, keeping rows the principal uploaded or can view.
func (r *PostgresDocumentRepository) ListWithAccess(ctx context.Context, folderID, userID int64, groupIDs []int64) ([]models.DocumentAccess, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT d.id, d.title, d.storage_path, d.content_type, d.size, d.uploader_id, d.folder_id, d.created_at,
		       COALESCE(BOOL_OR(CASE
		           WHEN g.subject_type = 'user' AND g.subject_id = $2 THEN g.can_view
		           WHEN g.subject_type = 'group' AND g.subject_id = ANY($3) THEN g.can_view
		           END), FALSE) AS can_view,
		       COALESCE(BOOL_OR(CASE
		           WHEN g.subject_type = 'user' AND g.subject_id = $2 THEN g.can_download
		           WHEN g.subject_type = 'group' AND g.subject_id = ANY($3) THEN g.can_download
		           END), FALSE) AS can_download
		FROM documents d
		LEFT JOIN document_grants g ON g.document_id = d.id
		WHERE d.folder_id = $1
		GROUP BY d.id
		HAVING d.uploader_id = $2
		    OR COALESCE(BOOL_OR(CASE
		           WHEN g.subject_type = 'user' AND g.subject_id = $2 THEN g.can_view
		           WHEN g.subject_type = 'group' AND g.subject_id = ANY($3) THEN g.can_view
		           END), FALSE)
		ORDER BY d.created_at DESC
	`, folderID, userID, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("list documents with access: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentAccess
	for rows.Next() {
		var da models.DocumentAccess
		err := rows.Scan(
			&da.ID,
			&da.Title,
			&da.StoragePath,
			&da.ContentType,
			&da.Size,
			&da.UploaderID,
			&da.FolderID,
			&da.CreatedAt,
			&da.CanView,
			&da.CanDownload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan document access: %w", err)
		}
		docs = append(docs, da)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents with access: %w", err)
	}

	return docs, nil
}

// SearchByTitle finds documents whose title contains the query (admin path)
func (r *PostgresDocumentRepository) SearchByTitle(ctx context.Context, query string) ([]models.Document, error) {
	return r.list(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE title ILIKE '%' || $1 || '%' ORDER BY title ASC
	`, query)
}

// SearchByTitleVisible restricts the title search to documents the
// principal uploaded or holds a view grant on.
func (r *PostgresDocumentRepository) SearchByTitleVisible(ctx context.Context, query string, userID int64, groupIDs []int64) ([]models.Document, error) {
	return r.list(ctx, `
		SELECT DISTINCT d.id, d.title, d.storage_path, d.content_type, d.size, d.uploader_id, d.folder_id, d.created_at
		FROM documents d
		LEFT JOIN document_grants g ON g.document_id = d.id
		WHERE d.title ILIKE '%' || $1 || '%'
		  AND (d.uploader_id = $2
		       OR (g.subject_type = 'user' AND g.subject_id = $2 AND g.can_view)
		       OR (g.subject_type = 'group' AND g.subject_id = ANY($3) AND g.can_view))
		ORDER BY d.title ASC
	`, query, userID, groupIDs)
}

func (r *PostgresDocumentRepository) list(ctx context.Context, sql string, args ...interface{}) ([]models.Document, error) {
	q := GetExecutor(ctx, r.pool)

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := scanDocument(rows, &doc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}
