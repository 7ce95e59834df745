package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
	"docvault/internal/service/propagation"
	"docvault/internal/storage"
)

// allowedExtensions is the upload allowlist. Everything else is refused
// before any bytes are stored.
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// ConflictMode selects what happens when an upload's title collides with
// an existing document in the target folder.
type ConflictMode string

const (
	// ConflictFail refuses the upload.
	ConflictFail ConflictMode = "fail"
	// ConflictRename stores the new document under a " (n)" suffixed title.
	ConflictRename ConflictMode = "rename"
	// ConflictReplace swaps the existing document's content in place,
	// keeping its id and grant rows.
	ConflictReplace ConflictMode = "replace"
)

// UploadInput describes one upload.
type UploadInput struct {
	Filename string
	Content  io.Reader
	FolderID int64
	// RelativePath optionally nests the document under folders created
	// on demand beneath FolderID, e.g. "2026/contracts".
	RelativePath string
	OnConflict   ConflictMode
}

// DocumentService manages document rows and their backing blobs.
type DocumentService struct {
	txm         repositories.TransactionManager
	folders     repositories.FolderRepository
	docs        repositories.DocumentRepository
	grants      repositories.GrantRepository
	propagation *propagation.Engine
	blobs       storage.BlobStore
	audit       repositories.AuditSink
	logger      *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	txm repositories.TransactionManager,
	folders repositories.FolderRepository,
	docs repositories.DocumentRepository,
	grants repositories.GrantRepository,
	prop *propagation.Engine,
	blobs storage.BlobStore,
	audit repositories.AuditSink,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		txm:         txm,
		folders:     folders,
		docs:        docs,
		grants:      grants,
		propagation: prop,
		blobs:       blobs,
		audit:       audit,
		logger:      logger,
	}
}

// Upload stores a new document. The blob is written first under a
// generated name; the rows follow in one transaction, and the blob is
// removed again if that transaction fails.
func (s *DocumentService) Upload(ctx context.Context, principal models.Principal, in UploadInput) (*models.Document, error) {
	if err := requireAdmin(principal, "upload"); err != nil {
		return nil, err
	}
	if err := validateName(in.Filename); err != nil {
		return nil, err
	}

	ext := extensionOf(in.Filename)
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: file type %q is not allowed", domain.ErrValidation, ext)
	}

	folderID := in.FolderID
	if folderID != models.RootFolderID {
		if _, err := s.folders.GetByID(ctx, folderID); err != nil {
			return nil, fmt.Errorf("target folder: %w", err)
		}
	}

	// Content has to be buffered: a replace-mode collision needs the
	// size before the row update, and a failed transaction needs the
	// blob removed again.
	content, err := io.ReadAll(in.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", domain.ErrStorage, err)
	}

	storagePath := uuid.New().String() + "." + ext
	size, err := s.blobs.Save(ctx, storagePath, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: store upload: %v", domain.ErrStorage, err)
	}

	doc := &models.Document{
		Title:       in.Filename,
		StoragePath: storagePath,
		ContentType: ext,
		Size:        size,
		UploaderID:  principal.ID,
	}

	var replacedPath string
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		targetID, err := s.ensureFolderPath(ctx, principal, folderID, in.RelativePath)
		if err != nil {
			return err
		}
		doc.FolderID = targetID

		existing, err := s.docs.GetByTitle(ctx, targetID, in.Filename)
		switch {
		case err == nil:
			return s.resolveCollision(ctx, principal, doc, existing, in.OnConflict, &replacedPath)
		case errors.Is(err, domain.ErrNotFound):
			return s.insertDocument(ctx, principal, doc)
		default:
			return err
		}
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, storagePath); rmErr != nil {
			s.logger.Warn("orphaned blob after failed upload", "path", storagePath, "error", rmErr)
		}
		return nil, err
	}

	if replacedPath != "" && replacedPath != storagePath {
		if err := s.blobs.Remove(ctx, replacedPath); err != nil {
			s.logger.Warn("orphaned blob after replace", "path", replacedPath, "error", err)
		}
	}

	return doc, nil
}

func (s *DocumentService) insertDocument(ctx context.Context, principal models.Principal, doc *models.Document) error {
	if err := s.docs.Create(ctx, doc); err != nil {
		return err
	}
	if err := s.propagation.OnDocumentCreate(ctx, doc.ID, doc.FolderID); err != nil {
		return err
	}
	return s.audit.Append(ctx, &models.AuditEvent{
		ActorID:    principal.ID,
		DocumentID: doc.ID,
		Action:     models.ActionUpload,
		TraceToken: doc.Title,
	})
}

func (s *DocumentService) resolveCollision(ctx context.Context, principal models.Principal, doc *models.Document, existing *models.Document, mode ConflictMode, replacedPath *string) error {
	switch mode {
	case ConflictRename:
		title, err := s.availableTitle(ctx, doc.FolderID, doc.Title)
		if err != nil {
			return err
		}
		doc.Title = title
		return s.insertDocument(ctx, principal, doc)

	case ConflictReplace:
		if err := s.docs.Replace(ctx, existing.ID, doc.StoragePath, doc.Size); err != nil {
			return err
		}
		*replacedPath = existing.StoragePath
		// The caller gets the surviving row, not the staged one.
		doc.ID = existing.ID
		doc.Title = existing.Title
		doc.UploaderID = existing.UploaderID
		doc.CreatedAt = existing.CreatedAt
		return s.audit.Append(ctx, &models.AuditEvent{
			ActorID:    principal.ID,
			DocumentID: existing.ID,
			Action:     models.ActionReplace,
			TraceToken: existing.Title,
		})

	default:
		return &domain.ConflictError{
			Message:      fmt.Sprintf("document %q already exists here", doc.Title),
			ResourceType: "document",
			ResourceID:   existing.ID,
		}
	}
}

// availableTitle finds the first free " (n)" variant of title in the folder.
func (s *DocumentService) availableTitle(ctx context.Context, folderID int64, title string) (string, error) {
	base, ext := splitTitle(title)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		_, err := s.docs.GetByTitle(ctx, folderID, candidate)
		if errors.Is(err, domain.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// ensureFolderPath walks relPath below baseID, creating missing segments.
// Each created folder snapshots its parent's grants, the same as a
// manual create.
func (s *DocumentService) ensureFolderPath(ctx context.Context, principal models.Principal, baseID int64, relPath string) (int64, error) {
	relPath = path.Clean(strings.Trim(relPath, "/"))
	if relPath == "" || relPath == "." {
		return baseID, nil
	}

	curr := baseID
	for _, segment := range strings.Split(relPath, "/") {
		if segment == ".." {
			return 0, fmt.Errorf("%w: path may not traverse upward", domain.ErrValidation)
		}
		existing, err := s.folders.GetByNameAndParent(ctx, segment, curr)
		if err == nil {
			curr = existing.ID
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}

		folder := &models.Folder{Name: segment, ParentID: curr, CreatorID: principal.ID}
		if err := s.folders.Create(ctx, folder); err != nil {
			return 0, err
		}
		if err := s.propagation.OnFolderCreate(ctx, folder.ID, curr); err != nil {
			return 0, err
		}
		if err := s.audit.Append(ctx, &models.AuditEvent{
			ActorID:    principal.ID,
			Action:     models.ActionCreateFolder,
			TraceToken: segment,
		}); err != nil {
			return 0, err
		}
		curr = folder.ID
	}

	return curr, nil
}

// Rename changes a document's title. The uploader or an administrator
// may rename.
func (s *DocumentService) Rename(ctx context.Context, principal models.Principal, documentID int64, title string) error {
	if err := validateName(title); err != nil {
		return err
	}

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && doc.UploaderID != principal.ID {
		return &domain.PermissionError{Action: "rename", Message: "only the uploader or an administrator may rename"}
	}
	if doc.Title == title {
		return nil
	}
	if existing, err := s.docs.GetByTitle(ctx, doc.FolderID, title); err == nil {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("document %q already exists here", title),
			ResourceType: "document",
			ResourceID:   existing.ID,
		}
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.docs.Rename(ctx, documentID, title); err != nil {
			return err
		}
		return s.audit.Append(ctx, &models.AuditEvent{
			ActorID:    principal.ID,
			DocumentID: documentID,
			Action:     models.ActionRenameFile,
			TraceToken: fmt.Sprintf("%s -> %s", doc.Title, title),
		})
	})
}

// SetGrants replaces a single document's grant set, leaving its folder
// untouched.
func (s *DocumentService) SetGrants(ctx context.Context, principal models.Principal, documentID int64, grants []models.Grant) error {
	if err := requireAdmin(principal, "update file permissions"); err != nil {
		return err
	}

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.propagation.ReplaceDocumentGrants(ctx, documentID, grants); err != nil {
		return err
	}

	return s.audit.Append(ctx, &models.AuditEvent{
		ActorID:    principal.ID,
		DocumentID: doc.ID,
		Action:     models.ActionFilePerm,
		TraceToken: doc.Title,
	})
}

// Delete removes a document, its grant rows and its blob. The uploader
// or an administrator may delete.
func (s *DocumentService) Delete(ctx context.Context, principal models.Principal, documentID int64) error {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && doc.UploaderID != principal.ID {
		return &domain.PermissionError{Action: "delete", Message: "only the uploader or an administrator may delete"}
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.grants.DeleteDocumentGrants(ctx, []int64{documentID}); err != nil {
			return err
		}
		if err := s.docs.Delete(ctx, documentID); err != nil {
			return err
		}
		return s.audit.Append(ctx, &models.AuditEvent{
			ActorID:    principal.ID,
			DocumentID: documentID,
			Action:     models.ActionDeleteFile,
			TraceToken: doc.Title,
		})
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Remove(ctx, doc.StoragePath); err != nil {
		s.logger.Warn("orphaned blob after document delete", "path", doc.StoragePath, "error", err)
	}
	return nil
}

func extensionOf(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	return strings.ToLower(ext)
}

func splitTitle(title string) (base, ext string) {
	ext = path.Ext(title)
	return strings.TrimSuffix(title, ext), ext
}
