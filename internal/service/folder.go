// Package service holds the administrative surface over the repository
// layer: folder, document and group management plus the audit read side.
package service

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
	"docvault/internal/service/access"
	"docvault/internal/service/propagation"
	"docvault/internal/storage"
)

func requireAdmin(p models.Principal, action string) error {
	if p.IsAdmin() {
		return nil
	}
	return &domain.PermissionError{Action: action, Message: "administrator role required"}
}

func validateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 255),
	)
	if err != nil {
		return fmt.Errorf("%w: name: %v", domain.ErrValidation, err)
	}
	return nil
}

// FolderService manages the folder tree.
type FolderService struct {
	txm         repositories.TransactionManager
	folders     repositories.FolderRepository
	docs        repositories.DocumentRepository
	grants      repositories.GrantRepository
	propagation *propagation.Engine
	resolver    *access.Resolver
	blobs       storage.BlobStore
	audit       repositories.AuditSink
	logger      *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	txm repositories.TransactionManager,
	folders repositories.FolderRepository,
	docs repositories.DocumentRepository,
	grants repositories.GrantRepository,
	prop *propagation.Engine,
	resolver *access.Resolver,
	blobs storage.BlobStore,
	audit repositories.AuditSink,
	logger *slog.Logger,
) *FolderService {
	return &FolderService{
		txm:         txm,
		folders:     folders,
		docs:        docs,
		grants:      grants,
		propagation: prop,
		resolver:    resolver,
		blobs:       blobs,
		audit:       audit,
		logger:      logger,
	}
}

// Create makes a folder under parentID and snapshots the parent's grants
// onto it.
func (s *FolderService) Create(ctx context.Context, principal models.Principal, name string, parentID int64) (*models.Folder, error) {
	if err := requireAdmin(principal, "create folder"); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if parentID != models.RootFolderID {
		if _, err := s.folders.GetByID(ctx, parentID); err != nil {
			return nil, fmt.Errorf("parent folder: %w", err)
		}
	}

	folder := &models.Folder{Name: name, ParentID: parentID, CreatorID: principal.ID}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.folders.Create(ctx, folder); err != nil {
			return err
		}
		if err := s.propagation.OnFolderCreate(ctx, folder.ID, parentID); err != nil {
			return err
		}
		return s.audit.Append(ctx, &models.AuditEvent{
			ActorID:    principal.ID,
			Action:     models.ActionCreateFolder,
			TraceToken: name,
		})
	})
	if err != nil {
		return nil, err
	}

	return folder, nil
}

// Rename changes a folder's name, refusing a sibling collision.
func (s *FolderService) Rename(ctx context.Context, principal models.Principal, folderID int64, name string) error {
	if err := requireAdmin(principal, "rename folder"); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	folder, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.Name == name {
		return nil
	}
	if existing, err := s.folders.GetByNameAndParent(ctx, name, folder.ParentID); err == nil {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("folder %q already exists here", name),
			ResourceType: "folder",
			ResourceID:   existing.ID,
		}
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.folders.Rename(ctx, folderID, name); err != nil {
			return err
		}
		return s.audit.Append(ctx, &models.AuditEvent{
			ActorID:    principal.ID,
			Action:     models.ActionRenameFolder,
			TraceToken: fmt.Sprintf("%s -> %s", folder.Name, name),
		})
	})
}

// SetGrants replaces the folder's grant set and cascades it onto every
// document in the subtree.
func (s *FolderService) SetGrants(ctx context.Context, principal models.Principal, folderID int64, grants []models.Grant) error {
	if err := requireAdmin(principal, "update folder permissions"); err != nil {
		return err
	}

	folder, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return err
	}

	if err := s.propagation.ReplaceFolderGrants(ctx, folderID, grants); err != nil {
		return err
	}

	return s.audit.Append(ctx, &models.AuditEvent{
		ActorID:    principal.ID,
		Action:     models.ActionFolderPerm,
		TraceToken: folder.Name,
	})
}

// Delete removes a folder and everything under it: subfolders, documents,
// every grant row touching them, and the backing blobs. The database work
// is one transaction; blob removal runs after commit and only logs
// failures, since the rows are already gone.
func (s *FolderService) Delete(ctx context.Context, principal models.Principal, folderID int64) error {
	if err := requireAdmin(principal, "delete folder"); err != nil {
		return err
	}

	folder, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return err
	}

	var blobPaths []string
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.folders.LockForUpdate(ctx, folderID); err != nil {
			return err
		}

		subtree, err := subtreeFolderIDs(ctx, s.folders, folderID)
		if err != nil {
			return err
		}

		docs, err := s.docs.ListByFolders(ctx, subtree)
		if err != nil {
			return err
		}

		docIDs := make([]int64, 0, len(docs))
		for _, d := range docs {
			docIDs = append(docIDs, d.ID)
			blobPaths = append(blobPaths, d.StoragePath)
		}

		if len(docIDs) > 0 {
			if err := s.grants.DeleteDocumentGrants(ctx, docIDs); err != nil {
				return err
			}
			for _, id := range docIDs {
				if err := s.docs.Delete(ctx, id); err != nil {
					return err
				}
			}
		}

		// Children before parents so row deletion never orphans a child.
		for i := len(subtree) - 1; i >= 0; i-- {
			if err := s.grants.DeleteFolderGrants(ctx, subtree[i]); err != nil {
				return err
			}
			if err := s.folders.Delete(ctx, subtree[i]); err != nil {
				return err
			}
		}

		return s.audit.Append(ctx, &models.AuditEvent{
			ActorID:    principal.ID,
			Action:     models.ActionDeleteFolder,
			TraceToken: folder.Name,
		})
	})
	if err != nil {
		return err
	}

	for _, path := range blobPaths {
		if err := s.blobs.Remove(ctx, path); err != nil {
			s.logger.Warn("orphaned blob after folder delete", "path", path, "error", err)
		}
	}

	return nil
}

// ListChildren returns the folders and documents directly under parentID
// that the principal may see.
func (s *FolderService) ListChildren(ctx context.Context, principal models.Principal, parentID int64) ([]models.Folder, []models.DocumentAccess, error) {
	folders, err := s.resolver.VisibleChildFolders(ctx, principal, parentID)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.resolver.VisibleDocuments(ctx, principal, parentID)
	if err != nil {
		return nil, nil, err
	}
	return folders, docs, nil
}

// subtreeFolderIDs collects the folder and all descendants in BFS order,
// parents before children.
func subtreeFolderIDs(ctx context.Context, folders repositories.FolderRepository, folderID int64) ([]int64, error) {
	parents, err := folders.ParentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load folder tree: %w", err)
	}

	children := make(map[int64][]int64, len(parents))
	for id, parent := range parents {
		children[parent] = append(children[parent], id)
	}

	seen := map[int64]bool{folderID: true}
	out := []int64{folderID}
	queue := []int64{folderID}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, child := range children[curr] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}
