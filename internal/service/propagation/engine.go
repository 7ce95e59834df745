// Package propagation applies permission inheritance between folders and
// documents. Creation-time inheritance snapshots the parent's grants;
// replacing a folder's grants rewrites the whole subtree's document
// grants in one transaction. The two paths deliberately behave
// differently and the difference is part of the contract.
package propagation

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// Engine owns grant propagation across the folder tree.
type Engine struct {
	txm     repositories.TransactionManager
	folders repositories.FolderRepository
	docs    repositories.DocumentRepository
	grants  repositories.GrantRepository
	logger  *slog.Logger
}

// NewEngine creates a new propagation engine
func NewEngine(
	txm repositories.TransactionManager,
	folders repositories.FolderRepository,
	docs repositories.DocumentRepository,
	grants repositories.GrantRepository,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		txm:     txm,
		folders: folders,
		docs:    docs,
		grants:  grants,
		logger:  logger,
	}
}

func validateGrants(grants []models.Grant) error {
	seen := make(map[string]bool, len(grants))
	for i, g := range grants {
		err := validation.ValidateStruct(&g,
			validation.Field(&g.SubjectID, validation.Required, validation.Min(int64(1))),
			validation.Field(&g.SubjectType, validation.Required, validation.In(models.SubjectUser, models.SubjectGroup)),
		)
		if err != nil {
			return fmt.Errorf("%w: grant %d: %v", domain.ErrValidation, i, err)
		}
		key := fmt.Sprintf("%s:%d", g.SubjectType, g.SubjectID)
		if seen[key] {
			return fmt.Errorf("%w: duplicate subject %s", domain.ErrValidation, key)
		}
		seen[key] = true
	}
	return nil
}

// OnFolderCreate snapshots the parent folder's grant rows onto a newly
// created folder. Root-level folders start with no grants. The copy is
// verbatim; later edits to the parent do not flow back.
func (e *Engine) OnFolderCreate(ctx context.Context, folderID, parentID int64) error {
	if parentID == models.RootFolderID {
		return nil
	}
	parentGrants, err := e.grants.FolderGrants(ctx, parentID)
	if err != nil {
		return fmt.Errorf("load parent grants: %w", err)
	}
	if len(parentGrants) == 0 {
		return nil
	}
	if err := e.grants.InsertFolderGrants(ctx, folderID, parentGrants); err != nil {
		return fmt.Errorf("copy parent grants: %w", err)
	}
	return nil
}

// OnDocumentCreate copies the containing folder's grants onto a new
// document with insert-if-absent semantics: a subject that already holds
// a row on the document keeps it untouched.
func (e *Engine) OnDocumentCreate(ctx context.Context, documentID, folderID int64) error {
	folderGrants, err := e.grants.FolderGrants(ctx, folderID)
	if err != nil {
		return fmt.Errorf("load folder grants: %w", err)
	}
	if len(folderGrants) == 0 {
		return nil
	}
	if err := e.grants.InsertDocumentGrantsAbsent(ctx, documentID, folderGrants); err != nil {
		return fmt.Errorf("inherit folder grants: %w", err)
	}
	return nil
}

// ReplaceFolderGrants swaps a folder's grant set and cascades the new
// set onto every document in the folder's subtree: their old grant rows
// are deleted, then the new set is written. The whole rewrite runs in
// one transaction holding a row lock on the folder, so concurrent
// replacements over overlapping subtrees serialize and a reader never
// observes a half-propagated state.
func (e *Engine) ReplaceFolderGrants(ctx context.Context, folderID int64, newGrants []models.Grant) error {
	if err := validateGrants(newGrants); err != nil {
		return err
	}

	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.folders.LockForUpdate(ctx, folderID); err != nil {
			return fmt.Errorf("lock folder %d: %w", folderID, err)
		}

		if err := e.grants.DeleteFolderGrants(ctx, folderID); err != nil {
			return fmt.Errorf("clear folder grants: %w", err)
		}
		if len(newGrants) > 0 {
			if err := e.grants.InsertFolderGrants(ctx, folderID, newGrants); err != nil {
				return fmt.Errorf("write folder grants: %w", err)
			}
		}

		subtree, err := e.subtreeFolderIDs(ctx, folderID)
		if err != nil {
			return err
		}

		docIDs, err := e.docs.IDsByFolders(ctx, subtree)
		if err != nil {
			return fmt.Errorf("collect subtree documents: %w", err)
		}
		if len(docIDs) == 0 {
			return nil
		}

		if err := e.grants.DeleteDocumentGrants(ctx, docIDs); err != nil {
			return fmt.Errorf("clear document grants: %w", err)
		}
		if len(newGrants) > 0 {
			if err := e.grants.UpsertDocumentGrants(ctx, docIDs, newGrants); err != nil {
				return fmt.Errorf("cascade document grants: %w", err)
			}
		}

		e.logger.Info("replaced folder grants",
			"folder_id", folderID,
			"grants", len(newGrants),
			"folders_affected", len(subtree),
			"documents_affected", len(docIDs),
		)
		return nil
	})
}

// ReplaceDocumentGrants swaps a single document's grant set without
// touching its folder.
func (e *Engine) ReplaceDocumentGrants(ctx context.Context, documentID int64, newGrants []models.Grant) error {
	if err := validateGrants(newGrants); err != nil {
		return err
	}
	if _, err := e.docs.GetByID(ctx, documentID); err != nil {
		return err
	}
	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return e.grants.ReplaceDocumentGrants(ctx, documentID, newGrants)
	})
}

// subtreeFolderIDs returns the folder plus every descendant, walking a
// children index built from the adjacency map.
func (e *Engine) subtreeFolderIDs(ctx context.Context, folderID int64) ([]int64, error) {
	parents, err := e.folders.ParentIDs(ctx)
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
