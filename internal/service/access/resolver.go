// Package access computes which folders and documents a principal may
// see or download. Every listing and delivery decision flows through the
// Resolver; grants only ever add permission (OR semantics, no deny rows).
package access

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// ResourceKind discriminates grant-bearing resources.
type ResourceKind string

const (
	KindFolder   ResourceKind = "folder"
	KindDocument ResourceKind = "document"
)

// Resource references a folder or document by id.
type Resource struct {
	Kind ResourceKind
	ID   int64
}

// FolderResource references a folder.
func FolderResource(id int64) Resource { return Resource{Kind: KindFolder, ID: id} }

// DocumentResource references a document.
func DocumentResource(id int64) Resource { return Resource{Kind: KindDocument, ID: id} }

type flag int

const (
	flagView flag = iota
	flagDownload
)

// Resolver answers visibility and download questions for a principal.
type Resolver struct {
	folders repositories.FolderRepository
	docs    repositories.DocumentRepository
	grants  repositories.GrantRepository
	groups  repositories.GroupRepository
	logger  *slog.Logger
}

// NewResolver creates a new resolver
func NewResolver(
	folders repositories.FolderRepository,
	docs repositories.DocumentRepository,
	grants repositories.GrantRepository,
	groups repositories.GroupRepository,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		folders: folders,
		docs:    docs,
		grants:  grants,
		groups:  groups,
		logger:  logger,
	}
}

// CanView reports whether the principal may view the resource.
func (r *Resolver) CanView(ctx context.Context, p models.Principal, res Resource) (bool, error) {
	return r.allowed(ctx, p, res, flagView)
}

// CanDownload reports whether the principal may download the resource.
// Download does not imply view or vice versa.
func (r *Resolver) CanDownload(ctx context.Context, p models.Principal, res Resource) (bool, error) {
	return r.allowed(ctx, p, res, flagDownload)
}

func (r *Resolver) allowed(ctx context.Context, p models.Principal, res Resource, f flag) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}

	var ownerID int64
	switch res.Kind {
	case KindFolder:
		folder, err := r.folders.GetByID(ctx, res.ID)
		if err != nil {
			return false, err
		}
		ownerID = folder.CreatorID
	case KindDocument:
		doc, err := r.docs.GetByID(ctx, res.ID)
		if err != nil {
			return false, err
		}
		ownerID = doc.UploaderID
	default:
		return false, fmt.Errorf("unknown resource kind %q", res.Kind)
	}

	// The owner implicitly holds view and download regardless of grants.
	if ownerID == p.ID {
		return true, nil
	}

	groupIDs, err := r.groups.GroupIDsForUser(ctx, p.ID)
	if err != nil {
		return false, err
	}

	var canView, canDownload bool
	switch res.Kind {
	case KindFolder:
		canView, canDownload, err = r.grants.FolderFlags(ctx, res.ID, p.ID, groupIDs)
	case KindDocument:
		canView, canDownload, err = r.grants.DocumentFlags(ctx, res.ID, p.ID, groupIDs)
	}
	if err != nil {
		return false, err
	}

	if f == flagDownload {
		return canDownload, nil
	}
	return canView, nil
}

// VisibleFolderIDs computes the visibility closure: folders containing a
// viewable document or carrying a view grant seed the set, then every
// ancestor up to the root is marked visible so the principal can always
// navigate down to content it may see. The walk runs over the adjacency
// map with a revisit guard, so a corrupt parent cycle cannot hang it.
func (r *Resolver) VisibleFolderIDs(ctx context.Context, p models.Principal) ([]int64, error) {
	parents, err := r.folders.ParentIDs(ctx)
	if err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		ids := make([]int64, 0, len(parents))
		for id := range parents {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil
	}

	groupIDs, err := r.groups.GroupIDsForUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	seeds := make(map[int64]bool)

	docFolders, err := r.grants.ViewableDocumentFolderIDs(ctx, p.ID, groupIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range docFolders {
		seeds[id] = true
	}

	grantedFolders, err := r.grants.ViewableFolderIDs(ctx, p.ID, groupIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range grantedFolders {
		seeds[id] = true
	}

	if len(seeds) == 0 {
		return nil, nil
	}

	visible := make(map[int64]bool)
	for seed := range seeds {
		curr := seed
		for curr != models.RootFolderID {
			parent, ok := parents[curr]
			if !ok {
				break // dangling reference, stop the walk
			}
			if visible[curr] {
				break // already walked from here (or a cycle)
			}
			visible[curr] = true
			curr = parent
		}
	}

	ids := make([]int64, 0, len(visible))
	for id := range visible {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// VisibleDocuments lists a folder's documents with the principal's
// effective flags. Administrators see everything with both flags set;
// the uploader's implicit rights are applied on top of the aggregation.
func (r *Resolver) VisibleDocuments(ctx context.Context, p models.Principal, folderID int64) ([]models.DocumentAccess, error) {
	if p.IsAdmin() {
		docs, err := r.docs.ListByFolder(ctx, folderID)
		if err != nil {
			return nil, err
		}
		out := make([]models.DocumentAccess, 0, len(docs))
		for _, d := range docs {
			out = append(out, models.DocumentAccess{Document: d, CanView: true, CanDownload: true})
		}
		return out, nil
	}

	groupIDs, err := r.groups.GroupIDsForUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	docs, err := r.docs.ListWithAccess(ctx, folderID, p.ID, groupIDs)
	if err != nil {
		return nil, err
	}

	for i := range docs {
		if docs[i].UploaderID == p.ID {
			docs[i].CanView = true
			docs[i].CanDownload = true
		}
	}

	return docs, nil
}

// VisibleChildFolders lists a folder's immediate children, filtered by
// the visibility closure for non-administrators.
func (r *Resolver) VisibleChildFolders(ctx context.Context, p models.Principal, parentID int64) ([]models.Folder, error) {
	children, err := r.folders.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		return children, nil
	}

	visibleIDs, err := r.VisibleFolderIDs(ctx, p)
	if err != nil {
		return nil, err
	}

	visible := make(map[int64]bool, len(visibleIDs))
	for _, id := range visibleIDs {
		visible[id] = true
	}

	var out []models.Folder
	for _, f := range children {
		if visible[f.ID] {
			out = append(out, f)
		}
	}

	return out, nil
}

// SearchVisible finds folders and documents by name, restricted to what
// the principal may see.
func (r *Resolver) SearchVisible(ctx context.Context, p models.Principal, query string) ([]models.Folder, []models.Document, error) {
	if p.IsAdmin() {
		folders, err := r.folders.SearchByName(ctx, query)
		if err != nil {
			return nil, nil, err
		}
		docs, err := r.docs.SearchByTitle(ctx, query)
		if err != nil {
			return nil, nil, err
		}
		return folders, docs, nil
	}

	groupIDs, err := r.groups.GroupIDsForUser(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}

	docs, err := r.docs.SearchByTitleVisible(ctx, query, p.ID, groupIDs)
	if err != nil {
		return nil, nil, err
	}

	visibleIDs, err := r.VisibleFolderIDs(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	visible := make(map[int64]bool, len(visibleIDs))
	for _, id := range visibleIDs {
		visible[id] = true
	}

	matches, err := r.folders.SearchByName(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	var folders []models.Folder
	for _, f := range matches {
		if visible[f.ID] {
			folders = append(folders, f)
		}
	}

	return folders, docs, nil
}
