// Package memory provides map-backed repository implementations used by
// the service tests and the tracecheck tool. The maps mirror the postgres
// schema closely enough that permission aggregation and propagation
// behave the same way.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

type grantKey struct {
	resourceID  int64
	subjectID   int64
	subjectType string
}

// Store holds all in-memory state. It implements GrantRepository,
// AuditRepository and TransactionManager directly; the folder, document
// and group repositories are exposed through the accessor views because
// their interface method names overlap. A single mutex guards the whole
// store.
type Store struct {
	mu sync.Mutex

	nextID int64

	folders   map[int64]models.Folder
	documents map[int64]models.Document
	groups    map[int64]models.Group
	members   map[int64]map[int64]bool // groupID -> userID set

	folderGrants   map[grantKey]models.Grant
	documentGrants map[grantKey]models.Grant

	events []models.AuditEvent
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nextID:         1,
		folders:        make(map[int64]models.Folder),
		documents:      make(map[int64]models.Document),
		groups:         make(map[int64]models.Group),
		members:        make(map[int64]map[int64]bool),
		folderGrants:   make(map[grantKey]models.Grant),
		documentGrants: make(map[grantKey]models.Grant),
	}
}

// Folders returns the folder repository view.
func (s *Store) Folders() repositories.FolderRepository { return folderView{s} }

// Documents returns the document repository view.
func (s *Store) Documents() repositories.DocumentRepository { return documentView{s} }

// Groups returns the group repository view.
func (s *Store) Groups() repositories.GroupRepository { return groupView{s} }

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// RunInTransaction executes fn directly; the store has no isolation.
func (s *Store) RunInTransaction(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

// ---- FolderRepository ----

type folderView struct{ s *Store }

func (v folderView) Create(ctx context.Context, folder *models.Folder) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.ParentID == folder.ParentID && f.Name == folder.Name {
			return &domain.ConflictError{Message: "folder name already exists", ResourceType: "folder", ResourceID: f.ID}
		}
	}
	folder.ID = s.id()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now()
	}
	s.folders[folder.ID] = *folder
	return nil
}

func (v folderView) GetByID(ctx context.Context, id int64) (*models.Folder, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := f
	return &out, nil
}

func (v folderView) Rename(ctx context.Context, id int64, name string) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[id]
	if !ok {
		return domain.ErrNotFound
	}
	f.Name = name
	s.folders[id] = f
	return nil
}

func (v folderView) Delete(ctx context.Context, id int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.folders, id)
	return nil
}

func (v folderView) ListChildren(ctx context.Context, parentID int64) ([]models.Folder, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Folder
	for _, f := range s.folders {
		if f.ParentID == parentID {
			out = append(out, f)
		}
	}
	sortFolders(out)
	return out, nil
}

func (v folderView) GetByNameAndParent(ctx context.Context, name string, parentID int64) (*models.Folder, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.ParentID == parentID && f.Name == name {
			out := f
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (v folderView) ParentIDs(ctx context.Context) (map[int64]int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int64, len(s.folders))
	for id, f := range s.folders {
		out[id] = f.ParentID
	}
	return out, nil
}

func (v folderView) LockForUpdate(ctx context.Context, id int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[id]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (v folderView) SearchByName(ctx context.Context, query string) ([]models.Folder, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.Folder
	for _, f := range s.folders {
		if strings.Contains(strings.ToLower(f.Name), q) {
			out = append(out, f)
		}
	}
	sortFolders(out)
	return out, nil
}

// ---- DocumentRepository ----

type documentView struct{ s *Store }

func (v documentView) Create(ctx context.Context, doc *models.Document) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = s.id()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	s.documents[doc.ID] = *doc
	return nil
}

func (v documentView) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := d
	return &out, nil
}

func (v documentView) Rename(ctx context.Context, id int64, title string) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Title = title
	s.documents[id] = d
	return nil
}

func (v documentView) Delete(ctx context.Context, id int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

func (v documentView) Replace(ctx context.Context, id int64, storagePath string, size int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.StoragePath = storagePath
	d.Size = size
	s.documents[id] = d
	return nil
}

func (v documentView) GetByTitle(ctx context.Context, folderID int64, title string) (*models.Document, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.documents {
		if d.FolderID == folderID && d.Title == title {
			out := d
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (v documentView) ListByFolder(ctx context.Context, folderID int64) ([]models.Document, error) {
	return v.ListByFolders(ctx, []int64{folderID})
}

func (v documentView) IDsByFolders(ctx context.Context, folderIDs []int64) ([]int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	want := idSet(folderIDs)
	ids := make(map[int64]bool)
	for id, d := range s.documents {
		if want[d.FolderID] {
			ids[id] = true
		}
	}
	return sortedIDs(ids), nil
}

func (v documentView) ListByFolders(ctx context.Context, folderIDs []int64) ([]models.Document, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	want := idSet(folderIDs)
	var out []models.Document
	for _, d := range s.documents {
		if want[d.FolderID] {
			out = append(out, d)
		}
	}
	sortDocuments(out)
	return out, nil
}

func (v documentView) ListWithAccess(ctx context.Context, folderID, userID int64, groupIDs []int64) ([]models.DocumentAccess, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := idSet(groupIDs)
	var out []models.DocumentAccess
	for _, d := range s.documents {
		if d.FolderID != folderID {
			continue
		}
		view, download := aggregateFlags(s.documentGrants, d.ID, userID, groups)
		if !view && d.UploaderID != userID {
			continue
		}
		out = append(out, models.DocumentAccess{Document: d, CanView: view, CanDownload: download})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v documentView) SearchByTitle(ctx context.Context, query string) ([]models.Document, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.Document
	for _, d := range s.documents {
		if strings.Contains(strings.ToLower(d.Title), q) {
			out = append(out, d)
		}
	}
	sortDocuments(out)
	return out, nil
}

func (v documentView) SearchByTitleVisible(ctx context.Context, query string, userID int64, groupIDs []int64) ([]models.Document, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	groups := idSet(groupIDs)
	var out []models.Document
	for _, d := range s.documents {
		if !strings.Contains(strings.ToLower(d.Title), q) {
			continue
		}
		view, _ := aggregateFlags(s.documentGrants, d.ID, userID, groups)
		if view || d.UploaderID == userID {
			out = append(out, d)
		}
	}
	sortDocuments(out)
	return out, nil
}

// ---- GroupRepository ----

type groupView struct{ s *Store }

func (v groupView) Create(ctx context.Context, group *models.Group) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Name == group.Name {
			return &domain.ConflictError{Message: "group name already exists", ResourceType: "group", ResourceID: g.ID}
		}
	}
	group.ID = s.id()
	s.groups[group.ID] = *group
	return nil
}

func (v groupView) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := g
	return &out, nil
}

func (v groupView) Rename(ctx context.Context, id int64, name string) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.Name = name
	s.groups[id] = g
	return nil
}

func (v groupView) Delete(ctx context.Context, id int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

func (v groupView) List(ctx context.Context) ([]models.Group, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v groupView) GetByName(ctx context.Context, name string) (*models.Group, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Name == name {
			out := g
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (v groupView) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[int64]bool)
	for groupID, users := range s.members {
		if users[userID] {
			ids[groupID] = true
		}
	}
	return sortedIDs(ids), nil
}

func (v groupView) ReplaceUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, users := range s.members {
		delete(users, userID)
	}
	for _, id := range groupIDs {
		if s.members[id] == nil {
			s.members[id] = make(map[int64]bool)
		}
		s.members[id][userID] = true
	}
	return nil
}

func (v groupView) DeleteMemberships(ctx context.Context, groupID int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, groupID)
	return nil
}

// ---- GrantRepository ----

func (s *Store) FolderGrants(ctx context.Context, folderID int64) ([]models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collectGrants(s.folderGrants, folderID), nil
}

func (s *Store) InsertFolderGrants(ctx context.Context, folderID int64, grants []models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grants {
		s.folderGrants[grantKey{folderID, g.SubjectID, g.SubjectType}] = g
	}
	return nil
}

func (s *Store) DeleteFolderGrants(ctx context.Context, folderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.folderGrants {
		if k.resourceID == folderID {
			delete(s.folderGrants, k)
		}
	}
	return nil
}

func (s *Store) DocumentGrants(ctx context.Context, documentID int64) ([]models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collectGrants(s.documentGrants, documentID), nil
}

func (s *Store) InsertDocumentGrantsAbsent(ctx context.Context, documentID int64, grants []models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grants {
		k := grantKey{documentID, g.SubjectID, g.SubjectType}
		if _, exists := s.documentGrants[k]; !exists {
			s.documentGrants[k] = g
		}
	}
	return nil
}

func (s *Store) UpsertDocumentGrants(ctx context.Context, documentIDs []int64, grants []models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range documentIDs {
		for _, g := range grants {
			s.documentGrants[grantKey{id, g.SubjectID, g.SubjectType}] = g
		}
	}
	return nil
}

func (s *Store) DeleteDocumentGrants(ctx context.Context, documentIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := idSet(documentIDs)
	for k := range s.documentGrants {
		if want[k.resourceID] {
			delete(s.documentGrants, k)
		}
	}
	return nil
}

func (s *Store) ReplaceDocumentGrants(ctx context.Context, documentID int64, grants []models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.documentGrants {
		if k.resourceID == documentID {
			delete(s.documentGrants, k)
		}
	}
	for _, g := range grants {
		s.documentGrants[grantKey{documentID, g.SubjectID, g.SubjectType}] = g
	}
	return nil
}

func (s *Store) FolderFlags(ctx context.Context, folderID, userID int64, groupIDs []int64) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, download := aggregateFlags(s.folderGrants, folderID, userID, idSet(groupIDs))
	return view, download, nil
}

func (s *Store) DocumentFlags(ctx context.Context, documentID, userID int64, groupIDs []int64) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, download := aggregateFlags(s.documentGrants, documentID, userID, idSet(groupIDs))
	return view, download, nil
}

func (s *Store) ViewableDocumentFolderIDs(ctx context.Context, userID int64, groupIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := idSet(groupIDs)
	folders := make(map[int64]bool)
	for _, d := range s.documents {
		view, _ := aggregateFlags(s.documentGrants, d.ID, userID, groups)
		if view || d.UploaderID == userID {
			folders[d.FolderID] = true
		}
	}
	return sortedIDs(folders), nil
}

func (s *Store) ViewableFolderIDs(ctx context.Context, userID int64, groupIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := idSet(groupIDs)
	folders := make(map[int64]bool)
	for id, f := range s.folders {
		view, _ := aggregateFlags(s.folderGrants, id, userID, groups)
		if view || f.CreatorID == userID {
			folders[id] = true
		}
	}
	return sortedIDs(folders), nil
}

func (s *Store) DeleteBySubject(ctx context.Context, subjectType string, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.folderGrants {
		if k.subjectID == subjectID && k.subjectType == subjectType {
			delete(s.folderGrants, k)
		}
	}
	for k := range s.documentGrants {
		if k.subjectID == subjectID && k.subjectType == subjectType {
			delete(s.documentGrants, k)
		}
	}
	return nil
}

// ---- AuditRepository ----

func (s *Store) Append(ctx context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.id()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Events returns a copy of all appended audit events in append order.
func (s *Store) Events() []models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ---- helpers ----

func aggregateFlags(table map[grantKey]models.Grant, resourceID, userID int64, groups map[int64]bool) (bool, bool) {
	var view, download bool
	for k, g := range table {
		if k.resourceID != resourceID {
			continue
		}
		match := (k.subjectType == models.SubjectUser && k.subjectID == userID) ||
			(k.subjectType == models.SubjectGroup && groups[k.subjectID])
		if !match {
			continue
		}
		view = view || g.CanView
		download = download || g.CanDownload
	}
	return view, download
}

func collectGrants(table map[grantKey]models.Grant, resourceID int64) []models.Grant {
	var out []models.Grant
	for k, g := range table {
		if k.resourceID == resourceID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectType != out[j].SubjectType {
			return out[i].SubjectType < out[j].SubjectType
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out
}

func idSet(ids []int64) map[int64]bool {
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func sortedIDs(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortFolders(fs []models.Folder) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].ID < fs[j].ID })
}

func sortDocuments(ds []models.Document) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
}
