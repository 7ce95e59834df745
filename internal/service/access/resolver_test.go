package access

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"docvault/internal/domain/models"
	"docvault/internal/repository/memory"
)

func newTestResolver(store *memory.Store) *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(store.Folders(), store.Documents(), store, store.Groups(), logger)
}

func mustCreateFolder(t *testing.T, store *memory.Store, name string, parentID, creatorID int64) int64 {
	t.Helper()
	f := &models.Folder{Name: name, ParentID: parentID, CreatorID: creatorID}
	if err := store.Folders().Create(context.Background(), f); err != nil {
		t.Fatalf("create folder %s: %v", name, err)
	}
	return f.ID
}

func mustCreateDocument(t *testing.T, store *memory.Store, title string, folderID, uploaderID int64) int64 {
	t.Helper()
	d := &models.Document{Title: title, FolderID: folderID, UploaderID: uploaderID, StoragePath: title, ContentType: "pdf"}
	if err := store.Documents().Create(context.Background(), d); err != nil {
		t.Fatalf("create document %s: %v", title, err)
	}
	return d.ID
}

func TestCanViewAdminBypassesGrants(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	folderID := mustCreateFolder(t, store, "legal", models.RootFolderID, 1)

	admin := models.Principal{ID: 99, Role: models.RoleAdmin}
	ok, err := r.CanView(ctx, admin, FolderResource(folderID))
	if err != nil {
		t.Fatalf("CanView: %v", err)
	}
	if !ok {
		t.Error("admin should view any folder")
	}
	ok, err = r.CanDownload(ctx, admin, FolderResource(folderID))
	if err != nil {
		t.Fatalf("CanDownload: %v", err)
	}
	if !ok {
		t.Error("admin should download any folder")
	}
}

func TestCanViewOwnerImplicit(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	folderID := mustCreateFolder(t, store, "legal", models.RootFolderID, 7)
	docID := mustCreateDocument(t, store, "nda.pdf", folderID, 7)

	uploader := models.Principal{ID: 7}
	for _, res := range []Resource{FolderResource(folderID), DocumentResource(docID)} {
		ok, err := r.CanView(ctx, uploader, res)
		if err != nil {
			t.Fatalf("CanView %v: %v", res, err)
		}
		if !ok {
			t.Errorf("owner should view %v without a grant row", res)
		}
		ok, err = r.CanDownload(ctx, uploader, res)
		if err != nil {
			t.Fatalf("CanDownload %v: %v", res, err)
		}
		if !ok {
			t.Errorf("owner should download %v without a grant row", res)
		}
	}
}

func TestViewAndDownloadAreIndependent(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	folderID := mustCreateFolder(t, store, "hr", models.RootFolderID, 1)
	docID := mustCreateDocument(t, store, "salary.pdf", folderID, 1)

	err := store.InsertDocumentGrantsAbsent(ctx, docID, []models.Grant{
		{SubjectID: 5, SubjectType: models.SubjectUser, CanView: true, CanDownload: false},
	})
	if err != nil {
		t.Fatalf("insert grant: %v", err)
	}

	viewer := models.Principal{ID: 5}
	ok, err := r.CanView(ctx, viewer, DocumentResource(docID))
	if err != nil {
		t.Fatalf("CanView: %v", err)
	}
	if !ok {
		t.Error("view grant should allow viewing")
	}
	ok, err = r.CanDownload(ctx, viewer, DocumentResource(docID))
	if err != nil {
		t.Fatalf("CanDownload: %v", err)
	}
	if ok {
		t.Error("view grant must not imply download")
	}
}

func TestGroupGrantsCombineWithOr(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	folderID := mustCreateFolder(t, store, "ops", models.RootFolderID, 1)
	docID := mustCreateDocument(t, store, "runbook.pdf", folderID, 1)

	eng := &models.Group{Name: "Engineering"}
	if err := store.Groups().Create(ctx, eng); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := store.Groups().ReplaceUserGroups(ctx, 5, []int64{eng.ID}); err != nil {
		t.Fatalf("set memberships: %v", err)
	}

	// Group carries view only, the user row carries download only. The
	// effective flags are the OR of the two rows.
	err := store.InsertDocumentGrantsAbsent(ctx, docID, []models.Grant{
		{SubjectID: eng.ID, SubjectType: models.SubjectGroup, CanView: true, CanDownload: false},
		{SubjectID: 5, SubjectType: models.SubjectUser, CanView: false, CanDownload: true},
	})
	if err != nil {
		t.Fatalf("insert grants: %v", err)
	}

	member := models.Principal{ID: 5}
	ok, err := r.CanView(ctx, member, DocumentResource(docID))
	if err != nil {
		t.Fatalf("CanView: %v", err)
	}
	if !ok {
		t.Error("group view grant should apply to member")
	}
	ok, err = r.CanDownload(ctx, member, DocumentResource(docID))
	if err != nil {
		t.Fatalf("CanDownload: %v", err)
	}
	if !ok {
		t.Error("user download grant should combine with group view grant")
	}
}

func TestVisibleFolderIDsClosesOverAncestors(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	// root -> a -> b -> c, document grant deep inside c only.
	a := mustCreateFolder(t, store, "a", models.RootFolderID, 1)
	b := mustCreateFolder(t, store, "b", a, 1)
	c := mustCreateFolder(t, store, "c", b, 1)
	sibling := mustCreateFolder(t, store, "sibling", a, 1)
	docID := mustCreateDocument(t, store, "deep.pdf", c, 1)

	err := store.InsertDocumentGrantsAbsent(ctx, docID, []models.Grant{
		{SubjectID: 5, SubjectType: models.SubjectUser, CanView: true},
	})
	if err != nil {
		t.Fatalf("insert grant: %v", err)
	}

	got, err := r.VisibleFolderIDs(ctx, models.Principal{ID: 5})
	if err != nil {
		t.Fatalf("VisibleFolderIDs: %v", err)
	}

	want := map[int64]bool{a: true, b: true, c: true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want folders %v", got, []int64{a, b, c})
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("folder %d should not be visible", id)
		}
		if id == sibling {
			t.Error("sibling without content must stay hidden")
		}
	}
}

func TestVisibleFolderIDsEmptyWithoutGrants(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	mustCreateFolder(t, store, "a", models.RootFolderID, 1)

	got, err := r.VisibleFolderIDs(ctx, models.Principal{ID: 5})
	if err != nil {
		t.Fatalf("VisibleFolderIDs: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no visible folders, got %v", got)
	}
}

func TestVisibleFolderIDsDanglingParentTerminates(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	// A folder whose parent row is missing must terminate the upward
	// walk instead of erroring or hanging.
	orphan := mustCreateFolder(t, store, "orphan", 424242, 5)

	r := newTestResolver(store)
	got, err := r.VisibleFolderIDs(ctx, models.Principal{ID: 5})
	if err != nil {
		t.Fatalf("VisibleFolderIDs: %v", err)
	}
	if len(got) != 1 || got[0] != orphan {
		t.Errorf("expected only the orphan folder, got %v", got)
	}
}

func TestVisibleDocumentsUploaderFlagsForcedOn(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	folderID := mustCreateFolder(t, store, "docs", models.RootFolderID, 1)
	ownID := mustCreateDocument(t, store, "mine.pdf", folderID, 5)
	otherID := mustCreateDocument(t, store, "other.pdf", folderID, 1)

	got, err := r.VisibleDocuments(ctx, models.Principal{ID: 5}, folderID)
	if err != nil {
		t.Fatalf("VisibleDocuments: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the uploaded document, got %d rows", len(got))
	}
	if got[0].ID != ownID {
		t.Fatalf("expected document %d, got %d", ownID, got[0].ID)
	}
	if !got[0].CanView || !got[0].CanDownload {
		t.Error("uploader should see both flags set")
	}
	for _, d := range got {
		if d.ID == otherID {
			t.Error("ungranted document should be hidden")
		}
	}
}

func TestVisibleDocumentsAdminSeesAll(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	folderID := mustCreateFolder(t, store, "docs", models.RootFolderID, 1)
	mustCreateDocument(t, store, "one.pdf", folderID, 1)
	mustCreateDocument(t, store, "two.pdf", folderID, 2)

	got, err := r.VisibleDocuments(ctx, models.Principal{ID: 9, Role: models.RoleAdmin}, folderID)
	if err != nil {
		t.Fatalf("VisibleDocuments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("admin should see both documents, got %d", len(got))
	}
	for _, d := range got {
		if !d.CanView || !d.CanDownload {
			t.Errorf("document %d: admin flags should both be set", d.ID)
		}
	}
}

func TestSearchVisibleFiltersFolders(t *testing.T) {
	store := memory.NewStore()
	r := newTestResolver(store)
	ctx := context.Background()

	visible := mustCreateFolder(t, store, "contracts-2026", models.RootFolderID, 1)
	mustCreateFolder(t, store, "contracts-hidden", models.RootFolderID, 1)
	docID := mustCreateDocument(t, store, "contract-a.pdf", visible, 1)

	err := store.InsertDocumentGrantsAbsent(ctx, docID, []models.Grant{
		{SubjectID: 5, SubjectType: models.SubjectUser, CanView: true},
	})
	if err != nil {
		t.Fatalf("insert grant: %v", err)
	}

	folders, docs, err := r.SearchVisible(ctx, models.Principal{ID: 5}, "contract")
	if err != nil {
		t.Fatalf("SearchVisible: %v", err)
	}
	if len(folders) != 1 || folders[0].ID != visible {
		t.Errorf("expected only the visible folder, got %v", folders)
	}
	if len(docs) != 1 || docs[0].ID != docID {
		t.Errorf("expected only the granted document, got %v", docs)
	}
}
