package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/repository/memory"
	"docvault/internal/service/access"
	"docvault/internal/storage"
	"docvault/internal/watermark"
)

type fixture struct {
	store    *memory.Store
	blobs    *storage.FilesystemStore
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	blobs, err := storage.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := access.NewResolver(store.Folders(), store.Documents(), store, store.Groups(), logger)
	engine := watermark.NewEngine(watermark.DefaultStyle(), nil, logger)
	return &fixture{
		store:    store,
		blobs:    blobs,
		pipeline: NewPipeline(resolver, store.Documents(), blobs, engine, store, logger),
	}
}

// seedDocument stores content and creates the document row. The content
// deliberately fails office text extraction when it is not a real
// archive, which still yields a valid rendition carrying the error line.
func (f *fixture) seedDocument(t *testing.T, title, contentType string, content []byte, uploaderID int64) int64 {
	t.Helper()
	ctx := context.Background()
	folder := &models.Folder{Name: "docs", ParentID: models.RootFolderID, CreatorID: uploaderID}
	if err := f.store.Folders().Create(ctx, folder); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	path := fmt.Sprintf("%s.blob", title)
	if _, err := f.blobs.Save(ctx, path, bytes.NewReader(content)); err != nil {
		t.Fatalf("save blob: %v", err)
	}
	doc := &models.Document{
		Title:       title,
		StoragePath: path,
		ContentType: contentType,
		Size:        int64(len(content)),
		UploaderID:  uploaderID,
		FolderID:    folder.ID,
	}
	if err := f.store.Documents().Create(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc.ID
}

func TestDeliverMissingDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Deliver(context.Background(), models.Principal{ID: 5}, 999, ModePreview)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestDeliverMissingBackingBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docID := f.seedDocument(t, "report.pdf", "pdf", []byte("bytes"), 7)

	doc, err := f.store.Documents().GetByID(ctx, docID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := f.blobs.Remove(ctx, doc.StoragePath); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	_, err = f.pipeline.Deliver(ctx, models.Principal{ID: 7}, docID, ModePreview)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing blob should read as not-found, got %v", err)
	}

	// Existence is decided before permission, so a stranger sees the
	// same not-found instead of a denial.
	_, err = f.pipeline.Deliver(ctx, models.Principal{ID: 99}, docID, ModePreview)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing blob for ungranted user should read as not-found, got %v", err)
	}
}

func TestDeliverDeniedPreviewAndDownloadDifferently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docID := f.seedDocument(t, "report.docx", "docx", []byte("not really a docx"), 1)

	stranger := models.Principal{ID: 5, DisplayName: "Eve"}

	_, err := f.pipeline.Deliver(ctx, stranger, docID, ModePreview)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denial, got %v", err)
	}
	var perr *domain.PermissionError
	if !errors.As(err, &perr) || perr.Action != "preview" {
		t.Errorf("expected preview denial detail, got %v", err)
	}

	_, err = f.pipeline.Deliver(ctx, stranger, docID, ModeDownload)
	if !errors.As(err, &perr) || perr.Action != "download" {
		t.Errorf("expected download denial detail, got %v", err)
	}

	// A denied request must not leave an audit row.
	if got := f.store.Events(); len(got) != 0 {
		t.Errorf("denied delivery should not be audited, got %v", got)
	}
}

func TestDeliverViewDoesNotAllowDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docID := f.seedDocument(t, "report.docx", "docx", []byte("payload"), 1)

	if err := f.store.InsertDocumentGrantsAbsent(ctx, docID, []models.Grant{
		{SubjectID: 5, SubjectType: models.SubjectUser, CanView: true},
	}); err != nil {
		t.Fatalf("insert grant: %v", err)
	}

	viewer := models.Principal{ID: 5, DisplayName: "Sam", Contact: "sam@example.com"}
	if _, err := f.pipeline.Deliver(ctx, viewer, docID, ModePreview); err != nil {
		t.Fatalf("preview should succeed: %v", err)
	}
	if _, err := f.pipeline.Deliver(ctx, viewer, docID, ModeDownload); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("download should be denied, got %v", err)
	}
}

func TestDeliverSecuredArtifact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("office payload")
	docID := f.seedDocument(t, "contract.docx", "docx", content, 7)

	uploader := models.Principal{ID: 7, DisplayName: "Ana", Contact: "ana@example.com"}
	art, err := f.pipeline.Deliver(ctx, uploader, docID, ModeDownload)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if art.Filename != "SECURED_contract.pdf" {
		t.Errorf("filename = %q, want SECURED_contract.pdf", art.Filename)
	}
	if art.ContentType != "pdf" {
		t.Errorf("content type = %q, want pdf", art.ContentType)
	}
	if !bytes.HasPrefix(art.Content, []byte("%PDF-")) {
		t.Error("artifact is not a PDF")
	}
	if !strings.HasPrefix(art.TraceToken, "TRACE_7_") {
		t.Errorf("trace token = %q", art.TraceToken)
	}

	// The token round-trips through the artifact properties.
	props, err := watermark.ReadProperties(art.Content)
	if err != nil {
		t.Fatalf("ReadProperties: %v", err)
	}
	if props[watermark.PropTraceID] != art.TraceToken {
		t.Errorf("embedded token %q != returned token %q", props[watermark.PropTraceID], art.TraceToken)
	}
	if props[watermark.PropUser] != "7" {
		t.Errorf("embedded user = %q", props[watermark.PropUser])
	}
	if props[watermark.PropUserInfo] != "Ana_ana@example.com" {
		t.Errorf("embedded user info = %q", props[watermark.PropUserInfo])
	}

	// Audit carries the same token.
	events := f.store.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Action != models.ActionDownload || events[0].TraceToken != art.TraceToken {
		t.Errorf("audit event = %+v", events[0])
	}
}

func TestDeliverAdminGetsRawOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("%PDF-1.4 original bytes")
	docID := f.seedDocument(t, "policy.pdf", "pdf", content, 1)

	admin := models.Principal{ID: 9, Role: models.RoleAdmin, DisplayName: "Root"}
	art, err := f.pipeline.Deliver(ctx, admin, docID, ModeDownload)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if !bytes.Equal(art.Content, content) {
		t.Error("admin should receive the unmodified original")
	}
	if art.Filename != "policy.pdf" || art.ContentType != "pdf" {
		t.Errorf("artifact = %q (%s)", art.Filename, art.ContentType)
	}
	if !strings.HasPrefix(art.TraceToken, "TRACE_9_") {
		t.Errorf("raw delivery should still carry a trace token, got %q", art.TraceToken)
	}

	events := f.store.Events()
	if len(events) != 1 || events[0].Action != models.ActionDownload {
		t.Fatalf("raw delivery must still be audited, got %v", events)
	}
	if events[0].TraceToken != art.TraceToken {
		t.Errorf("raw audit event token = %q, want %q", events[0].TraceToken, art.TraceToken)
	}
}

func TestDeliverAdminOfficePreviewPlainRendition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docID := f.seedDocument(t, "notes.docx", "docx", []byte("plain"), 1)

	admin := models.Principal{ID: 9, Role: models.RoleAdmin}
	art, err := f.pipeline.Deliver(ctx, admin, docID, ModePreview)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if art.Filename != "notes.pdf" || art.ContentType != "pdf" {
		t.Errorf("artifact = %q (%s)", art.Filename, art.ContentType)
	}
	if !bytes.HasPrefix(art.Content, []byte("%PDF-")) {
		t.Error("rendition is not a PDF")
	}

	// No trace fields on the administrative rendition.
	props, err := watermark.ReadProperties(art.Content)
	if err != nil {
		t.Fatalf("ReadProperties: %v", err)
	}
	if props[watermark.PropTraceID] != "" {
		t.Errorf("unexpected trace field %q", props[watermark.PropTraceID])
	}
}

func TestDeliverUnsupportedTypeRenderFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docID := f.seedDocument(t, "archive.zip", "zip", []byte("zip bytes"), 7)

	uploader := models.Principal{ID: 7, DisplayName: "Ana"}
	_, err := f.pipeline.Deliver(ctx, uploader, docID, ModeDownload)
	if !errors.Is(err, domain.ErrRenderFailure) {
		t.Fatalf("expected render failure, got %v", err)
	}
	// The failure path must not audit a delivery that never happened.
	if got := f.store.Events(); len(got) != 0 {
		t.Errorf("failed render should not be audited, got %v", got)
	}
}

func TestTraceTokenShape(t *testing.T) {
	at := time.Unix(1767225600, 0)
	fp, err := Fingerprint(strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if len(fp) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(fp))
	}

	token := TraceToken(42, at, fp)
	want := fmt.Sprintf("TRACE_42_1767225600_%s", fp)
	if token != want {
		t.Errorf("token = %q, want %q", token, want)
	}

	// Same content, same fingerprint.
	fp2, _ := Fingerprint(strings.NewReader("content"))
	if fp != fp2 {
		t.Error("fingerprint should be deterministic")
	}
	fp3, _ := Fingerprint(strings.NewReader("other"))
	if fp == fp3 {
		t.Error("different content should fingerprint differently")
	}
}
