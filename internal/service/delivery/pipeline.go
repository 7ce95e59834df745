// Package delivery turns a document request into the artifact the caller
// actually receives. Every delivery walks the same stages in order:
// existence, permission, trace computation, rendering, audit. Only then
// does content leave the system.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
	"docvault/internal/service/access"
	"docvault/internal/storage"
	"docvault/internal/watermark"
)

// Mode selects the delivery intent; preview and download carry separate
// permission flags and separate audit actions.
type Mode string

const (
	ModePreview  Mode = "preview"
	ModeDownload Mode = "download"
)

// Artifact is the delivered payload.
type Artifact struct {
	Content     []byte
	Filename    string
	ContentType string // lowercase extension of the content
	TraceToken  string
}

// rawAdminTypes are served to administrators as the unmodified original.
var rawAdminTypes = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// Pipeline orchestrates a delivery end to end.
type Pipeline struct {
	resolver *access.Resolver
	docs     repositories.DocumentRepository
	blobs    storage.BlobStore
	engine   *watermark.Engine
	audit    repositories.AuditSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates a new delivery pipeline
func NewPipeline(
	resolver *access.Resolver,
	docs repositories.DocumentRepository,
	blobs storage.BlobStore,
	engine *watermark.Engine,
	audit repositories.AuditSink,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		docs:     docs,
		blobs:    blobs,
		engine:   engine,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Deliver runs the full pipeline for one document.
func (p *Pipeline) Deliver(ctx context.Context, principal models.Principal, documentID int64, mode Mode) (*Artifact, error) {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	// A row whose backing blob is gone reads as missing before the
	// permission gate even runs. The caller cannot distinguish the two
	// kinds of absence anyway.
	ok, err := p.blobs.Exists(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrStorage, doc.StoragePath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: backing file %s", domain.ErrNotFound, doc.StoragePath)
	}

	if err := p.checkPermission(ctx, principal, documentID, mode); err != nil {
		return nil, err
	}

	content, err := p.readBlob(ctx, doc.StoragePath)
	if err != nil {
		return nil, err
	}

	// The trace token is computed for every delivery, raw administrative
	// ones included, so the audit trail always names the copy.
	at := p.now()
	fingerprint, err := Fingerprint(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailure, err)
	}
	token := TraceToken(principal.ID, at, fingerprint)

	if artifact, served := p.adminArtifact(principal, doc, mode, content); served {
		artifact.TraceToken = token
		if err := p.recordAudit(ctx, principal.ID, doc.ID, mode, token); err != nil {
			return nil, err
		}
		return artifact, nil
	}

	rendered, err := p.engine.Render(&watermark.Request{
		Source:      content,
		FileType:    doc.ContentType,
		RequesterID: principal.ID,
		DisplayName: principal.DisplayName,
		Contact:     principal.Contact,
		TraceToken:  token,
		Timestamp:   at,
		Visible:     true,
	})
	if err != nil {
		// The caller gets a generic failure; the specifics stay in the log.
		p.logger.Error("artifact rendering failed",
			"document_id", doc.ID,
			"file_type", doc.ContentType,
			"user_id", principal.ID,
			"mode", string(mode),
			"trace_token", token,
			"error", err,
		)
		return nil, domain.ErrRenderFailure
	}

	if err := p.recordAudit(ctx, principal.ID, doc.ID, mode, token); err != nil {
		return nil, err
	}

	return &Artifact{
		Content:     rendered,
		Filename:    securedName(doc.Title),
		ContentType: "pdf",
		TraceToken:  token,
	}, nil
}

func (p *Pipeline) checkPermission(ctx context.Context, principal models.Principal, documentID int64, mode Mode) error {
	res := access.DocumentResource(documentID)
	switch mode {
	case ModePreview:
		ok, err := p.resolver.CanView(ctx, principal, res)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.PermissionError{Action: "preview", Message: "no permission to preview this file"}
		}
	case ModeDownload:
		ok, err := p.resolver.CanDownload(ctx, principal, res)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.PermissionError{Action: "download", Message: "no permission to download this file"}
		}
	default:
		return fmt.Errorf("unknown delivery mode %q", mode)
	}
	return nil
}

func (p *Pipeline) readBlob(ctx context.Context, path string) ([]byte, error) {
	rc, err := p.blobs.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStorage, path, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorage, path, err)
	}
	return content, nil
}

// adminArtifact short-circuits the watermarking stages for administrators.
// PDFs, raster images, and downloaded office files are served as the raw
// original; office files previewed by an administrator get the plain text
// rendition.
func (p *Pipeline) adminArtifact(principal models.Principal, doc *models.Document, mode Mode, content []byte) (*Artifact, bool) {
	if !principal.IsAdmin() {
		return nil, false
	}

	if rawAdminTypes[doc.ContentType] {
		return &Artifact{
			Content:     content,
			Filename:    doc.Title,
			ContentType: doc.ContentType,
		}, true
	}

	if mode == ModeDownload && watermark.IsOfficeType(doc.ContentType) {
		return &Artifact{
			Content:     content,
			Filename:    doc.Title,
			ContentType: doc.ContentType,
		}, true
	}

	if mode == ModePreview && watermark.IsOfficeType(doc.ContentType) {
		rendered, err := watermark.TextRendition(doc.ContentType, content)
		if err != nil {
			p.logger.Error("administrative text rendition failed",
				"document_id", doc.ID, "file_type", doc.ContentType, "error", err)
			return nil, false
		}
		return &Artifact{
			Content:     rendered,
			Filename:    replaceExt(doc.Title, "pdf"),
			ContentType: "pdf",
		}, true
	}

	return nil, false
}

func (p *Pipeline) recordAudit(ctx context.Context, actorID, documentID int64, mode Mode, token string) error {
	action := models.ActionPreview
	if mode == ModeDownload {
		action = models.ActionDownload
	}
	event := &models.AuditEvent{
		ActorID:    actorID,
		DocumentID: documentID,
		Action:     action,
		TraceToken: token,
		CreatedAt:  p.now(),
	}
	if err := p.audit.Append(ctx, event); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// securedName builds the delivered filename: SECURED_<base>.pdf.
func securedName(title string) string {
	return "SECURED_" + replaceExt(title, "pdf")
}

func replaceExt(title, ext string) string {
	if i := strings.LastIndex(title, "."); i > 0 {
		title = title[:i]
	}
	return title + "." + ext
}
