package service

import (
	"io"
	"log/slog"
	"testing"

	"docvault/internal/repository/memory"
	"docvault/internal/service/access"
	"docvault/internal/service/propagation"
	"docvault/internal/storage"
)

type env struct {
	store   *memory.Store
	blobs   *storage.FilesystemStore
	folders *FolderService
	docs    *DocumentService
	groups  *GroupService
	audit   *AuditService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	blobs, err := storage.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	prop := propagation.NewEngine(store, store.Folders(), store.Documents(), store, logger)
	resolver := access.NewResolver(store.Folders(), store.Documents(), store, store.Groups(), logger)

	return &env{
		store:   store,
		blobs:   blobs,
		folders: NewFolderService(store, store.Folders(), store.Documents(), store, prop, resolver, blobs, store, logger),
		docs:    NewDocumentService(store, store.Folders(), store.Documents(), store, prop, blobs, store, logger),
		groups:  NewGroupService(store, store.Groups(), store, logger),
		audit:   NewAuditService(store),
	}
}
