package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	ctx := context.Background()

	n, err := store.Save(ctx, "a/b/doc.pdf", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != int64(len("content")) {
		t.Errorf("size = %d", n)
	}

	ok, err := store.Exists(ctx, "a/b/doc.pdf")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	rc, err := store.Open(ctx, "a/b/doc.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte("content")) {
		t.Errorf("content = %q", got)
	}

	if err := store.Remove(ctx, "a/b/doc.pdf"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := store.Exists(ctx, "a/b/doc.pdf"); ok {
		t.Error("blob survived Remove")
	}
}

func TestFilesystemStoreRemoveAbsent(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	if err := store.Remove(context.Background(), "never-existed.bin"); err != nil {
		t.Errorf("removing an absent blob should not error, got %v", err)
	}
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Save(ctx, "../escape.bin", strings.NewReader("x")); err == nil {
		t.Error("Save outside the root should be refused")
	}
	if _, err := store.Open(ctx, "../../etc/passwd"); err == nil {
		t.Error("Open outside the root should be refused")
	}
}

func TestFilesystemStoreOpenMissing(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	if _, err := store.Open(context.Background(), "missing.bin"); err == nil {
		t.Error("expected error for missing blob")
	}
}
