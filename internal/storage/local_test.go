package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return storage, baseDir
}

func TestLocalStorage_Download(t *testing.T) {
	storage, baseDir := newTestStorage(t)

	content := []byte("Employer,Sum Approval,Sum Denial,Zip\nA,100,1,27601\n")
	if err := os.MkdirAll(filepath.Join(baseDir, "data"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, "data", "h1b.csv"), content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ctx := context.Background()

	exists, err := storage.Exists(ctx, "data/h1b.csv")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	dstPath := filepath.Join(t.TempDir(), "nested", "downloaded.csv")
	if err := storage.Download(ctx, "data/h1b.csv", dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", downloaded, content)
	}

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(dstPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the downloaded file, found %d entries", len(entries))
	}
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	storage, _ := newTestStorage(t)

	err := storage.Download(context.Background(), "nope.csv", filepath.Join(t.TempDir(), "x.csv"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	exists, err := storage.Exists(context.Background(), "nope.csv")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist")
	}
}

func TestLocalStorage_DownloadDirectory(t *testing.T) {
	storage, baseDir := newTestStorage(t)
	if err := os.Mkdir(filepath.Join(baseDir, "dir"), 0755); err != nil {
		t.Fatal(err)
	}

	err := storage.Download(context.Background(), "dir", filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, _ := newTestStorage(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Download(ctx, "a.csv", filepath.Join(t.TempDir(), "a.csv")); !errors.Is(err, context.Canceled) {
		t.Errorf("Download: expected context.Canceled, got %v", err)
	}
	if _, err := storage.Exists(ctx, "a.csv"); !errors.Is(err, context.Canceled) {
		t.Errorf("Exists: expected context.Canceled, got %v", err)
	}
}

func TestNewLocalStorage_MissingBase(t *testing.T) {
	if _, err := NewLocalStorage(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing base directory")
	}
}
