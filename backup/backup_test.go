package backup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateCommitDiscardsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.mkv")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, backupPath, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("Create must rename the original out of the way")
	}
	if data, err := os.ReadFile(backupPath); err != nil || string(data) != "original" {
		t.Fatalf("backup content = %q, err = %v", data, err)
	}

	if err := os.WriteFile(path, []byte("rewritten"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(backupPath); !os.IsNotExist(err) {
		t.Fatal("Commit must remove the backup file")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "rewritten" {
		t.Fatalf("original path content = %q, err = %v", data, err)
	}
}

func TestCreateRestoreRevertsOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.mkv")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, _, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("partial garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.Restore(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "original" {
		t.Fatalf("Restore did not bring back the original content, got %q, err = %v", data, err)
	}
}

func TestCreateUsesNumberedBackupWhenBakTaken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.mkv")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".bak", []byte("someone else's backup"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, backupPath, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if backupPath == path+".bak" {
		t.Fatal("Create must not clobber an existing .bak file")
	}
}

func TestHandleFailureAfterFileModifiedPassesCauseWhenCommitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.mkv")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	h, _, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Commit(); err != nil {
		t.Fatal(err)
	}

	cause := os.ErrClosed
	got := HandleFailureAfterFileModified(h, cause)
	if got != cause {
		t.Fatalf("once committed, Restore is a no-op and the original cause must propagate unchanged, got %v", got)
	}
}
