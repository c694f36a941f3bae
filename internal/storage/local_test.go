package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalAdapterStoresUnderDayDeviceLayout(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	if err := os.WriteFile(src, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewLocal(filepath.Join(dir, "store"), true)
	res, err := a.Store(context.Background(), Object{
		LocalPath:  src,
		DeviceID:   "dev-1",
		PayloadID:  "p-1",
		CapturedAt: time.Now(),
		Day:        "2026-07-31",
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !res.DeleteLocal {
		t.Fatal("expected DeleteLocal to propagate from adapter config")
	}

	want := filepath.Join(dir, "store", "2026-07-31", "dev-1", "p-1.jpg")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected file at %s: %v", want, err)
	}
}

func TestContainedPathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	if _, err := containedPath(root, "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}
