package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "kairos.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	older, err := db.AddCustom(ctx, CustomModel{Name: "a.gguf", DisplayName: "A", DownloadURL: "https://example/a.gguf", AddedAt: time.Unix(100, 0)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if older.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	if _, err := db.AddCustom(ctx, CustomModel{Name: "b.gguf", FilePath: "/data/b.gguf", IsLocal: true, SizeBytes: 42, AddedAt: time.Unix(200, 0)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	list, err := db.ListCustom(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "b.gguf" || list[1].Name != "a.gguf" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if !list[0].IsLocal || list[0].FilePath != "/data/b.gguf" || list[0].SizeBytes != 42 {
		t.Fatalf("fields not persisted: %+v", list[0])
	}

	if err := db.DeleteCustom(ctx, "a.gguf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.DeleteCustom(ctx, "a.gguf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DuplicateName(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	if _, err := db.AddCustom(ctx, CustomModel{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddCustom(ctx, CustomModel{Name: "x"}); err == nil {
		t.Fatalf("expected unique constraint error")
	}
}
