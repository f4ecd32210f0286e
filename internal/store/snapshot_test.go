package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/beanjar/internal/model"
)

func TestSnapshotLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ss := NewSnapshotStore(db)

	a, err := ss.Create(ctx, "a.db.enc", "beanjar/a.db.enc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != model.SnapshotPending || a.CompletedAt != nil {
		t.Errorf("new snapshot = %+v", a)
	}

	if err := ss.MarkCompleted(ctx, a.ID, 4096); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	b, _ := ss.Create(ctx, "b.db.enc", "beanjar/b.db.enc")
	if err := ss.MarkFailed(ctx, b.ID, "bucket offline"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	list, err := ss.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Status != model.SnapshotFailed || list[0].ErrorMessage != "bucket offline" {
		t.Errorf("failed snapshot = %+v", list[0])
	}
	if list[1].Status != model.SnapshotCompleted || list[1].SizeBytes != 4096 || list[1].CompletedAt == nil {
		t.Errorf("completed snapshot = %+v", list[1])
	}

	if _, err := ss.Create(ctx, "dup", "beanjar/a.db.enc"); err == nil {
		t.Error("duplicate object key should fail")
	}
}

func TestSnapshotDeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ss := NewSnapshotStore(db)

	ss.Create(ctx, "old", "k/old")
	if _, err := db.Exec(`UPDATE snapshots SET created_at = ?`, sqlTime(time.Now().Add(-72*time.Hour))); err != nil {
		t.Fatalf("age snapshot: %v", err)
	}
	ss.Create(ctx, "new", "k/new")

	keys, err := ss.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete older: %v", err)
	}
	if len(keys) != 1 || keys[0] != "k/old" {
		t.Errorf("keys = %v", keys)
	}
	list, _ := ss.List(ctx, 10)
	if len(list) != 1 || list[0].ObjectKey != "k/new" {
		t.Errorf("remaining = %+v", list)
	}
}
