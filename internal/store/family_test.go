package store

import (
	"context"
	"testing"

	"github.com/dukerupert/beanjar/internal/model"
)

func TestFamilyCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fs := NewFamilyStore(db)
	ms := NewMemberStore(db)

	f, err := fs.Create(ctx, "Smith", "Work hard", "Springfield")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.Name != "Smith" || f.Motto != "Work hard" || f.Location != "Springfield" {
		t.Errorf("family = %+v", f)
	}

	ms.Create(ctx, &f.ID, "A", model.RoleParent, "")
	ms.Create(ctx, &f.ID, "B", model.RoleChild, "")

	got, err := fs.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", got.MemberCount)
	}

	motto := "Play hard"
	updated, err := fs.Update(ctx, f.ID, FamilyPatch{Motto: &motto})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Motto != "Play hard" || updated.Name != "Smith" {
		t.Errorf("updated = %+v", updated)
	}

	byName, err := fs.GetByName(ctx, "Smith")
	if err != nil || byName == nil || byName.ID != f.ID {
		t.Errorf("get by name = %v, %v", byName, err)
	}

	if err := fs.Delete(ctx, f.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	members, _ := ms.List(ctx, nil)
	if len(members) != 0 {
		t.Errorf("members after family delete = %d, want 0", len(members))
	}
}

func TestFamilyListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fs := NewFamilyStore(db)

	fs.Create(ctx, "First", "", "")
	fs.Create(ctx, "Second", "", "")

	list, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Name != "Second" {
		t.Errorf("first = %q, want %q", list[0].Name, "Second")
	}
}

func TestAdoptOrphans(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fs := NewFamilyStore(db)
	ms := NewMemberStore(db)

	ms.Create(ctx, nil, "Legacy1", model.RoleParent, "")
	ms.Create(ctx, nil, "Legacy2", model.RoleChild, "")
	f, _ := fs.Create(ctx, "Default", "", "")

	n, err := fs.AdoptOrphans(ctx, f.ID)
	if err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if n != 2 {
		t.Errorf("adopted = %d, want 2", n)
	}
	count, _ := ms.CountInFamily(ctx, nil)
	if count != 0 {
		t.Errorf("orphans left = %d, want 0", count)
	}
}
