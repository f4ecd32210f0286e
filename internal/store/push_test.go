package store

import (
	"context"
	"testing"

	"github.com/dukerupert/beanjar/internal/model"
)

func TestPushSubscribeUpserts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ps := NewPushStore(db)
	ms := NewMemberStore(db)

	mom, _ := ms.Create(ctx, nil, "Mom", model.RoleParent, "")
	kid, _ := ms.Create(ctx, nil, "Kid", model.RoleChild, "")

	sub, err := ps.Subscribe(ctx, mom.ID, "https://push.test/a", "p1", "a1", "Phone")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.MemberID != mom.ID || sub.DeviceName != "Phone" {
		t.Errorf("sub = %+v", sub)
	}

	// Same browser handed to the kid.
	again, err := ps.Subscribe(ctx, kid.ID, "https://push.test/a", "p2", "a2", "Tablet")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if again.ID != sub.ID || again.MemberID != kid.ID || again.P256dhKey != "p2" {
		t.Errorf("resubscribed = %+v", again)
	}

	if _, err := ps.Subscribe(ctx, mom.ID, "https://push.test/b", "p3", "a3", ""); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	subs, err := ps.ListByMembers(ctx, mom.ID, kid.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subs = %d, want 2", len(subs))
	}

	none, err := ps.ListByMembers(ctx)
	if err != nil || none != nil {
		t.Errorf("empty list = %v, %v", none, err)
	}
}

func TestPushDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ps := NewPushStore(db)
	ms := NewMemberStore(db)

	mom, _ := ms.Create(ctx, nil, "Mom", model.RoleParent, "")
	a, _ := ps.Subscribe(ctx, mom.ID, "https://push.test/a", "p", "a", "")
	ps.Subscribe(ctx, mom.ID, "https://push.test/b", "p", "a", "")

	if err := ps.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ps.GetByID(ctx, a.ID); got != nil {
		t.Error("subscription still present after delete")
	}

	if err := ps.DeleteByEndpoint(ctx, "https://push.test/b"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ := ps.ListByMembers(ctx, mom.ID)
	if len(subs) != 0 {
		t.Errorf("subs = %d, want 0", len(subs))
	}
}

func TestPushCascadeOnMemberDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ps := NewPushStore(db)
	ms := NewMemberStore(db)

	kid, _ := ms.Create(ctx, nil, "Kid", model.RoleChild, "")
	sub, _ := ps.Subscribe(ctx, kid.ID, "https://push.test/k", "p", "a", "")

	if err := ms.Delete(ctx, kid.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if got, _ := ps.GetByID(ctx, sub.ID); got != nil {
		t.Error("subscription survived member delete")
	}
}
