package database

import (
	"context"
	"errors"
	"testing"
)

func TestTriggers_CreateGet(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	tr := testTrigger("t-1")
	tr.UseLimits = true
	tr.UseConditionThreshold = true
	tr.Threshold = 2
	if err := db.Triggers.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.Triggers.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != tr.Name || got.ScopeID != tr.ScopeID || got.Sport != tr.Sport {
		t.Errorf("Get() = %+v, want fields of %+v", got, tr)
	}
	if !got.UseLimits || !got.UseConditionThreshold || got.Threshold != 2 {
		t.Errorf("Get() lost limit fields: %+v", got)
	}
	if !got.Next {
		t.Error("Get().Next = false, want true")
	}
}

func TestTriggers_GetMissing(t *testing.T) {
	db, _ := testDB(t)

	_, err := db.Triggers.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestTriggers_ListByScopeAndEntity(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	for _, id := range []string{"t-1", "t-2"} {
		if err := db.Triggers.Create(ctx, testTrigger(id)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	byScope, err := db.Triggers.ListByScope(ctx, "sportradar", "game", "g-1")
	if err != nil {
		t.Fatalf("ListByScope() error = %v", err)
	}
	if len(byScope) != 2 {
		t.Errorf("ListByScope() returned %d triggers, want 2", len(byScope))
	}

	byEntity, err := db.Triggers.ListByEntity(ctx, "moderation", "m-1")
	if err != nil {
		t.Fatalf("ListByEntity() error = %v", err)
	}
	if len(byEntity) != 2 {
		t.Errorf("ListByEntity() returned %d triggers, want 2", len(byEntity))
	}
}

func TestTriggers_Delete(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	tr := testTrigger("t-1")
	if err := db.Triggers.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := db.Triggers.Delete(ctx, tr); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := db.Triggers.Get(ctx, "t-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	byScope, err := db.Triggers.ListByScope(ctx, "sportradar", "game", "g-1")
	if err != nil {
		t.Fatalf("ListByScope() error = %v", err)
	}
	if len(byScope) != 0 {
		t.Errorf("ListByScope() after delete returned %d triggers, want 0", len(byScope))
	}
}

func TestTriggers_SetDisabled(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	if err := db.Triggers.Create(ctx, testTrigger("t-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := db.Triggers.SetDisabled(ctx, "t-1", true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}
	got, err := db.Triggers.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Disabled {
		t.Error("Disabled = false after SetDisabled(true)")
	}

	if err := db.Triggers.SetDisabled(ctx, "t-1", false); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}
	got, _ = db.Triggers.Get(ctx, "t-1")
	if got.Disabled {
		t.Error("Disabled = true after SetDisabled(false)")
	}

	if err := db.Triggers.SetDisabled(ctx, "nope", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetDisabled(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTriggers_SetEntityDisabled(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	for _, id := range []string{"t-1", "t-2"} {
		if err := db.Triggers.Create(ctx, testTrigger(id)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	if err := db.Triggers.SetEntityDisabled(ctx, "moderation", "m-1", true); err != nil {
		t.Fatalf("SetEntityDisabled() error = %v", err)
	}
	for _, id := range []string{"t-1", "t-2"} {
		got, err := db.Triggers.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
		if !got.DisabledEntity {
			t.Errorf("trigger %s DisabledEntity = false, want true", id)
		}
	}
}

func TestTriggers_SetActivatedNext(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	if err := db.Triggers.Create(ctx, testTrigger("t-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := db.Triggers.SetActivatedNext(ctx, "t-1", true, false); err != nil {
		t.Fatalf("SetActivatedNext() error = %v", err)
	}

	got, err := db.Triggers.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Activated || got.Next {
		t.Errorf("Get() activated=%v next=%v, want activated=true next=false", got.Activated, got.Next)
	}
}
