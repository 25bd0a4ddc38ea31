package database

import (
	"context"
	"errors"
	"testing"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

func TestConditions_CreateGet(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	cond := testCondition("c-1", "t-1")
	cond.Options = []model.ConditionOption{
		{Event: "game_state", Compare: model.CompareEq, Targets: []string{"live"}, Type: model.TypeString},
	}
	if err := db.Conditions.Create(ctx, cond); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.Conditions.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Event != "home_score" || got.Compare != model.CompareGe || got.Type != model.TypeNumber {
		t.Errorf("Get() = %+v, want home_score ge number", got)
	}
	if len(got.Targets) != 1 || got.Targets[0] != "30" {
		t.Errorf("Get().Targets = %v, want [30]", got.Targets)
	}
	if len(got.Options) != 1 || got.Options[0].Event != "game_state" {
		t.Errorf("Get().Options = %+v, want one game_state option", got.Options)
	}
	if len(got.URIs) != len(cond.URIs) {
		t.Errorf("Get().URIs = %v, want %v", got.URIs, cond.URIs)
	}
}

func TestConditions_ListByTriggerSorted(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	first := testCondition("c-1", "t-1")
	first.ChainOrder = 1
	second := testCondition("c-2", "t-1")
	second.ChainOrder = 0
	for _, cond := range []*model.Condition{first, second} {
		if err := db.Conditions.Create(ctx, cond); err != nil {
			t.Fatalf("Create(%s) error = %v", cond.ID, err)
		}
	}

	conds, err := db.Conditions.ListByTrigger(ctx, "t-1")
	if err != nil {
		t.Fatalf("ListByTrigger() error = %v", err)
	}
	if len(conds) != 2 {
		t.Fatalf("ListByTrigger() returned %d conditions, want 2", len(conds))
	}
	if conds[0].ID != "c-2" || conds[1].ID != "c-1" {
		t.Errorf("ListByTrigger() order = [%s %s], want [c-2 c-1]", conds[0].ID, conds[1].ID)
	}
}

func TestConditions_Evaluated(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	if err := db.Conditions.Create(ctx, testCondition("c-1", "t-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	seen, err := db.Conditions.Evaluated(ctx, "c-1", "snap-1")
	if err != nil {
		t.Fatalf("Evaluated() error = %v", err)
	}
	if seen {
		t.Error("Evaluated() = true before any outcome was recorded")
	}

	if err := db.Conditions.RecordEvaluation(ctx, "c-1", "snap-1", false); err != nil {
		t.Fatalf("RecordEvaluation() error = %v", err)
	}
	seen, err = db.Conditions.Evaluated(ctx, "c-1", "snap-1")
	if err != nil {
		t.Fatalf("Evaluated() error = %v", err)
	}
	if !seen {
		t.Error("Evaluated() = false after the outcome was recorded")
	}

	seen, err = db.Conditions.Evaluated(ctx, "c-1", "snap-2")
	if err != nil {
		t.Fatalf("Evaluated() error = %v", err)
	}
	if seen {
		t.Error("Evaluated() = true for a snapshot never scored")
	}
}

func TestConditions_RecordEvaluationAppliesFlagWithLog(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	if err := db.Conditions.Create(ctx, testCondition("c-1", "t-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A non-matching outcome leaves the flag down.
	if err := db.Conditions.RecordEvaluation(ctx, "c-1", "snap-1", false); err != nil {
		t.Fatalf("RecordEvaluation() error = %v", err)
	}
	got, err := db.Conditions.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Activated {
		t.Error("Activated = true after a non-matching outcome")
	}

	// A matching outcome lands the flag and the log entry together.
	if err := db.Conditions.RecordEvaluation(ctx, "c-1", "snap-2", true); err != nil {
		t.Fatalf("RecordEvaluation() error = %v", err)
	}
	got, err = db.Conditions.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Activated {
		t.Error("Activated = false after a matching outcome")
	}

	log, err := db.Conditions.EvaluationLog(ctx, "c-1")
	if err != nil {
		t.Fatalf("EvaluationLog() error = %v", err)
	}
	for _, id := range []string{"snap-1", "snap-2"} {
		if _, ok := log[id]; !ok {
			t.Errorf("EvaluationLog() = %v, want entry for %s", log, id)
		}
	}
}

func TestConditions_ActivationFlags(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	for _, id := range []string{"c-1", "c-2"} {
		if err := db.Conditions.Create(ctx, testCondition(id, "t-1")); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if err := db.Conditions.SetActivated(ctx, "c-1", true); err != nil {
		t.Fatalf("SetActivated() error = %v", err)
	}

	got, _ := db.Conditions.Get(ctx, "c-1")
	if !got.Activated {
		t.Error("Activated = false after SetActivated(true)")
	}

	if err := db.Conditions.ResetActivated(ctx, "t-1"); err != nil {
		t.Fatalf("ResetActivated() error = %v", err)
	}
	for _, id := range []string{"c-1", "c-2"} {
		got, _ := db.Conditions.Get(ctx, id)
		if got.Activated {
			t.Errorf("condition %s still activated after ResetActivated", id)
		}
	}
}

func TestConditions_TriggersForURIs(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	c1 := testCondition("c-1", "t-1")
	c2 := testCondition("c-2", "t-2")
	for _, cond := range []*model.Condition{c1, c2} {
		if err := db.Conditions.Create(ctx, cond); err != nil {
			t.Fatalf("Create(%s) error = %v", cond.ID, err)
		}
	}

	snap := testSnapshot("snap-1", map[string]string{"home_score": "30"})
	ids, err := db.Conditions.TriggersForURIs(ctx, snap.URIs())
	if err != nil {
		t.Fatalf("TriggersForURIs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("TriggersForURIs() = %v, want 2 distinct triggers", ids)
	}

	ok, err := db.Conditions.URIHasTriggers(ctx, snap.URIs())
	if err != nil {
		t.Fatalf("URIHasTriggers() error = %v", err)
	}
	if !ok {
		t.Error("URIHasTriggers() = false, want true")
	}

	other := testSnapshot("snap-2", map[string]string{"home_score": "30"})
	other.ScopeID = "g-other"
	ok, err = db.Conditions.URIHasTriggers(ctx, other.URIs())
	if err != nil {
		t.Fatalf("URIHasTriggers() error = %v", err)
	}
	if ok {
		t.Error("URIHasTriggers() = true for unindexed scope, want false")
	}
}

func TestConditions_RemoveTriggerFromURIs(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	cond := testCondition("c-1", "t-1")
	if err := db.Conditions.Create(ctx, cond); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := db.Conditions.RemoveTriggerFromURIs(ctx, "t-1", cond.URIs); err != nil {
		t.Fatalf("RemoveTriggerFromURIs() error = %v", err)
	}

	ids, err := db.Conditions.TriggersForURIs(ctx, cond.URIs)
	if err != nil {
		t.Fatalf("TriggersForURIs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("TriggersForURIs() after removal = %v, want empty", ids)
	}
}

func TestConditions_DeleteByTrigger(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()

	cond := testCondition("c-1", "t-1")
	if err := db.Conditions.Create(ctx, cond); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := db.Conditions.RecordEvaluation(ctx, "c-1", "snap-1", false); err != nil {
		t.Fatalf("RecordEvaluation() error = %v", err)
	}

	if err := db.Conditions.DeleteByTrigger(ctx, "t-1"); err != nil {
		t.Fatalf("DeleteByTrigger() error = %v", err)
	}

	if _, err := db.Conditions.Get(ctx, "c-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	ids, err := db.Conditions.TriggersForURIs(ctx, cond.URIs)
	if err != nil {
		t.Fatalf("TriggersForURIs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("TriggersForURIs() after delete = %v, want empty", ids)
	}
}
