package database

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// testDB spins up an in-process Redis and binds the collections to it.
func testDB(t *testing.T) (*DB, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func testTrigger(id string) *model.Trigger {
	return &model.Trigger{
		ID:         id,
		Name:       "home reaches 30",
		Datasource: "sportradar",
		Scope:      "game",
		ScopeID:    "g-1",
		Entity:     "moderation",
		EntityID:   "m-1",
		Sport:      "basketball",
		Next:       true,
	}
}

func testCondition(id, triggerID string) *model.Condition {
	cond := &model.Condition{
		ID:        id,
		TriggerID: triggerID,
		Event:     "home_score",
		Compare:   model.CompareGe,
		Targets:   []string{"30"},
		Type:      model.TypeNumber,
	}
	cond.URIs = cond.DeriveURIs("sportradar", "game", "g-1")
	return cond
}

func testSnapshot(id string, options map[string]string) *model.ScopeSnapshot {
	return &model.ScopeSnapshot{
		ID:         id,
		Datasource: "sportradar",
		Sport:      "basketball",
		Scope:      "game",
		ScopeID:    "g-1",
		Timestamp:  1700000000000,
		Options:    options,
	}
}
