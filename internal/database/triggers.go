package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Triggers is the trigger collection: primary hash by id plus membership
// sets by (entity, entityId) and by (datasource, scope, scopeId).
type Triggers struct {
	client *redis.Client
}

// Create persists the trigger and its index memberships in one atomic batch.
func (t *Triggers) Create(ctx context.Context, tr *model.Trigger) error {
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, triggerKey(tr.ID), triggerFields(tr))
		pipe.SAdd(ctx, scopeTriggersKey(tr.Datasource, tr.Scope, tr.ScopeID), tr.ID)
		if tr.Entity != "" {
			pipe.SAdd(ctx, entityTriggersKey(tr.Entity, tr.EntityID), tr.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create trigger %s: %w", tr.ID, err)
	}
	return nil
}

// Get loads one trigger. Returns ErrNotFound for unknown or expired ids.
func (t *Triggers) Get(ctx context.Context, id string) (*model.Trigger, error) {
	fields, err := t.client.HGetAll(ctx, triggerKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get trigger %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("trigger %s: %w", id, ErrNotFound)
	}
	return parseTrigger(fields)
}

// Update rewrites the trigger's stored fields. The trigger must exist.
func (t *Triggers) Update(ctx context.Context, tr *model.Trigger) error {
	if err := t.exists(ctx, tr.ID); err != nil {
		return err
	}
	if err := t.client.HSet(ctx, triggerKey(tr.ID), triggerFields(tr)).Err(); err != nil {
		return fmt.Errorf("update trigger %s: %w", tr.ID, err)
	}
	return nil
}

// Delete removes the trigger record and its index memberships atomically.
func (t *Triggers) Delete(ctx context.Context, tr *model.Trigger) error {
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, triggerKey(tr.ID))
		pipe.SRem(ctx, scopeTriggersKey(tr.Datasource, tr.Scope, tr.ScopeID), tr.ID)
		if tr.Entity != "" {
			pipe.SRem(ctx, entityTriggersKey(tr.Entity, tr.EntityID), tr.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete trigger %s: %w", tr.ID, err)
	}
	return nil
}

// SetDisabled flips the trigger's own disabled flag.
func (t *Triggers) SetDisabled(ctx context.Context, id string, disabled bool) error {
	if err := t.exists(ctx, id); err != nil {
		return err
	}
	if err := t.client.HSet(ctx, triggerKey(id), "disabled", strconv.FormatBool(disabled)).Err(); err != nil {
		return fmt.Errorf("set disabled on trigger %s: %w", id, err)
	}
	return nil
}

// SetEntityDisabled flips the entity-disabled flag on every trigger owned by
// the entity. Trigger state is otherwise untouched, so enabling restores the
// previous behavior without recreating anything.
func (t *Triggers) SetEntityDisabled(ctx context.Context, entity, entityID string, disabled bool) error {
	ids, err := t.client.SMembers(ctx, entityTriggersKey(entity, entityID)).Result()
	if err != nil {
		return fmt.Errorf("list triggers for entity %s/%s: %w", entity, entityID, err)
	}
	value := strconv.FormatBool(disabled)
	_, err = t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HSet(ctx, triggerKey(id), "disabled_entity", value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set entity disabled for %s/%s: %w", entity, entityID, err)
	}
	return nil
}

// SetActivatedNext persists the outcome of one evaluation cycle.
func (t *Triggers) SetActivatedNext(ctx context.Context, id string, activated, next bool) error {
	err := t.client.HSet(ctx, triggerKey(id),
		"activated", strconv.FormatBool(activated),
		"next", strconv.FormatBool(next),
	).Err()
	if err != nil {
		return fmt.Errorf("set activated/next on trigger %s: %w", id, err)
	}
	return nil
}

// ExpireRetired schedules the retired trigger record for expiry.
func (t *Triggers) ExpireRetired(ctx context.Context, id string, ttl time.Duration) error {
	if err := t.client.Expire(ctx, triggerKey(id), ttl).Err(); err != nil {
		return fmt.Errorf("expire trigger %s: %w", id, err)
	}
	return nil
}

// ListByScope returns the triggers bound to one scope.
func (t *Triggers) ListByScope(ctx context.Context, datasource, scope, scopeID string) ([]*model.Trigger, error) {
	ids, err := t.client.SMembers(ctx, scopeTriggersKey(datasource, scope, scopeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list triggers for scope %s/%s/%s: %w", datasource, scope, scopeID, err)
	}
	return t.getAll(ctx, ids)
}

// ListByEntity returns the triggers owned by one entity.
func (t *Triggers) ListByEntity(ctx context.Context, entity, entityID string) ([]*model.Trigger, error) {
	ids, err := t.client.SMembers(ctx, entityTriggersKey(entity, entityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list triggers for entity %s/%s: %w", entity, entityID, err)
	}
	return t.getAll(ctx, ids)
}

// getAll loads the ids it can; expired records still indexed are skipped.
func (t *Triggers) getAll(ctx context.Context, ids []string) ([]*model.Trigger, error) {
	triggers := make([]*model.Trigger, 0, len(ids))
	for _, id := range ids {
		tr, err := t.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, tr)
	}
	return triggers, nil
}

func (t *Triggers) exists(ctx context.Context, id string) error {
	n, err := t.client.Exists(ctx, triggerKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check trigger %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("trigger %s: %w", id, ErrNotFound)
	}
	return nil
}

func triggerFields(tr *model.Trigger) map[string]interface{} {
	return map[string]interface{}{
		"id":                      tr.ID,
		"name":                    tr.Name,
		"description":             tr.Description,
		"datasource":              tr.Datasource,
		"scope":                   tr.Scope,
		"scope_id":                tr.ScopeID,
		"entity":                  tr.Entity,
		"entity_id":               tr.EntityID,
		"sport":                   tr.Sport,
		"disabled":                strconv.FormatBool(tr.Disabled),
		"disabled_entity":         strconv.FormatBool(tr.DisabledEntity),
		"use_limits":              strconv.FormatBool(tr.UseLimits),
		"use_condition_threshold": strconv.FormatBool(tr.UseConditionThreshold),
		"threshold":               strconv.Itoa(tr.Threshold),
		"activated":               strconv.FormatBool(tr.Activated),
		"next":                    strconv.FormatBool(tr.Next),
	}
}

func parseTrigger(fields map[string]string) (*model.Trigger, error) {
	tr := &model.Trigger{
		ID:          fields["id"],
		Name:        fields["name"],
		Description: fields["description"],
		Datasource:  fields["datasource"],
		Scope:       fields["scope"],
		ScopeID:     fields["scope_id"],
		Entity:      fields["entity"],
		EntityID:    fields["entity_id"],
		Sport:       fields["sport"],
	}
	var err error
	if tr.Disabled, err = parseBoolField(fields, "disabled"); err != nil {
		return nil, err
	}
	if tr.DisabledEntity, err = parseBoolField(fields, "disabled_entity"); err != nil {
		return nil, err
	}
	if tr.UseLimits, err = parseBoolField(fields, "use_limits"); err != nil {
		return nil, err
	}
	if tr.UseConditionThreshold, err = parseBoolField(fields, "use_condition_threshold"); err != nil {
		return nil, err
	}
	if tr.Activated, err = parseBoolField(fields, "activated"); err != nil {
		return nil, err
	}
	if tr.Next, err = parseBoolField(fields, "next"); err != nil {
		return nil, err
	}
	if raw := fields["threshold"]; raw != "" {
		tr.Threshold, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse trigger field threshold: %w", err)
		}
	}
	return tr, nil
}

func parseBoolField(fields map[string]string, name string) (bool, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse trigger field %s: %w", name, err)
	}
	return value, nil
}
