package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Conditions is the condition collection: primary hash by id, membership set
// per trigger, a sorted set per event URI mapping to listening trigger ids,
// and a per-condition event log keyed by snapshot id.
type Conditions struct {
	client *redis.Client
}

// Create persists the condition, registers it with its trigger and adds the
// trigger to every URI index the condition depends on, all in one atomic
// batch. The URI score is the subscription time, so range queries see
// triggers in registration order.
func (c *Conditions) Create(ctx context.Context, cond *model.Condition) error {
	fields, err := conditionFields(cond)
	if err != nil {
		return fmt.Errorf("encode condition %s: %w", cond.ID, err)
	}
	score := float64(time.Now().UnixMilli())
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, conditionKey(cond.ID), fields)
		pipe.SAdd(ctx, triggerConditionsKey(cond.TriggerID), cond.ID)
		for _, uri := range cond.URIs {
			pipe.ZAdd(ctx, uriTriggersKey(uri), redis.Z{Score: score, Member: cond.TriggerID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create condition %s: %w", cond.ID, err)
	}
	return nil
}

// Get loads one condition.
func (c *Conditions) Get(ctx context.Context, id string) (*model.Condition, error) {
	fields, err := c.client.HGetAll(ctx, conditionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get condition %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("condition %s: %w", id, ErrNotFound)
	}
	return parseCondition(fields)
}

// ListByTrigger returns the trigger's conditions sorted by chain order.
func (c *Conditions) ListByTrigger(ctx context.Context, triggerID string) ([]*model.Condition, error) {
	ids, err := c.client.SMembers(ctx, triggerConditionsKey(triggerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list conditions for trigger %s: %w", triggerID, err)
	}
	conds := make([]*model.Condition, 0, len(ids))
	for _, id := range ids {
		cond, err := c.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	sort.Slice(conds, func(i, j int) bool { return conds[i].ChainOrder < conds[j].ChainOrder })
	return conds, nil
}

// SetActivated flips one condition's activated flag.
func (c *Conditions) SetActivated(ctx context.Context, id string, activated bool) error {
	err := c.client.HSet(ctx, conditionKey(id), "activated", strconv.FormatBool(activated)).Err()
	if err != nil {
		return fmt.Errorf("set activated on condition %s: %w", id, err)
	}
	return nil
}

// ResetActivated re-arms every condition of the trigger in one batch.
func (c *Conditions) ResetActivated(ctx context.Context, triggerID string) error {
	ids, err := c.client.SMembers(ctx, triggerConditionsKey(triggerID)).Result()
	if err != nil {
		return fmt.Errorf("list conditions for trigger %s: %w", triggerID, err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HSet(ctx, conditionKey(id), "activated", "false")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset conditions for trigger %s: %w", triggerID, err)
	}
	return nil
}

// Evaluated reports whether the snapshot's outcome is already in the
// condition's log, so a duplicate delivery is never scored twice. Checking
// without writing is safe: each queue has one consumer and jobs for one
// trigger land on one partition.
func (c *Conditions) Evaluated(ctx context.Context, id, snapshotID string) (bool, error) {
	seen, err := c.client.HExists(ctx, conditionLogKey(id), snapshotID).Result()
	if err != nil {
		return false, fmt.Errorf("check log of condition %s for %s: %w", id, snapshotID, err)
	}
	return seen, nil
}

// RecordEvaluation applies one scoring outcome: the condition's activated
// flag when it fired, and the log entry, in one atomic batch. A job that
// fails before this write leaves no log entry, so the redelivery scores the
// snapshot again instead of losing it.
func (c *Conditions) RecordEvaluation(ctx context.Context, id, snapshotID string, activated bool) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if activated {
			pipe.HSet(ctx, conditionKey(id), "activated", "true")
		}
		pipe.HSet(ctx, conditionLogKey(id), snapshotID, evaluationLogEntry(activated))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record evaluation of %s for condition %s: %w", snapshotID, id, err)
	}
	return nil
}

// EvaluationLog returns the condition's audit trail keyed by snapshot id.
func (c *Conditions) EvaluationLog(ctx context.Context, id string) (map[string]string, error) {
	log, err := c.client.HGetAll(ctx, conditionLogKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read log of condition %s: %w", id, err)
	}
	return log, nil
}

// TriggersForURIs resolves event URIs to the distinct triggers listening to
// any of them, in registration order per URI.
func (c *Conditions) TriggersForURIs(ctx context.Context, uris []string) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, uri := range uris {
		members, err := c.client.ZRange(ctx, uriTriggersKey(uri), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("resolve uri %s: %w", uri, err)
		}
		for _, id := range members {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// URIHasTriggers reports whether any of the URIs has at least one listener.
func (c *Conditions) URIHasTriggers(ctx context.Context, uris []string) (bool, error) {
	for _, uri := range uris {
		n, err := c.client.ZCard(ctx, uriTriggersKey(uri)).Result()
		if err != nil {
			return false, fmt.Errorf("count listeners of uri %s: %w", uri, err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// RemoveTriggerFromURIs drops the trigger from the given URI indexes so
// future facts can no longer match it.
func (c *Conditions) RemoveTriggerFromURIs(ctx context.Context, triggerID string, uris []string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, uri := range uris {
			pipe.ZRem(ctx, uriTriggersKey(uri), triggerID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove trigger %s from uri indexes: %w", triggerID, err)
	}
	return nil
}

// DeleteByTrigger removes the trigger's conditions, their logs, their URI
// index entries and the membership set in one batch.
func (c *Conditions) DeleteByTrigger(ctx context.Context, triggerID string) error {
	conds, err := c.ListByTrigger(ctx, triggerID)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, cond := range conds {
			pipe.Del(ctx, conditionKey(cond.ID), conditionLogKey(cond.ID))
			for _, uri := range cond.URIs {
				pipe.ZRem(ctx, uriTriggersKey(uri), triggerID)
			}
		}
		pipe.Del(ctx, triggerConditionsKey(triggerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete conditions of trigger %s: %w", triggerID, err)
	}
	return nil
}

func evaluationLogEntry(activated bool) string {
	entry, _ := json.Marshal(map[string]interface{}{
		"activated": activated,
		"timestamp": time.Now().UnixMilli(),
	})
	return string(entry)
}

func conditionFields(cond *model.Condition) (map[string]interface{}, error) {
	targets, err := json.Marshal(cond.Targets)
	if err != nil {
		return nil, err
	}
	uris, err := json.Marshal(cond.URIs)
	if err != nil {
		return nil, err
	}
	options, err := json.Marshal(cond.Options)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":              cond.ID,
		"trigger_id":      cond.TriggerID,
		"event":           cond.Event,
		"compare":         cond.Compare,
		"targets":         string(targets),
		"type":            cond.Type,
		"activated":       strconv.FormatBool(cond.Activated),
		"chain_operation": cond.ChainOperation,
		"chain_order":     strconv.Itoa(cond.ChainOrder),
		"uris":            string(uris),
		"options":         string(options),
	}, nil
}

func parseCondition(fields map[string]string) (*model.Condition, error) {
	cond := &model.Condition{
		ID:             fields["id"],
		TriggerID:      fields["trigger_id"],
		Event:          fields["event"],
		Compare:        fields["compare"],
		Type:           fields["type"],
		ChainOperation: fields["chain_operation"],
	}
	var err error
	if raw := fields["activated"]; raw != "" {
		if cond.Activated, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("parse condition field activated: %w", err)
		}
	}
	if raw := fields["chain_order"]; raw != "" {
		if cond.ChainOrder, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("parse condition field chain_order: %w", err)
		}
	}
	if raw := fields["targets"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cond.Targets); err != nil {
			return nil, fmt.Errorf("parse condition field targets: %w", err)
		}
	}
	if raw := fields["uris"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cond.URIs); err != nil {
			return nil, fmt.Errorf("parse condition field uris: %w", err)
		}
	}
	if raw := fields["options"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cond.Options); err != nil {
			return nil, fmt.Errorf("parse condition field options: %w", err)
		}
	}
	return cond, nil
}
