package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Subscriptions is the subscription collection: primary hash by id,
// membership sets by trigger and by entity, and a reasons-set per
// subscription backing exactly-once notification.
type Subscriptions struct {
	client *redis.Client
}

// Create persists the subscription and its index memberships atomically.
func (s *Subscriptions) Create(ctx context.Context, sub *model.Subscription) error {
	fields, err := subscriptionFields(sub)
	if err != nil {
		return fmt.Errorf("encode subscription %s: %w", sub.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, subscriptionKey(sub.ID), fields)
		pipe.SAdd(ctx, triggerSubscriptionsKey(sub.TriggerID), sub.ID)
		if sub.Entity != "" {
			pipe.SAdd(ctx, entitySubscriptionsKey(sub.Entity, sub.EntityID), sub.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create subscription %s: %w", sub.ID, err)
	}
	return nil
}

// Get loads one subscription.
func (s *Subscriptions) Get(ctx context.Context, id string) (*model.Subscription, error) {
	fields, err := s.client.HGetAll(ctx, subscriptionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return parseSubscription(fields)
}

// Delete removes the subscription, its reasons-set and index memberships.
func (s *Subscriptions) Delete(ctx context.Context, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, subscriptionKey(id), subscriptionReasonsKey(id))
		pipe.SRem(ctx, triggerSubscriptionsKey(sub.TriggerID), id)
		if sub.Entity != "" {
			pipe.SRem(ctx, entitySubscriptionsKey(sub.Entity, sub.EntityID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	return nil
}

// ListByTrigger returns the trigger's subscriptions.
func (s *Subscriptions) ListByTrigger(ctx context.Context, triggerID string) ([]*model.Subscription, error) {
	ids, err := s.client.SMembers(ctx, triggerSubscriptionsKey(triggerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for trigger %s: %w", triggerID, err)
	}
	return s.getAll(ctx, ids)
}

// ListByEntity returns the entity's subscriptions.
func (s *Subscriptions) ListByEntity(ctx context.Context, entity, entityID string) ([]*model.Subscription, error) {
	ids, err := s.client.SMembers(ctx, entitySubscriptionsKey(entity, entityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for entity %s/%s: %w", entity, entityID, err)
	}
	return s.getAll(ctx, ids)
}

// AddReason claims a notification reason for the subscription. Returns false
// when the subscription was already notified for it.
func (s *Subscriptions) AddReason(ctx context.Context, id, reason string) (bool, error) {
	added, err := s.client.SAdd(ctx, subscriptionReasonsKey(id), reason).Result()
	if err != nil {
		return false, fmt.Errorf("add reason %s to subscription %s: %w", reason, id, err)
	}
	return added == 1, nil
}

// DeleteByTrigger removes all subscriptions of a retired trigger.
func (s *Subscriptions) DeleteByTrigger(ctx context.Context, triggerID string) error {
	subs, err := s.ListByTrigger(ctx, triggerID)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sub := range subs {
			pipe.Del(ctx, subscriptionKey(sub.ID), subscriptionReasonsKey(sub.ID))
			if sub.Entity != "" {
				pipe.SRem(ctx, entitySubscriptionsKey(sub.Entity, sub.EntityID), sub.ID)
			}
		}
		pipe.Del(ctx, triggerSubscriptionsKey(triggerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete subscriptions of trigger %s: %w", triggerID, err)
	}
	return nil
}

func (s *Subscriptions) getAll(ctx context.Context, ids []string) ([]*model.Subscription, error) {
	subs := make([]*model.Subscription, 0, len(ids))
	for _, id := range ids {
		sub, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func subscriptionFields(sub *model.Subscription) (map[string]interface{}, error) {
	options, err := json.Marshal(sub.Options)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":         sub.ID,
		"trigger_id": sub.TriggerID,
		"route":      sub.Route,
		"entity":     sub.Entity,
		"entity_id":  sub.EntityID,
		"payload":    string(sub.Payload),
		"options":    string(options),
	}, nil
}

func parseSubscription(fields map[string]string) (*model.Subscription, error) {
	sub := &model.Subscription{
		ID:        fields["id"],
		TriggerID: fields["trigger_id"],
		Route:     fields["route"],
		Entity:    fields["entity"],
		EntityID:  fields["entity_id"],
	}
	if raw := fields["payload"]; raw != "" {
		sub.Payload = json.RawMessage(raw)
	}
	if raw := fields["options"]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &sub.Options); err != nil {
			return nil, fmt.Errorf("parse subscription field options: %w", err)
		}
	}
	return sub, nil
}
