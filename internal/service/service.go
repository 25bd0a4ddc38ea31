// Package service exposes the trigger and subscription operations consumed by
// the routing layer: CRUD, enable/disable and limit configuration. Validation
// failures reject the request before anything is persisted.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kristobalus/sport-triggers-sub000/internal/catalog"
	"github.com/kristobalus/sport-triggers-sub000/internal/database"
	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Service implements the operations over the store collections.
type Service struct {
	db  *database.DB
	cat catalog.Catalog
}

// New creates a service bound to the store and the event metadata catalog.
func New(db *database.DB, cat catalog.Catalog) *Service {
	return &Service{db: db, cat: cat}
}

// CreateTriggerRequest carries a trigger and its conditions. Conditions may
// leave TriggerID empty; a mismatching TriggerID is an ownership conflict.
type CreateTriggerRequest struct {
	Trigger    *model.Trigger
	Conditions []*model.Condition
}

// CreateTrigger validates the request against the catalog, persists the
// trigger and registers every condition in the URI indexes. If any condition
// fails to persist, the half-created trigger is rolled back before the error
// returns.
func (s *Service) CreateTrigger(ctx context.Context, req *CreateTriggerRequest) (*model.Trigger, error) {
	tr := req.Trigger
	if tr == nil {
		return nil, fmt.Errorf("validation: trigger is required")
	}
	if tr.Name == "" {
		return nil, fmt.Errorf("validation: trigger name is required")
	}
	if tr.Datasource == "" || tr.Scope == "" || tr.ScopeID == "" {
		return nil, fmt.Errorf("validation: trigger scope (datasource, scope, scope_id) is required")
	}
	if len(req.Conditions) == 0 {
		return nil, fmt.Errorf("validation: trigger needs at least one condition")
	}
	if tr.UseConditionThreshold && tr.Threshold <= 0 {
		return nil, fmt.Errorf("validation: threshold must be positive when the condition threshold is enabled")
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}

	for i, cond := range req.Conditions {
		if cond.TriggerID != "" && cond.TriggerID != tr.ID {
			return nil, fmt.Errorf("condition %d claims trigger %s, not %s", i, cond.TriggerID, tr.ID)
		}
		if err := catalog.ValidateCondition(s.cat, tr.Sport, cond); err != nil {
			return nil, fmt.Errorf("validation: condition %d: %w", i, err)
		}
	}

	// A freshly created trigger is armed and listening.
	tr.Activated = false
	tr.Next = true
	if err := s.db.Triggers.Create(ctx, tr); err != nil {
		return nil, err
	}

	for i, cond := range req.Conditions {
		if cond.ID == "" {
			cond.ID = uuid.NewString()
		}
		cond.TriggerID = tr.ID
		if cond.ChainOperation == "" {
			cond.ChainOperation = model.ChainAnd
		}
		if cond.ChainOrder == 0 {
			cond.ChainOrder = i
		}
		cond.Activated = false
		cond.URIs = cond.DeriveURIs(tr.Datasource, tr.Scope, tr.ScopeID)
		if err := s.db.Conditions.Create(ctx, cond); err != nil {
			s.rollbackTrigger(ctx, tr)
			return nil, fmt.Errorf("create condition %d of trigger %s: %w", i, tr.ID, err)
		}
	}

	slog.Info("Trigger created",
		"trigger_id", tr.ID,
		"scope", tr.Scope,
		"scope_id", tr.ScopeID,
		"conditions", len(req.Conditions),
	)
	return tr, nil
}

// rollbackTrigger undoes a partial creation so a failed request leaves
// nothing behind.
func (s *Service) rollbackTrigger(ctx context.Context, tr *model.Trigger) {
	if err := s.db.Conditions.DeleteByTrigger(ctx, tr.ID); err != nil {
		slog.Error("Rollback of trigger conditions failed", "trigger_id", tr.ID, "error", err)
	}
	if err := s.db.Triggers.Delete(ctx, tr); err != nil {
		slog.Error("Rollback of trigger failed", "trigger_id", tr.ID, "error", err)
	}
}

// GetTrigger loads one trigger.
func (s *Service) GetTrigger(ctx context.Context, id string) (*model.Trigger, error) {
	return s.db.Triggers.Get(ctx, id)
}

// GetTriggerListByEntity lists the triggers owned by one entity.
func (s *Service) GetTriggerListByEntity(ctx context.Context, entity, entityID string) ([]*model.Trigger, error) {
	return s.db.Triggers.ListByEntity(ctx, entity, entityID)
}

// GetTriggerListByScope lists the triggers bound to one scope.
func (s *Service) GetTriggerListByScope(ctx context.Context, datasource, scope, scopeID string) ([]*model.Trigger, error) {
	return s.db.Triggers.ListByScope(ctx, datasource, scope, scopeID)
}

// UpdateTrigger rewrites a stored trigger's fields. Scope and entity are
// immutable: the membership sets and the conditions' URI registrations derive
// from them, so changing either would leave the indexes pointing at the old
// coordinates.
func (s *Service) UpdateTrigger(ctx context.Context, tr *model.Trigger) error {
	current, err := s.db.Triggers.Get(ctx, tr.ID)
	if err != nil {
		return err
	}
	if tr.Datasource != current.Datasource || tr.Scope != current.Scope || tr.ScopeID != current.ScopeID {
		return fmt.Errorf("validation: trigger scope (datasource, scope, scope_id) is immutable")
	}
	if tr.Entity != current.Entity || tr.EntityID != current.EntityID {
		return fmt.Errorf("validation: trigger entity is immutable")
	}
	return s.db.Triggers.Update(ctx, tr)
}

// DeleteTrigger removes the trigger with its conditions, subscriptions and
// limit counters.
func (s *Service) DeleteTrigger(ctx context.Context, id string) error {
	tr, err := s.db.Triggers.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.Conditions.DeleteByTrigger(ctx, id); err != nil {
		return err
	}
	if err := s.db.Subscriptions.DeleteByTrigger(ctx, id); err != nil {
		return err
	}
	if err := s.db.TriggerLimits.Clear(ctx, id); err != nil {
		return err
	}
	if err := s.db.Triggers.Delete(ctx, tr); err != nil {
		return err
	}
	slog.Info("Trigger deleted", "trigger_id", id)
	return nil
}

// DisableTrigger makes the trigger inert without deleting any state.
func (s *Service) DisableTrigger(ctx context.Context, id string) error {
	return s.db.Triggers.SetDisabled(ctx, id, true)
}

// EnableTrigger restores a disabled trigger.
func (s *Service) EnableTrigger(ctx context.Context, id string) error {
	return s.db.Triggers.SetDisabled(ctx, id, false)
}

// DisableEntity suppresses every trigger owned by the entity.
func (s *Service) DisableEntity(ctx context.Context, entity, entityID string) error {
	return s.db.Triggers.SetEntityDisabled(ctx, entity, entityID, true)
}

// EnableEntity restores the entity's triggers.
func (s *Service) EnableEntity(ctx context.Context, entity, entityID string) error {
	return s.db.Triggers.SetEntityDisabled(ctx, entity, entityID, false)
}

// SubscribeTrigger registers a notification subscription for an existing
// trigger.
func (s *Service) SubscribeTrigger(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	if sub.TriggerID == "" {
		return nil, fmt.Errorf("validation: subscription trigger_id is required")
	}
	if sub.Route == "" {
		return nil, fmt.Errorf("validation: subscription route is required")
	}
	if _, err := s.db.Triggers.Get(ctx, sub.TriggerID); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := s.db.Subscriptions.Create(ctx, sub); err != nil {
		return nil, err
	}
	slog.Info("Subscription created",
		"subscription_id", sub.ID,
		"trigger_id", sub.TriggerID,
		"route", sub.Route,
	)
	return sub, nil
}

// CancelSubscription removes one subscription.
func (s *Service) CancelSubscription(ctx context.Context, id string) error {
	return s.db.Subscriptions.Delete(ctx, id)
}

// GetSubscriptionListByTrigger lists a trigger's subscriptions.
func (s *Service) GetSubscriptionListByTrigger(ctx context.Context, triggerID string) ([]*model.Subscription, error) {
	return s.db.Subscriptions.ListByTrigger(ctx, triggerID)
}

// GetSubscriptionListByEntity lists an entity's subscriptions.
func (s *Service) GetSubscriptionListByEntity(ctx context.Context, entity, entityID string) ([]*model.Subscription, error) {
	return s.db.Subscriptions.ListByEntity(ctx, entity, entityID)
}

// SetTriggerLimits configures the trigger-level caps.
func (s *Service) SetTriggerLimits(ctx context.Context, triggerID string, caps map[string]int64) error {
	if _, err := s.db.Triggers.Get(ctx, triggerID); err != nil {
		return err
	}
	return s.db.TriggerLimits.SetLimits(ctx, triggerID, caps)
}

// SetEntityLimits configures the entity-level caps.
func (s *Service) SetEntityLimits(ctx context.Context, entity, entityID string, caps map[string]int64) error {
	return s.db.EntityLimits.SetLimits(ctx, database.EntityOwner(entity, entityID), caps)
}
