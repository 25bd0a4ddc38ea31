// Package engine implements the trigger state machine: a trigger is armed,
// evaluates one snapshot at a time, activates when its conditions agree, then
// either re-arms or retires once a finite limit is exhausted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kristobalus/sport-triggers-sub000/internal/database"
	"github.com/kristobalus/sport-triggers-sub000/internal/evaluator"
	"github.com/kristobalus/sport-triggers-sub000/internal/events"
	"github.com/kristobalus/sport-triggers-sub000/internal/limits"
	"github.com/kristobalus/sport-triggers-sub000/internal/model"
	"github.com/kristobalus/sport-triggers-sub000/internal/notifier"
)

// Engine orchestrates evaluation and notification against the shared store.
// Engines hold no state of their own; any number of instances may run against
// the same store as long as each queue keeps one active consumer.
type Engine struct {
	db         *database.DB
	dispatcher notifier.Dispatcher
	retiredTTL time.Duration
}

// New creates an engine. retiredTTL bounds how long a retired trigger record
// stays readable before the store expires it.
func New(db *database.DB, dispatcher notifier.Dispatcher, retiredTTL time.Duration) *Engine {
	return &Engine{
		db:         db,
		dispatcher: dispatcher,
		retiredTTL: retiredTTL,
	}
}

// HasTriggers reports whether any trigger listens to an event present in the
// snapshot. Used to avoid persisting snapshots nobody cares about.
func (e *Engine) HasTriggers(ctx context.Context, snap *model.ScopeSnapshot) (bool, error) {
	return e.db.Conditions.URIHasTriggers(ctx, snap.URIs())
}

// StoreScopeSnapshot persists the snapshot. Returns false for a duplicate
// delivery, which the caller must treat as already processed.
func (e *Engine) StoreScopeSnapshot(ctx context.Context, snap *model.ScopeSnapshot) (bool, error) {
	return e.db.Snapshots.Store(ctx, snap)
}

// MatchingTriggers resolves the snapshot's event URIs to the distinct
// triggers listening to any of them.
func (e *Engine) MatchingTriggers(ctx context.Context, snap *model.ScopeSnapshot) ([]string, error) {
	return e.db.Conditions.TriggersForURIs(ctx, snap.URIs())
}

// Next returns the trigger's continuation flag. A missing trigger reads as
// true: there is nothing left to retire.
func (e *Engine) Next(ctx context.Context, triggerID string) (bool, error) {
	tr, err := e.db.Triggers.Get(ctx, triggerID)
	if errors.Is(err, database.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return tr.Next, nil
}

// EvaluateTrigger runs one snapshot through one trigger and reports whether
// the trigger activated. Disabled or missing triggers are inert. The whole
// evaluation is skipped when a configured cap is already met. Duplicate
// deliveries of one snapshot never score a condition twice.
func (e *Engine) EvaluateTrigger(ctx context.Context, snap *model.ScopeSnapshot, triggerID string) (bool, error) {
	tr, err := e.db.Triggers.Get(ctx, triggerID)
	if errors.Is(err, database.ErrNotFound) {
		// Deleted or retired mid-flight.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if tr.Disabled || tr.DisabledEntity {
		slog.Debug("Trigger disabled, skipping evaluation",
			"trigger_id", triggerID,
			"disabled", tr.Disabled,
			"disabled_entity", tr.DisabledEntity,
		)
		return false, nil
	}

	reached, err := e.capReached(ctx, tr, snap, false)
	if err != nil {
		return false, err
	}
	if reached {
		slog.Debug("Limit cap met, skipping evaluation",
			"trigger_id", triggerID,
			"snapshot_id", snap.ID,
		)
		return false, nil
	}

	conds, err := e.db.Conditions.ListByTrigger(ctx, triggerID)
	if err != nil {
		return false, err
	}
	if len(conds) == 0 {
		return false, nil
	}

	if err := e.scoreConditions(ctx, snap, conds); err != nil {
		return false, err
	}

	if !activated(tr, conds) {
		return false, nil
	}

	if err := e.scoreCounters(ctx, tr, snap); err != nil {
		return false, err
	}
	// Re-arm for the next cycle.
	if err := e.db.Conditions.ResetActivated(ctx, triggerID); err != nil {
		return false, err
	}

	next, err := e.continuation(ctx, tr, snap)
	if err != nil {
		return false, err
	}
	if err := e.db.Triggers.SetActivatedNext(ctx, triggerID, true, next); err != nil {
		return false, err
	}
	if !next {
		// Sole retirement path: future facts can no longer match the trigger.
		if err := e.db.Conditions.RemoveTriggerFromURIs(ctx, triggerID, conditionURIs(conds)); err != nil {
			return false, err
		}
	}

	slog.Info("Trigger activated",
		"trigger_id", triggerID,
		"snapshot_id", snap.ID,
		"next", next,
	)
	return true, nil
}

// scoreConditions evaluates every not-yet-activated condition whose full URI
// set the snapshot covers. The condition's event log guards against scoring
// one snapshot twice.
func (e *Engine) scoreConditions(ctx context.Context, snap *model.ScopeSnapshot, conds []*model.Condition) error {
	snapURIs := snap.URISet()
	for _, cond := range conds {
		if cond.Activated {
			continue
		}
		if !coversAll(snapURIs, cond.URIs) {
			continue
		}
		seen, err := e.db.Conditions.Evaluated(ctx, cond.ID, snap.ID)
		if err != nil {
			return err
		}
		if seen {
			slog.Debug("Snapshot already scored against condition",
				"condition_id", cond.ID,
				"snapshot_id", snap.ID,
			)
			continue
		}
		if cond.Event != "" && !model.KnownType(cond.Type) {
			slog.Error("Unknown condition type, dropping event for condition",
				"condition_id", cond.ID,
				"type", cond.Type,
				"snapshot_id", snap.ID,
			)
			continue
		}
		ok, err := evaluator.Evaluate(ctx, cond, snap, e.db.Snapshots)
		if err != nil {
			slog.Error("Condition evaluation failed, dropping event for condition",
				"condition_id", cond.ID,
				"snapshot_id", snap.ID,
				"error", err,
			)
			continue
		}
		// Flag and log land in one batch: a failure before it leaves no log
		// entry, so the redelivered job scores the snapshot again instead of
		// skipping a qualifying fact whose outcome was never applied.
		if err := e.db.Conditions.RecordEvaluation(ctx, cond.ID, snap.ID, ok); err != nil {
			return err
		}
		if ok {
			cond.Activated = true
		}
	}
	return nil
}

// Notify dispatches the activation to every subscription of the trigger,
// at most once per distinct reason.
func (e *Engine) Notify(ctx context.Context, triggerID, reason string) error {
	tr, err := e.db.Triggers.Get(ctx, triggerID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	subs, err := e.db.Subscriptions.ListByTrigger(ctx, triggerID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	caps, err := e.db.TriggerLimits.GetLimits(ctx, triggerID)
	if err != nil {
		slog.Warn("Limit read failed, notifying without limits", "trigger_id", triggerID, "error", err)
		caps = nil
	}
	counts, err := e.db.TriggerLimits.GetCounts(ctx, triggerID)
	if err != nil {
		slog.Warn("Count read failed, notifying without counts", "trigger_id", triggerID, "error", err)
		counts = nil
	}

	for _, sub := range subs {
		fresh, err := e.db.Subscriptions.AddReason(ctx, sub.ID, reason)
		if err != nil {
			return err
		}
		if !fresh {
			slog.Debug("Subscription already notified for reason",
				"subscription_id", sub.ID,
				"reason", reason,
			)
			continue
		}
		notification := &events.Notification{
			Payload:   sub.Payload,
			Limits:    caps,
			Counts:    counts,
			Next:      tr.Next,
			TriggerID: tr.ID,
			Entity:    tr.Entity,
			EntityID:  tr.EntityID,
			Scope:     tr.Scope,
			ScopeID:   tr.ScopeID,
		}
		if err := e.dispatcher.Dispatch(ctx, sub.Route, notification); err != nil {
			return fmt.Errorf("notify subscription %s: %w", sub.ID, err)
		}
		slog.Info("Notification dispatched",
			"subscription_id", sub.ID,
			"trigger_id", triggerID,
			"reason", reason,
		)
	}
	return nil
}

// CleanupRetired deletes a retired trigger's conditions and subscriptions and
// lets the trigger record expire. Runs after notification completes.
func (e *Engine) CleanupRetired(ctx context.Context, triggerID string) error {
	if err := e.db.Conditions.DeleteByTrigger(ctx, triggerID); err != nil {
		return err
	}
	if err := e.db.Subscriptions.DeleteByTrigger(ctx, triggerID); err != nil {
		return err
	}
	if err := e.db.Triggers.ExpireRetired(ctx, triggerID, e.retiredTTL); err != nil {
		return err
	}
	slog.Info("Trigger retired", "trigger_id", triggerID)
	return nil
}

// capSource pairs a limit collection with the owner key inside it.
type capSource struct {
	store *database.Limits
	owner string
}

// gateSources lists the limit collections that gate the trigger.
func (e *Engine) gateSources(tr *model.Trigger) []capSource {
	var sources []capSource
	if tr.UseLimits {
		sources = append(sources, capSource{e.db.TriggerLimits, tr.ID})
	}
	if tr.Entity != "" {
		sources = append(sources, capSource{e.db.EntityLimits, database.EntityOwner(tr.Entity, tr.EntityID)})
	}
	return sources
}

// counterSources lists the collections every activation is scored in. Counts
// are kept even for triggers without configured caps: notifications report
// them.
func (e *Engine) counterSources(tr *model.Trigger) []capSource {
	sources := []capSource{{e.db.TriggerLimits, tr.ID}}
	if tr.Entity != "" {
		sources = append(sources, capSource{e.db.EntityLimits, database.EntityOwner(tr.Entity, tr.EntityID)})
	}
	return sources
}

// capReached reports whether any configured cap is already met. Common limits
// gate regardless of event value; event limits gate only when the snapshot
// carries a value for their event. With finiteOnly, interval limits are
// ignored: windowed exhaustion suppresses but never retires.
func (e *Engine) capReached(ctx context.Context, tr *model.Trigger, snap *model.ScopeSnapshot, finiteOnly bool) (bool, error) {
	for _, src := range e.gateSources(tr) {
		caps, err := src.store.GetLimits(ctx, src.owner)
		if err != nil {
			return false, err
		}
		for label, cap := range caps {
			if cap <= 0 {
				continue
			}
			def := limits.Lookup(label)
			if finiteOnly && !def.Finite {
				continue
			}
			var value string
			if !def.Common {
				v, ok := snap.Options[label]
				if !ok {
					continue
				}
				value = v
			}
			count, err := src.store.GetCount(ctx, src.owner, label, value)
			if err != nil {
				// Never block evaluation on a failed count read.
				slog.Warn("Count read failed, assuming zero",
					"owner", src.owner,
					"label", label,
					"error", err,
				)
				count = 0
			}
			if count >= cap {
				return true, nil
			}
		}
	}
	return false, nil
}

// scoreCounters increments the common counters and one counter per
// (event, value) pair in the snapshot, on every counter collection.
func (e *Engine) scoreCounters(ctx context.Context, tr *model.Trigger, snap *model.ScopeSnapshot) error {
	for _, src := range e.counterSources(tr) {
		for _, def := range limits.Builtin() {
			if _, err := src.store.IncrCount(ctx, src.owner, snap.ID, def.Label, ""); err != nil {
				return err
			}
		}
		for event, value := range snap.Options {
			if _, err := src.store.IncrCount(ctx, src.owner, snap.ID, event, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// continuation recomputes the trigger's next flag after an activation: any
// exhausted finite cap retires the trigger.
func (e *Engine) continuation(ctx context.Context, tr *model.Trigger, snap *model.ScopeSnapshot) (bool, error) {
	reached, err := e.capReached(ctx, tr, snap, true)
	if err != nil {
		return false, err
	}
	return !reached, nil
}

// activated decides whether the trigger fires this cycle: condition count
// against the threshold when enabled, otherwise the chain of conditions
// folded in chain order.
func activated(tr *model.Trigger, conds []*model.Condition) bool {
	if tr.UseConditionThreshold {
		if tr.Threshold <= 0 {
			return false
		}
		n := 0
		for _, cond := range conds {
			if cond.Activated {
				n++
			}
		}
		return n >= tr.Threshold
	}
	return chainActivated(conds)
}

// chainActivated folds each condition's chain operation left to right.
// All-AND chains reduce to "every condition activated".
func chainActivated(conds []*model.Condition) bool {
	result := conds[0].Activated
	for _, cond := range conds[1:] {
		if cond.ChainOperation == model.ChainOr {
			result = result || cond.Activated
		} else {
			result = result && cond.Activated
		}
	}
	return result
}

// coversAll reports whether every URI is present in the snapshot's URI set.
func coversAll(snapURIs map[string]struct{}, uris []string) bool {
	for _, uri := range uris {
		if _, ok := snapURIs[uri]; !ok {
			return false
		}
	}
	return true
}

func conditionURIs(conds []*model.Condition) []string {
	seen := make(map[string]struct{})
	var uris []string
	for _, cond := range conds {
		for _, uri := range cond.URIs {
			if _, ok := seen[uri]; ok {
				continue
			}
			seen[uri] = struct{}{}
			uris = append(uris, uri)
		}
	}
	return uris
}
