package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kristobalus/sport-triggers-sub000/internal/events"
	"github.com/kristobalus/sport-triggers-sub000/internal/metrics"
	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Triggering is the engine surface the pipeline drives.
type Triggering interface {
	HasTriggers(ctx context.Context, snap *model.ScopeSnapshot) (bool, error)
	StoreScopeSnapshot(ctx context.Context, snap *model.ScopeSnapshot) (bool, error)
	MatchingTriggers(ctx context.Context, snap *model.ScopeSnapshot) ([]string, error)
	EvaluateTrigger(ctx context.Context, snap *model.ScopeSnapshot, triggerID string) (bool, error)
	Notify(ctx context.Context, triggerID, reason string) error
	Next(ctx context.Context, triggerID string) (bool, error)
	CleanupRetired(ctx context.Context, triggerID string) error
}

// publisher is the producer surface stages publish through.
type publisher interface {
	Publish(ctx context.Context, key string, job interface{}) error
}

// StoreStage persists incoming snapshots and fans out one evaluate job per
// interested trigger.
type StoreStage struct {
	engine   Triggering
	evaluate publisher
	metrics  *metrics.Collector
}

// NewStoreStage creates the store stage.
func NewStoreStage(engine Triggering, evaluate publisher, collector *metrics.Collector) *StoreStage {
	return &StoreStage{engine: engine, evaluate: evaluate, metrics: collector}
}

// Handle processes one store job.
func (s *StoreStage) Handle(ctx context.Context, payload []byte) error {
	var job events.StoreJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("unmarshal store job: %w", err)
	}
	snap := job.Snapshot
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("invalid store job: missing snapshot")
	}

	interested, err := s.engine.HasTriggers(ctx, snap)
	if err != nil {
		return err
	}
	if !interested {
		slog.Debug("No triggers listen to snapshot events, dropping",
			"snapshot_id", snap.ID,
			"scope_id", snap.ScopeID,
		)
		return nil
	}

	stored, err := s.engine.StoreScopeSnapshot(ctx, snap)
	if err != nil {
		return err
	}
	if !stored {
		slog.Debug("Duplicate snapshot delivery, already processed", "snapshot_id", snap.ID)
		return nil
	}
	s.metrics.IncSnapshotsStored()

	triggerIDs, err := s.engine.MatchingTriggers(ctx, snap)
	if err != nil {
		return err
	}
	for _, triggerID := range triggerIDs {
		evalJob := &events.EvaluateJob{TriggerID: triggerID, Snapshot: snap}
		if err := s.evaluate.Publish(ctx, triggerID, evalJob); err != nil {
			return err
		}
	}

	slog.Info("Snapshot stored and fanned out",
		"snapshot_id", snap.ID,
		"scope_id", snap.ScopeID,
		"triggers", len(triggerIDs),
	)
	return nil
}

// EvaluateStage runs one snapshot through one trigger and enqueues a notify
// job on activation.
type EvaluateStage struct {
	engine  Triggering
	notify  publisher
	metrics *metrics.Collector
}

// NewEvaluateStage creates the evaluate stage.
func NewEvaluateStage(engine Triggering, notify publisher, collector *metrics.Collector) *EvaluateStage {
	return &EvaluateStage{engine: engine, notify: notify, metrics: collector}
}

// Handle processes one evaluate job.
func (s *EvaluateStage) Handle(ctx context.Context, payload []byte) error {
	var job events.EvaluateJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("unmarshal evaluate job: %w", err)
	}
	if job.TriggerID == "" || job.Snapshot == nil {
		return fmt.Errorf("invalid evaluate job: missing trigger or snapshot")
	}

	activated, err := s.engine.EvaluateTrigger(ctx, job.Snapshot, job.TriggerID)
	if err != nil {
		return err
	}
	s.metrics.IncTriggersEvaluated()
	if !activated {
		return nil
	}
	s.metrics.IncTriggersActivated()

	notifyJob := &events.NotifyJob{TriggerID: job.TriggerID, Reason: job.Snapshot.ID}
	if err := s.notify.Publish(ctx, job.TriggerID, notifyJob); err != nil {
		return err
	}
	return nil
}

// NotifyStage dispatches notifications and cleans up retired triggers.
type NotifyStage struct {
	engine  Triggering
	metrics *metrics.Collector
}

// NewNotifyStage creates the notify stage.
func NewNotifyStage(engine Triggering, collector *metrics.Collector) *NotifyStage {
	return &NotifyStage{engine: engine, metrics: collector}
}

// Handle processes one notify job. Record deletion for a retired trigger
// happens here, once notification has completed.
func (s *NotifyStage) Handle(ctx context.Context, payload []byte) error {
	var job events.NotifyJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("unmarshal notify job: %w", err)
	}
	if job.TriggerID == "" || job.Reason == "" {
		return fmt.Errorf("invalid notify job: missing trigger or reason")
	}

	if err := s.engine.Notify(ctx, job.TriggerID, job.Reason); err != nil {
		return err
	}
	s.metrics.IncNotificationsSent()

	next, err := s.engine.Next(ctx, job.TriggerID)
	if err != nil {
		return err
	}
	if !next {
		if err := s.engine.CleanupRetired(ctx, job.TriggerID); err != nil {
			return err
		}
	}
	return nil
}
