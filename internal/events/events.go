// Package events defines the job payloads moving through the pipeline queues
// and the notification message published to subscription routes. Payload
// shapes are stable across retries: a retried job carries everything it needs.
package events

import (
	"encoding/json"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// StoreJob asks the store stage to persist a snapshot and fan it out.
type StoreJob struct {
	Snapshot *model.ScopeSnapshot `json:"snapshot"`
}

// EvaluateJob asks the evaluate stage to run one snapshot through one trigger.
type EvaluateJob struct {
	TriggerID string               `json:"trigger_id"`
	Snapshot  *model.ScopeSnapshot `json:"snapshot"`
}

// NotifyJob asks the notify stage to dispatch one activation. Reason is the
// snapshot id that caused the activation and keys the exactly-once guard.
type NotifyJob struct {
	TriggerID string `json:"trigger_id"`
	Reason    string `json:"reason"`
}

// Notification is the message published to a subscription's route when its
// trigger activates.
type Notification struct {
	Payload   json.RawMessage  `json:"payload,omitempty"`
	Limits    map[string]int64 `json:"limits,omitempty"`
	Counts    map[string]int64 `json:"counts,omitempty"`
	Next      bool             `json:"next"`
	TriggerID string           `json:"trigger_id"`
	Entity    string           `json:"entity,omitempty"`
	EntityID  string           `json:"entity_id,omitempty"`
	Scope     string           `json:"scope"`
	ScopeID   string           `json:"scope_id"`
}
