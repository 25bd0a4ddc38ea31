// Package model defines the core entities of the trigger engine: triggers,
// conditions, subscriptions and scope snapshots.
package model

import (
	"encoding/json"
	"strings"
)

// Comparators accepted by conditions and options.
const (
	CompareIn = "in"
	CompareEq = "eq"
	CompareGt = "gt"
	CompareLt = "lt"
	CompareGe = "ge"
	CompareLe = "le"
)

// Value types for comparisons.
const (
	TypeNumber = "number"
	TypeString = "string"
)

// Chain operations combining the conditions of one trigger.
const (
	ChainAnd = "and"
	ChainOr  = "or"
)

// Aggregate query kinds.
const (
	AggregateDistinctValues = "distinct_values"
	AggregateOccurrences    = "occurrences"
)

// KnownType reports whether t is a supported comparison value type.
func KnownType(t string) bool {
	return t == TypeNumber || t == TypeString
}

// Trigger is one rule instance bound to a game scope and optionally to a
// moderating entity. Next records whether the trigger keeps listening after
// its most recent activation.
type Trigger struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Description           string `json:"description,omitempty"`
	Datasource            string `json:"datasource"`
	Scope                 string `json:"scope"`
	ScopeID               string `json:"scope_id"`
	Entity                string `json:"entity,omitempty"`
	EntityID              string `json:"entity_id,omitempty"`
	Sport                 string `json:"sport"`
	Disabled              bool   `json:"disabled"`
	DisabledEntity        bool   `json:"disabled_entity"`
	UseLimits             bool   `json:"use_limits"`
	UseConditionThreshold bool   `json:"use_condition_threshold"`
	Threshold             int    `json:"threshold,omitempty"`
	Activated             bool   `json:"activated"`
	Next                  bool   `json:"next"`
}

// AggregateQuery describes a search-style aggregation evaluated against the
// stored snapshots of a scope instead of the raw fact value.
type AggregateQuery struct {
	// Kind selects the aggregation: distinct_values counts how many distinct
	// values an event has produced in the scope, occurrences counts how many
	// snapshots carried the event with its current value.
	Kind string `json:"kind"`
	// Event overrides the event the aggregation runs over; defaults to the
	// option's own event.
	Event string `json:"event,omitempty"`
}

// ConditionOption is a sub-predicate of a condition. All options of a
// condition must hold for the condition to activate.
type ConditionOption struct {
	Event     string          `json:"event"`
	Compare   string          `json:"compare"`
	Targets   []string        `json:"targets"`
	Type      string          `json:"type"`
	Aggregate *AggregateQuery `json:"aggregate,omitempty"`
	Parent    string          `json:"parent,omitempty"`
}

// Condition is a primary predicate (optional) plus a conjunction of options,
// owned by one trigger. URIs is derived at creation time: one entry per event
// the condition depends on.
type Condition struct {
	ID             string            `json:"id"`
	TriggerID      string            `json:"trigger_id"`
	Event          string            `json:"event,omitempty"`
	Compare        string            `json:"compare,omitempty"`
	Targets        []string          `json:"targets,omitempty"`
	Type           string            `json:"type,omitempty"`
	Activated      bool              `json:"activated"`
	ChainOperation string            `json:"chain_operation"`
	ChainOrder     int               `json:"chain_order"`
	URIs           []string          `json:"uris"`
	Options        []ConditionOption `json:"options,omitempty"`
}

// Events returns the event names the condition depends on, primary first,
// deduplicated in a stable order.
func (c *Condition) Events() []string {
	seen := make(map[string]struct{})
	var events []string
	add := func(event string) {
		if event == "" {
			return
		}
		if _, ok := seen[event]; ok {
			return
		}
		seen[event] = struct{}{}
		events = append(events, event)
	}
	add(c.Event)
	for i := range c.Options {
		add(c.Options[i].Event)
	}
	return events
}

// DeriveURIs computes the condition's URI set for the given scope. The result
// must fully appear in a snapshot before the condition is evaluated.
func (c *Condition) DeriveURIs(datasource, scope, scopeID string) []string {
	events := c.Events()
	uris := make([]string, 0, len(events))
	for _, event := range events {
		uris = append(uris, EventURI(datasource, scope, scopeID, event))
	}
	return uris
}

// Subscription is a notification registration for one trigger. Payload is an
// opaque document echoed back in the notification.
type Subscription struct {
	ID        string            `json:"id"`
	TriggerID string            `json:"trigger_id"`
	Route     string            `json:"route"`
	Entity    string            `json:"entity,omitempty"`
	EntityID  string            `json:"entity_id,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

// ScopeSnapshot batches all event name/value pairs known at a point in time
// for one scope. Snapshots are immutable once stored and deduplicated by ID.
type ScopeSnapshot struct {
	ID         string            `json:"id"`
	Datasource string            `json:"datasource"`
	Sport      string            `json:"sport"`
	Scope      string            `json:"scope"`
	ScopeID    string            `json:"scope_id"`
	Timestamp  int64             `json:"timestamp"`
	Options    map[string]string `json:"options"`
}

// EventURI builds the opaque key identifying one event within one scope.
func EventURI(datasource, scope, scopeID, event string) string {
	return strings.Join([]string{datasource, scope, scopeID, event}, "/")
}

// URIs returns the event URIs present in the snapshot.
func (s *ScopeSnapshot) URIs() []string {
	uris := make([]string, 0, len(s.Options))
	for event := range s.Options {
		uris = append(uris, EventURI(s.Datasource, s.Scope, s.ScopeID, event))
	}
	return uris
}

// URISet returns the snapshot's URIs as a membership set.
func (s *ScopeSnapshot) URISet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Options))
	for _, uri := range s.URIs() {
		set[uri] = struct{}{}
	}
	return set
}
