// Package catalog provides the sport event metadata lookup used to validate
// condition payloads at creation time. The engine trusts the catalog but does
// not own it; the static implementation here covers the built-in sports.
package catalog

import (
	"fmt"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// EventMetadata describes what a condition may ask of one event.
type EventMetadata struct {
	// Type is the comparison value type of the event ("number" or "string").
	Type string
	// Comparators lists the allowed comparator names.
	Comparators []string
	// Targets enumerates the allowed target values. Empty means unrestricted.
	Targets []string
}

// Catalog resolves event metadata per sport.
type Catalog interface {
	Lookup(sport, event string) (EventMetadata, bool)
}

// StaticCatalog is an in-memory Catalog keyed by sport then event name.
type StaticCatalog map[string]map[string]EventMetadata

// Lookup implements Catalog.
func (c StaticCatalog) Lookup(sport, event string) (EventMetadata, bool) {
	events, ok := c[sport]
	if !ok {
		return EventMetadata{}, false
	}
	meta, ok := events[event]
	return meta, ok
}

var numericComparators = []string{
	model.CompareIn, model.CompareEq,
	model.CompareGt, model.CompareLt, model.CompareGe, model.CompareLe,
}

var stringComparators = []string{model.CompareIn, model.CompareEq}

// NewBasketballCatalog returns the built-in basketball event set.
func NewBasketballCatalog() StaticCatalog {
	return StaticCatalog{
		"basketball": {
			"home_score":         {Type: model.TypeNumber, Comparators: numericComparators},
			"away_score":         {Type: model.TypeNumber, Comparators: numericComparators},
			"total_points":       {Type: model.TypeNumber, Comparators: numericComparators},
			"quarter":            {Type: model.TypeNumber, Comparators: numericComparators, Targets: []string{"1", "2", "3", "4"}},
			"game_state":         {Type: model.TypeString, Comparators: stringComparators, Targets: []string{"scheduled", "live", "halftime", "finished"}},
			"player_scored":      {Type: model.TypeString, Comparators: stringComparators},
			"player_dunk":        {Type: model.TypeString, Comparators: stringComparators},
			"team_three_pointer": {Type: model.TypeString, Comparators: stringComparators},
			"team_timeout":       {Type: model.TypeString, Comparators: stringComparators},
		},
	}
}

// ValidateCondition checks a condition (primary predicate and all options)
// against the catalog. Nothing is persisted for a condition that fails here.
func ValidateCondition(cat Catalog, sport string, c *model.Condition) error {
	if c.Event == "" && len(c.Options) == 0 {
		return fmt.Errorf("condition has no predicates")
	}
	if c.Event != "" {
		if err := validatePredicate(cat, sport, c.Event, c.Compare, c.Targets, c.Type); err != nil {
			return err
		}
	}
	for i := range c.Options {
		opt := &c.Options[i]
		if opt.Aggregate != nil {
			if err := validateAggregate(opt.Aggregate); err != nil {
				return fmt.Errorf("option %d: %w", i, err)
			}
			// Aggregate results are numeric regardless of the event type.
			if opt.Type != model.TypeNumber {
				return fmt.Errorf("option %d: aggregated option must have type %q, got %q", i, model.TypeNumber, opt.Type)
			}
			if _, ok := cat.Lookup(sport, opt.Event); !ok {
				return fmt.Errorf("option %d: unknown event %q for sport %q", i, opt.Event, sport)
			}
			continue
		}
		if err := validatePredicate(cat, sport, opt.Event, opt.Compare, opt.Targets, opt.Type); err != nil {
			return fmt.Errorf("option %d: %w", i, err)
		}
	}
	return nil
}

func validateAggregate(q *model.AggregateQuery) error {
	switch q.Kind {
	case model.AggregateDistinctValues, model.AggregateOccurrences:
		return nil
	default:
		return fmt.Errorf("unknown aggregate kind %q", q.Kind)
	}
}

func validatePredicate(cat Catalog, sport, event, compare string, targets []string, typ string) error {
	meta, ok := cat.Lookup(sport, event)
	if !ok {
		return fmt.Errorf("unknown event %q for sport %q", event, sport)
	}
	if typ != meta.Type {
		return fmt.Errorf("event %q expects type %q, got %q", event, meta.Type, typ)
	}
	if !contains(meta.Comparators, compare) {
		return fmt.Errorf("comparator %q not allowed for event %q", compare, event)
	}
	if len(targets) == 0 {
		return fmt.Errorf("event %q requires at least one target", event)
	}
	if len(meta.Targets) > 0 {
		for _, target := range targets {
			if !contains(meta.Targets, target) {
				return fmt.Errorf("target %q not allowed for event %q", target, event)
			}
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
