package evaluator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Aggregator answers aggregation queries against the stored snapshots of a
// scope. It is injected so evaluation stays independent of the index
// technology behind it.
type Aggregator interface {
	Aggregate(ctx context.Context, snap *model.ScopeSnapshot, opt *model.ConditionOption) (float64, error)
}

// Evaluate reports whether the condition is satisfied by the snapshot.
//
// The primary predicate, when present, short-circuits on a missing event or a
// failed comparison. Every option must then also match: a missing option
// event makes the whole condition false. When an option carries an aggregate
// query, the comparison value is the aggregation result instead of the raw
// fact value.
func Evaluate(ctx context.Context, cond *model.Condition, snap *model.ScopeSnapshot, agg Aggregator) (bool, error) {
	if cond.Event != "" {
		value, ok := snap.Options[cond.Event]
		if !ok {
			return false, nil
		}
		if !Compare(cond.Compare, value, cond.Targets, cond.Type) {
			return false, nil
		}
	}
	for i := range cond.Options {
		opt := &cond.Options[i]
		value, ok := snap.Options[opt.Event]
		if !ok {
			return false, nil
		}
		if opt.Aggregate != nil {
			if agg == nil {
				return false, fmt.Errorf("option %q needs aggregation but no aggregator is configured", opt.Event)
			}
			result, err := agg.Aggregate(ctx, snap, opt)
			if err != nil {
				return false, fmt.Errorf("aggregate for option %q: %w", opt.Event, err)
			}
			value = strconv.FormatFloat(result, 'f', -1, 64)
		}
		if !Compare(opt.Compare, value, opt.Targets, opt.Type) {
			return false, nil
		}
	}
	return true, nil
}
