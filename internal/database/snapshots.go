package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Snapshots stores scope snapshots as immutable JSON documents and maintains
// the per-scope aggregation index serving search-style condition options.
// The index is created lazily: the first snapshot of a scope seeds it.
type Snapshots struct {
	client *redis.Client
}

// Store persists the snapshot unless its id already exists. Returns false for
// duplicate deliveries; duplicates never touch the aggregation index.
func (s *Snapshots) Store(ctx context.Context, snap *model.ScopeSnapshot) (bool, error) {
	doc, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	stored, err := s.client.SetNX(ctx, snapshotKey(snap), doc, 0).Result()
	if err != nil {
		return false, fmt.Errorf("store snapshot %s: %w", snap.ID, err)
	}
	if !stored {
		return false, nil
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for event, value := range snap.Options {
			pipe.SAdd(ctx, eventValuesKey(snap, event), value)
			pipe.SAdd(ctx, eventOccurrencesKey(snap, event, value), snap.ID)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("index snapshot %s: %w", snap.ID, err)
	}
	return true, nil
}

// Get loads a stored snapshot document. The ref only needs the scope
// coordinates and the id.
func (s *Snapshots) Get(ctx context.Context, ref *model.ScopeSnapshot) (*model.ScopeSnapshot, error) {
	doc, err := s.client.Get(ctx, snapshotKey(ref)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("snapshot %s: %w", ref.ID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", ref.ID, err)
	}
	var snap model.ScopeSnapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", ref.ID, err)
	}
	return &snap, nil
}

// Aggregate answers an option's aggregation query against the scope index.
func (s *Snapshots) Aggregate(ctx context.Context, snap *model.ScopeSnapshot, opt *model.ConditionOption) (float64, error) {
	q := opt.Aggregate
	if q == nil {
		return 0, fmt.Errorf("option %q has no aggregate query", opt.Event)
	}
	event := q.Event
	if event == "" {
		event = opt.Event
	}
	switch q.Kind {
	case model.AggregateDistinctValues:
		n, err := s.client.SCard(ctx, eventValuesKey(snap, event)).Result()
		if err != nil {
			return 0, fmt.Errorf("count distinct values of %s: %w", event, err)
		}
		return float64(n), nil
	case model.AggregateOccurrences:
		value, ok := snap.Options[event]
		if !ok {
			return 0, nil
		}
		n, err := s.client.SCard(ctx, eventOccurrencesKey(snap, event, value)).Result()
		if err != nil {
			return 0, fmt.Errorf("count occurrences of %s=%s: %w", event, value, err)
		}
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unknown aggregate kind %q", q.Kind)
	}
}
