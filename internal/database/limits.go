package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/kristobalus/sport-triggers-sub000/internal/limits"
)

// Limits is one rate limit collection. The engine runs two instances over the
// same policy: one keyed per trigger id, one per moderating entity. Counter
// values are the cardinality of a set of contributing snapshot ids, so a
// duplicate delivery of one snapshot never double-counts.
type Limits struct {
	client *redis.Client
	incr   *redis.Script
	prefix string
}

// EntityOwner builds the owner key of an entity-scoped limit collection.
func EntityOwner(entity, entityID string) string {
	return entity + "/" + entityID
}

// SetLimits replaces the owner's configured caps. A cap of zero disables the
// limit.
func (l *Limits) SetLimits(ctx context.Context, owner string, caps map[string]int64) error {
	key := l.limitsKey(owner)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(caps) > 0 {
			fields := make(map[string]interface{}, len(caps))
			for label, cap := range caps {
				fields[label] = strconv.FormatInt(cap, 10)
			}
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set limits for %s: %w", owner, err)
	}
	return nil
}

// GetLimits returns the owner's configured caps by label.
func (l *Limits) GetLimits(ctx context.Context, owner string) (map[string]int64, error) {
	fields, err := l.client.HGetAll(ctx, l.limitsKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("get limits for %s: %w", owner, err)
	}
	caps := make(map[string]int64, len(fields))
	for label, raw := range fields {
		cap, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse limit %s for %s: %w", label, owner, err)
		}
		caps[label] = cap
	}
	return caps, nil
}

// IncrCount adds the snapshot to the counter's contributing set and returns
// the new count. Interval limits get their window TTL applied exactly once.
func (l *Limits) IncrCount(ctx context.Context, owner, snapshotID, event, value string) (int64, error) {
	def := limits.Lookup(event)
	counter := limits.CounterKey(def, value)
	keys := []string{l.counterSetKey(owner, counter), l.countersKey(owner)}
	count, err := l.incr.Run(ctx, l.client, keys, counter, snapshotID, def.Interval.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("increment counter %s for %s: %w", counter, owner, err)
	}
	return count, nil
}

// GetCount returns the counter's current value. An expired or untouched
// counter reads zero.
func (l *Limits) GetCount(ctx context.Context, owner, event, value string) (int64, error) {
	def := limits.Lookup(event)
	counter := limits.CounterKey(def, value)
	count, err := l.client.SCard(ctx, l.counterSetKey(owner, counter)).Result()
	if err != nil {
		return 0, fmt.Errorf("read counter %s for %s: %w", counter, owner, err)
	}
	return count, nil
}

// GetCounts returns every counter the owner has touched with its current
// value. Expired windowed counters report zero.
func (l *Limits) GetCounts(ctx context.Context, owner string) (map[string]int64, error) {
	counters, err := l.client.SMembers(ctx, l.countersKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("list counters for %s: %w", owner, err)
	}
	counts := make(map[string]int64, len(counters))
	for _, counter := range counters {
		count, err := l.client.SCard(ctx, l.counterSetKey(owner, counter)).Result()
		if err != nil {
			return nil, fmt.Errorf("read counter %s for %s: %w", counter, owner, err)
		}
		counts[counter] = count
	}
	return counts, nil
}

// Clear drops the owner's caps and counters.
func (l *Limits) Clear(ctx context.Context, owner string) error {
	counters, err := l.client.SMembers(ctx, l.countersKey(owner)).Result()
	if err != nil {
		return fmt.Errorf("list counters for %s: %w", owner, err)
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, counter := range counters {
			pipe.Del(ctx, l.counterSetKey(owner, counter))
		}
		pipe.Del(ctx, l.countersKey(owner), l.limitsKey(owner))
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear limits for %s: %w", owner, err)
	}
	return nil
}

func (l *Limits) limitsKey(owner string) string {
	return l.prefix + "/" + owner + "/limits"
}

func (l *Limits) countersKey(owner string) string {
	return l.prefix + "/" + owner + "/counters"
}

func (l *Limits) counterSetKey(owner, counter string) string {
	return l.prefix + "/" + owner + "/counters/" + counter + "/snapshots"
}
