// Package database provides the Redis-backed entity collections: triggers,
// conditions, subscriptions, scope snapshots and the two rate limit
// collections. All multi-key mutations run as atomic batches; idempotency
// guards use the store's compare-and-set primitives.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound marks lookups of missing triggers, conditions or subscriptions.
var ErrNotFound = errors.New("not found")

// DB bundles the collections sharing one Redis client.
type DB struct {
	client        *redis.Client
	Triggers      *Triggers
	Conditions    *Conditions
	Subscriptions *Subscriptions
	Snapshots     *Snapshots
	TriggerLimits *Limits
	EntityLimits  *Limits
}

// New builds the collections over an established client.
func New(client *redis.Client) *DB {
	incr := newIncrCountScript()
	return &DB{
		client:        client,
		Triggers:      &Triggers{client: client},
		Conditions:    &Conditions{client: client},
		Subscriptions: &Subscriptions{client: client},
		Snapshots:     &Snapshots{client: client},
		TriggerLimits: &Limits{client: client, incr: incr, prefix: "trigger-limits"},
		EntityLimits:  &Limits{client: client, incr: incr, prefix: "entity-limits"},
	}
}

// Connect creates and validates a Redis connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}
