// Package config provides configuration parsing and validation for the
// trigger engine service.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration parameters for the service.
type Config struct {
	KafkaBrokers      string
	StoreTopic        string
	EvaluateTopic     string
	NotifyTopic       string
	StoreGroupID      string
	EvaluateGroupID   string
	NotifyGroupID     string
	RedisAddr         string
	RetiredTriggerTTL time.Duration
	MetricsInterval   time.Duration
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.StoreTopic == "" {
		return fmt.Errorf("store-topic cannot be empty")
	}
	if c.EvaluateTopic == "" {
		return fmt.Errorf("evaluate-topic cannot be empty")
	}
	if c.NotifyTopic == "" {
		return fmt.Errorf("notify-topic cannot be empty")
	}
	if c.StoreGroupID == "" {
		return fmt.Errorf("store-group-id cannot be empty")
	}
	if c.EvaluateGroupID == "" {
		return fmt.Errorf("evaluate-group-id cannot be empty")
	}
	if c.NotifyGroupID == "" {
		return fmt.Errorf("notify-group-id cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.RetiredTriggerTTL <= 0 {
		return fmt.Errorf("retired-trigger-ttl must be > 0")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics-interval must be > 0")
	}
	return nil
}
