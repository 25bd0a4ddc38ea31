package database

import "github.com/redis/go-redis/v9"

// incrCountScript adds a contributing snapshot to a counter's backing set,
// registers the counter as touched, and returns the set cardinality as the
// new count. Interval limits get their window TTL on the first contribution
// only; refreshing it on every increment would stretch the window forever.
const incrCountScript = `
	local set_key = KEYS[1]
	local touched_key = KEYS[2]
	local counter = ARGV[1]
	local snapshot_id = ARGV[2]
	local ttl_ms = tonumber(ARGV[3])

	redis.call('SADD', set_key, snapshot_id)
	redis.call('SADD', touched_key, counter)
	if ttl_ms > 0 and redis.call('PTTL', set_key) < 0 then
		redis.call('PEXPIRE', set_key, ttl_ms)
	end
	return redis.call('SCARD', set_key)
`

func newIncrCountScript() *redis.Script {
	return redis.NewScript(incrCountScript)
}
