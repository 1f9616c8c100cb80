package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// Lock layout: one hash per product holding the lock fields, plus a shared
// zset scored by the expiry deadline so the sweep can find stale locks
// without scanning the keyspace. Every mutation is a single Lua script, so
// there is never a read-then-write window between checking the current
// holder and replacing it; that window is exactly the double-sell race this
// store exists to close.

const (
	lockKeyPrefix = "stock:lock:"
	lockExpiryKey = "stock:lock:expiry"
)

// acquireLua test-and-sets the per-product lock. A live lock under a
// different negotiation wins; an expired lock is replaced in place with fresh
// fields regardless of holder, so a same-negotiation re-acquire past the
// deadline refreshes the expiry rather than reporting a lock that is gone.
// Returns 1 on success, 0 on conflict, 2 on idempotent re-acquire of a live
// lock.
const acquireLua = `
local holder = redis.call('HGET', KEYS[1], 'negotiation_id')
if holder then
    local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at_ms'))
    if expires and expires > tonumber(ARGV[4]) then
        if holder == ARGV[1] then
            return 2
        end
        return 0
    end
end
redis.call('HSET', KEYS[1],
    'negotiation_id', ARGV[1],
    'quantity', ARGV[2],
    'acquired_at_ms', ARGV[4],
    'expires_at_ms', ARGV[3])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[5])
return 1
`

// releaseLua deletes the lock only when the caller's negotiation is the
// current holder. Returns 1 when released, 0 when absent, -1 when held by
// someone else.
const releaseLua = `
local holder = redis.call('HGET', KEYS[1], 'negotiation_id')
if not holder then
    return 0
end
if holder ~= ARGV[1] then
    return -1
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`

// sweepLua atomically pops every lock whose deadline passed and returns its
// fields, so a concurrent release cannot observe a half-removed lock.
const sweepLua = `
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local out = {}
for _, product in ipairs(expired) do
    local key = ARGV[2] .. product
    local fields = redis.call('HMGET', key, 'negotiation_id', 'quantity', 'acquired_at_ms', 'expires_at_ms')
    if fields[1] then
        table.insert(out, product)
        table.insert(out, fields[1])
        table.insert(out, fields[2])
        table.insert(out, fields[3])
        table.insert(out, fields[4])
        redis.call('DEL', key)
    end
    redis.call('ZREM', KEYS[1], product)
end
return out
`

// LockManager implements domain.LockManager on Redis.
type LockManager struct {
	rdb       *redis.Client
	acquireSc *redis.Script
	releaseSc *redis.Script
	sweepSc   *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:       c.Underlying(),
		acquireSc: redis.NewScript(acquireLua),
		releaseSc: redis.NewScript(releaseLua),
		sweepSc:   redis.NewScript(sweepLua),
	}
}

func lockKey(productID string) string {
	return lockKeyPrefix + productID
}

// Acquire test-and-sets the exclusive lock for productID with the given TTL.
// It returns domain.ErrLockConflict when a different live negotiation holds
// the product.
func (lm *LockManager) Acquire(ctx context.Context, productID, negotiationID string, quantity int, ttl time.Duration) error {
	now := time.Now()
	expiresAt := now.Add(ttl)

	res, err := lm.acquireSc.Run(ctx, lm.rdb,
		[]string{lockKey(productID), lockExpiryKey},
		negotiationID,
		quantity,
		expiresAt.UnixMilli(),
		now.UnixMilli(),
		productID,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis: acquire stock lock %s: %w", productID, err)
	}
	if res == 0 {
		return domain.ErrLockConflict
	}
	return nil
}

// Release frees the lock when negotiationID is the current holder. Releasing
// an absent lock is a no-op; a foreign holder returns domain.ErrNotHolder.
func (lm *LockManager) Release(ctx context.Context, productID, negotiationID string, committed bool) error {
	res, err := lm.releaseSc.Run(ctx, lm.rdb,
		[]string{lockKey(productID), lockExpiryKey},
		negotiationID,
		productID,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis: release stock lock %s: %w", productID, err)
	}
	if res == -1 {
		return domain.ErrNotHolder
	}
	return nil
}

// Get returns the current non-expired lock for productID.
func (lm *LockManager) Get(ctx context.Context, productID string) (domain.StockLock, error) {
	fields, err := lm.rdb.HGetAll(ctx, lockKey(productID)).Result()
	if err != nil {
		return domain.StockLock{}, fmt.Errorf("redis: get stock lock %s: %w", productID, err)
	}
	if len(fields) == 0 {
		return domain.StockLock{}, domain.ErrNotFound
	}

	lock, err := lockFromFields(productID, fields["negotiation_id"], fields["quantity"], fields["acquired_at_ms"], fields["expires_at_ms"])
	if err != nil {
		return domain.StockLock{}, err
	}
	if lock.Expired(time.Now()) {
		return domain.StockLock{}, domain.ErrNotFound
	}
	return lock, nil
}

// SweepExpired atomically removes and returns all locks whose deadline has
// passed. Called only by the expiry scheduler.
func (lm *LockManager) SweepExpired(ctx context.Context) ([]domain.StockLock, error) {
	res, err := lm.sweepSc.Run(ctx, lm.rdb,
		[]string{lockExpiryKey},
		time.Now().UnixMilli(),
		lockKeyPrefix,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis: sweep stock locks: %w", err)
	}

	var locks []domain.StockLock
	for i := 0; i+4 < len(res); i += 5 {
		lock, err := lockFromFields(res[i], res[i+1], res[i+2], res[i+3], res[i+4])
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func lockFromFields(productID, negotiationID, quantity, acquiredMs, expiresMs string) (domain.StockLock, error) {
	qty, err := strconv.Atoi(quantity)
	if err != nil {
		return domain.StockLock{}, fmt.Errorf("redis: parse lock quantity %q: %w", quantity, err)
	}
	acquired, err := strconv.ParseInt(acquiredMs, 10, 64)
	if err != nil {
		return domain.StockLock{}, fmt.Errorf("redis: parse lock acquired_at %q: %w", acquiredMs, err)
	}
	expires, err := strconv.ParseInt(expiresMs, 10, 64)
	if err != nil {
		return domain.StockLock{}, fmt.Errorf("redis: parse lock expires_at %q: %w", expiresMs, err)
	}
	return domain.StockLock{
		ProductID:     productID,
		NegotiationID: negotiationID,
		Quantity:      qty,
		AcquiredAt:    time.UnixMilli(acquired),
		ExpiresAt:     time.UnixMilli(expires),
	}, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
