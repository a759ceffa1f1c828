package redis

import (
	"context"
	"fmt"
	"ms-headcount/internal/logger"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ledger_lock:"

// DefaultLockTTL bounds how long a crashed writer can block a night.
const DefaultLockTTL = 10 * time.Second

// NightLock guards one operational night with a SET NX key so that
// concurrent submissions for the same night run their read-then-write one
// at a time, even across service instances.
type NightLock struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewNightLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *NightLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &NightLock{Client: client, TTL: ttl, Logger: log}
}

func lockKey(date string) string {
	return keyPrefix + date
}

// Acquire takes the night's lock for token. It returns false without error
// when another token holds it.
func (l *NightLock) Acquire(ctx context.Context, date, token string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, lockKey(date), token, l.TTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		l.Logger.Debug("REDIS", fmt.Sprintf("Night %s already locked", date))
	}
	return ok, nil
}

// deletes KEYS[1] only while it still holds ARGV[1]
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release drops the lock only if token still owns it.
func (l *NightLock) Release(ctx context.Context, date, token string) error {
	deleted, err := releaseScript.Run(ctx, l.Client, []string{lockKey(date)}, token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		l.Logger.Debug("REDIS", fmt.Sprintf("Lock for night %s no longer held by this writer", date))
	}
	return nil
}
