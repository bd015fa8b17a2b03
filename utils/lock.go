package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/consumables_backend/config"
)

const (
	entityLockTTL  = 30 * time.Second
	entityLockWait = 5 * time.Second
)

// EntityLock takes a best-effort distributed lock on one entity (e.g. "production_order", 12).
// Row locks inside the DB transaction remain the source of truth; this lock only keeps
// concurrent callers from queueing on the same rows. When redis is disabled or the lock
// cannot be obtained in time, the returned release func is a no-op and err is nil.
func EntityLock(ctx context.Context, kind string, id int, moduleName string, functionName string) (release func(), err error) {
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil {
		return noop, nil
	}

	lockKey := fmt.Sprintf("lock:%s:%d", kind, id)
	waitCtx, cancel := context.WithTimeout(ctx, entityLockWait)
	defer cancel()

	lock, err := locker.Obtain(waitCtx, lockKey, entityLockTTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		config.LogWarn(config.GetLogger(), moduleName, functionName, "could not obtain entity lock; relying on row locks", lockKey)
		return noop, nil
	} else if err != nil {
		if ctx.Err() != nil {
			return noop, ctx.Err()
		}
		config.LogError(config.GetLogger(), moduleName, functionName, "error obtaining entity lock", lockKey, err)
		return noop, nil
	}

	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
