package application

import (
	"context"
	"time"
)

// SweepLock keeps a periodic job to a single replica
type SweepLock interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
}
