package application

import (
	"context"
	"fmt"
	"time"

	"creditledger/service"

	log "github.com/sirupsen/logrus"
)

const (
	refreshLockName    = "refresh-sweep"
	defaultSweepBatch  = 500
	maxBatchesPerSweep = 20
)

// SweepResult summarizes one refresh sweep
type SweepResult struct {
	Checked   int
	Refreshed int
	Failed    int
	Skipped   bool
}

// RefreshWorker periodically refreshes every balance whose interval has elapsed
type RefreshWorker struct {
	ledger      service.CreditLedger
	lock        SweepLock
	dailyAmount int64
	batchSize   int
}

// NewRefreshWorker creates a new refresh worker. lock may be nil when only
// one replica runs the sweep.
func NewRefreshWorker(ledger service.CreditLedger, lock SweepLock, dailyAmount int64) *RefreshWorker {
	return &RefreshWorker{
		ledger:      ledger,
		lock:        lock,
		dailyAmount: dailyAmount,
		batchSize:   defaultSweepBatch,
	}
}

// Start runs a sweep every interval until ctx is cancelled or the returned
// cleanup function is called.
func (w *RefreshWorker) Start(ctx context.Context, interval time.Duration) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", interval).Info("Refresh worker started")

		for {
			select {
			case <-ctx.Done():
				log.Info("Refresh worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Refresh worker shutting down (stop requested)...")
				return
			case <-time.After(interval):
				if _, err := w.RunOnce(ctx, interval); err != nil {
					log.WithError(err).Error("Refresh sweep failed")
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce refreshes the balances that are due. The lock is held for at most
// lockTTL so a crashed replica does not block the next sweep.
func (w *RefreshWorker) RunOnce(ctx context.Context, lockTTL time.Duration) (SweepResult, error) {
	var result SweepResult

	if w.lock != nil {
		token, acquired, err := w.lock.AcquireLock(ctx, refreshLockName, lockTTL)
		if err != nil {
			return result, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !acquired {
			log.Debug("Refresh sweep already running elsewhere")
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if err := w.lock.ReleaseLock(context.Background(), refreshLockName, token); err != nil {
				log.WithError(err).Warn("Failed to release sweep lock")
			}
		}()
	}

	start := time.Now()
	for batch := 0; batch < maxBatchesPerSweep; batch++ {
		userIDs, err := w.ledger.ListDueForRefresh(ctx, w.batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to list balances due for refresh: %w", err)
		}

		refreshedInBatch := 0
		for _, userID := range userIDs {
			result.Checked++
			refreshed, err := w.ledger.RefreshIfDue(ctx, userID, w.dailyAmount)
			if err != nil {
				log.WithFields(log.Fields{
					"userID": userID,
					"error":  err,
				}).Error("Failed to refresh credits")
				result.Failed++
				continue
			}
			if refreshed {
				result.Refreshed++
				refreshedInBatch++
			}
		}

		// a short or unproductive batch means nothing else is waiting
		if len(userIDs) < w.batchSize || refreshedInBatch == 0 {
			break
		}
	}

	log.WithFields(log.Fields{
		"checked":   result.Checked,
		"refreshed": result.Refreshed,
		"failed":    result.Failed,
		"duration":  time.Since(start).String(),
	}).Info("Completed refresh sweep")

	return result, nil
}
