package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrOptimisticLock indicates a conditional update matched no row because the
// version stamp moved underneath the caller.
var ErrOptimisticLock = errors.New("record was modified concurrently")

// Versioned is implemented by models guarded with a lock_version column.
type Versioned interface {
	VersionStamp() int
}

// RetryPolicy names the bounded retry schedule used for read-modify-write
// cycles. Backoff grows linearly: attempt n sleeps n*Backoff before the next
// read.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy retries three times with a 100ms linear backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 100 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultRetryPolicy.Backoff
	}
	return p
}

// UpdateWithLock issues a single conditional UPDATE matched on
// (id, lock_version), bumping the version as part of the write. A missing row
// surfaces as gorm.ErrRecordNotFound; a present row with a different version
// surfaces as ErrOptimisticLock. No retry happens here.
func UpdateWithLock[T any](ctx context.Context, db *gorm.DB, id uint, expectedVersion int, updates map[string]interface{}) error {
	patch := make(map[string]interface{}, len(updates)+1)
	for column, value := range updates {
		patch[column] = value
	}
	patch["lock_version"] = expectedVersion + 1

	var model T
	result := db.WithContext(ctx).Model(&model).
		Where("id = ? AND lock_version = ?", id, expectedVersion).
		Updates(patch)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrOptimisticLock
}

// UpdateWithRetry runs the read-current → recompute → conditional-write cycle
// until it lands or the policy is exhausted. recompute receives the freshly
// loaded row and returns the column patch; returning an error aborts the
// whole cycle (business checks live there). A missing row propagates
// immediately and is never retried; exhaustion returns ErrOptimisticLock. On
// success the re-read, post-write row is returned.
func UpdateWithRetry[T any](ctx context.Context, db *gorm.DB, policy RetryPolicy, id uint, recompute func(current T) (map[string]interface{}, error)) (T, error) {
	var zero T
	policy = policy.normalized()

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		var current T
		if err := db.WithContext(ctx).First(&current, id).Error; err != nil {
			return zero, err
		}

		versioned, ok := any(current).(Versioned)
		if !ok {
			return zero, fmt.Errorf("model %T does not carry a version stamp", current)
		}

		updates, err := recompute(current)
		if err != nil {
			return zero, err
		}

		err = UpdateWithLock[T](ctx, db, id, versioned.VersionStamp(), updates)
		if err == nil {
			var fresh T
			if err := db.WithContext(ctx).First(&fresh, id).Error; err != nil {
				return zero, err
			}
			return fresh, nil
		}
		if !errors.Is(err, ErrOptimisticLock) {
			return zero, err
		}

		if attempt < policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * policy.Backoff):
			}
		}
	}

	return zero, ErrOptimisticLock
}
