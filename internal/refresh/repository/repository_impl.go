package repository

import (
	"context"
	"time"

	"github.com/finopslab/costlens/pkg/db"

	refreshdomain "github.com/finopslab/costlens/internal/refresh/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() refreshdomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, conn *gorm.DB, customerID string) (*refreshdomain.RefreshCache, error) {
	var cache refreshdomain.RefreshCache
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM refresh_caches WHERE customer_id = ?`,
		customerID,
	).Scan(&cache).Error
	if err != nil {
		return nil, err
	}
	if cache.CustomerID == "" {
		return nil, nil
	}
	return &cache, nil
}

// ClaimRunning flips the row to Running unless a refresh already holds it.
// The conditional UPDATE and the duplicate-key fallback on INSERT make the
// claim safe under concurrent triggers.
func (r *repo) ClaimRunning(ctx context.Context, conn *gorm.DB, customerID string, now time.Time) (bool, error) {
	update := conn.WithContext(ctx).Exec(
		`UPDATE refresh_caches SET status = ?, updated_at = ? WHERE customer_id = ? AND status <> ?`,
		refreshdomain.StatusRunning, now, customerID, refreshdomain.StatusRunning,
	)
	if update.Error != nil {
		return false, update.Error
	}
	if update.RowsAffected > 0 {
		return true, nil
	}

	existing, err := r.Find(ctx, conn, customerID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		// Row exists and the UPDATE skipped it, so it is Running.
		return false, nil
	}

	insert := conn.WithContext(ctx).Create(&refreshdomain.RefreshCache{
		CustomerID: customerID,
		Status:     refreshdomain.StatusRunning,
		UpdatedAt:  now,
	})
	if insert.Error != nil {
		if db.IsDuplicateKeyErr(insert.Error) {
			// Lost the race to a concurrent trigger.
			return false, nil
		}
		return false, insert.Error
	}
	return true, nil
}

func (r *repo) Save(ctx context.Context, conn *gorm.DB, cache *refreshdomain.RefreshCache) error {
	cache.UpdatedAt = time.Now().UTC()
	return conn.WithContext(ctx).Save(cache).Error
}
