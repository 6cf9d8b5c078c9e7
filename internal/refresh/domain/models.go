package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Refresh statuses. NoData means no refresh was ever attempted, distinct from
// Failed which means the last attempt broke.
const (
	StatusNoData    = "NoData"
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// RefreshCache is the per-customer result of the last refresh. The blob
// columns are always replaced together; status transitions are the only other
// mutations.
type RefreshCache struct {
	CustomerID    string     `json:"customer_id" gorm:"primaryKey;type:text"`
	Status        string     `json:"status" gorm:"type:text;not null;default:'NoData'"`
	LastRefreshed *time.Time `json:"last_refreshed"`

	Summary                 datatypes.JSON `json:"summary"`
	Reservations            datatypes.JSON `json:"reservations"`
	Insights                datatypes.JSON `json:"insights"`
	PurchaseRecommendations datatypes.JSON `json:"purchase_recommendations"`
	Errors                  datatypes.JSON `json:"errors"`

	ErrorMessage string    `json:"error_message" gorm:"type:text;not null;default:''"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RefreshCache) TableName() string { return "refresh_caches" }

var (
	ErrAlreadyRunning = errors.New("refresh_already_running")
	ErrQueueFull      = errors.New("refresh_queue_full")
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, customerID string) (*RefreshCache, error)
	// ClaimRunning transitions the customer's row to Running, creating it if
	// absent. Returns false when a refresh is already running.
	ClaimRunning(ctx context.Context, db *gorm.DB, customerID string, now time.Time) (bool, error)
	Save(ctx context.Context, db *gorm.DB, cache *RefreshCache) error
}

// Service triggers refreshes and serves the cached result.
type Service interface {
	// Trigger enqueues an asynchronous refresh and returns a job ID.
	Trigger(ctx context.Context, customerID string) (string, error)
	// Get returns the cached state, synthesizing a NoData row when none exists.
	Get(ctx context.Context, customerID string) (*RefreshCache, error)
}
