package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CustomerConnection describes where a customer's billing exports live and
// which credential unlocks the reservation APIs. Created by the surrounding
// CRUD surface; the engine only reads it.
type CustomerConnection struct {
	ID                  snowflake.ID                `json:"id" gorm:"primaryKey"`
	CustomerID          string                      `json:"customer_id" gorm:"type:text;not null;uniqueIndex"`
	TenantID            string                      `json:"tenant_id" gorm:"type:text;not null;default:''"`
	ClientID            string                      `json:"client_id" gorm:"type:text;not null;default:''"`
	CredentialSecretRef string                      `json:"credential_secret_ref" gorm:"type:text;not null;default:''"`
	StorageAccount      string                      `json:"storage_account" gorm:"type:text;not null;default:''"`
	StorageContainer    string                      `json:"storage_container" gorm:"type:text;not null;default:''"`
	ExportPrefix        string                      `json:"export_prefix" gorm:"type:text;not null;default:''"`
	BillingScope        string                      `json:"billing_scope" gorm:"type:text;not null;default:''"`
	SubscriptionIDs     datatypes.JSONSlice[string] `json:"subscription_ids" gorm:"column:subscription_ids"`
	CreatedAt           time.Time                   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time                   `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CustomerConnection) TableName() string { return "customer_connections" }

var (
	ErrNotConfigured = errors.New("connection_not_configured")
	ErrNoStorage     = errors.New("storage_not_configured")
	ErrNoCredential  = errors.New("credential_not_configured")
)

// Validate reports the first missing prerequisite for the cost pipeline.
func (c *CustomerConnection) Validate() error {
	if c == nil {
		return ErrNotConfigured
	}
	if c.StorageAccount == "" || c.StorageContainer == "" {
		return ErrNoStorage
	}
	if c.CredentialSecretRef == "" {
		return ErrNoCredential
	}
	return nil
}
