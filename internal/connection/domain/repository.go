package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*CustomerConnection, error)
	List(ctx context.Context, db *gorm.DB) ([]CustomerConnection, error)
}
