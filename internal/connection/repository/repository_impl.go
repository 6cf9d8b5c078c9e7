package repository

import (
	"context"

	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() connectiondomain.Repository {
	return &repo{}
}

func (r *repo) FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*connectiondomain.CustomerConnection, error) {
	var conn connectiondomain.CustomerConnection
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM customer_connections WHERE customer_id = ?`,
		customerID,
	).Scan(&conn).Error
	if err != nil {
		return nil, err
	}
	if conn.ID == 0 {
		return nil, nil
	}
	return &conn, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]connectiondomain.CustomerConnection, error) {
	var conns []connectiondomain.CustomerConnection
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM customer_connections ORDER BY created_at ASC`,
	).Scan(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}
