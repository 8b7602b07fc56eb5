package repository

import (
	"context"
)

// ReferenceRepository checks the optional order and package a ticket may point at.
type ReferenceRepository interface {
	OrderBelongsTo(ctx context.Context, orderID, userID string) (bool, error)
	PackageExists(ctx context.Context, packageID string) (bool, error)
}

type referenceRepository struct {
	db DBTX
}

// NewReferenceRepository builds the repository.
func NewReferenceRepository(db DBTX) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) OrderBelongsTo(ctx context.Context, orderID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1 AND user_id=$2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, orderID, userID).Scan(&exists)
	return exists, err
}

func (r *referenceRepository) PackageExists(ctx context.Context, packageID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM packages WHERE id=$1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, packageID).Scan(&exists)
	return exists, err
}
