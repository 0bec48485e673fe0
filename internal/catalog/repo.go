// Package catalog reads the pre-existing reference data (customers and
// products) that the transactional core validates against but never writes.
package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// Repository exposes existence checks over reference tables.
type Repository struct {
	repo.Base
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// CustomerExists reports whether the customer id is known.
func (r *Repository) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	return r.exists(ctx, &models.Customer{}, "customer_id = ?", customerID)
}

// ProductExists reports whether the product id is known.
func (r *Repository) ProductExists(ctx context.Context, productID string) (bool, error) {
	return r.exists(ctx, &models.Product{}, "product_id = ?", productID)
}

// RequireCustomer returns a NotFound error when the customer is unknown.
func (r *Repository) RequireCustomer(ctx context.Context, customerID string) error {
	ok, err := r.CustomerExists(ctx, customerID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found").
			WithDetails(map[string]any{"customer_id": customerID})
	}
	return nil
}

// RequireProduct returns a NotFound error when the product is unknown.
func (r *Repository) RequireProduct(ctx context.Context, productID string) error {
	ok, err := r.ProductExists(ctx, productID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

func (r *Repository) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(model).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
