package stock

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// stockCeiling resolves max_stock_per_product for the row's seller.
const stockCeiling = `(SELECT p.max_stock_per_product
	FROM seller_subscription s
	JOIN subscription_plans p ON p.plan_id = s.plan_id
	WHERE s.seller_id = seller_stocks.seller_id)`

// Repository reads and moves seller stock counts.
type Repository struct {
	repo.Base
}

// NewRepository constructs a stock repository bound to the provided DB.
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

// FindStock loads one stock entry.
func (r *Repository) FindStock(ctx context.Context, sellerID, productID string) (*models.SellerStock, error) {
	var row models.SellerStock
	err := r.DB(ctx).
		Where("seller_id = ? AND product_id = ?", sellerID, productID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListBySeller returns every stock entry of a seller ordered by product id.
func (r *Repository) ListBySeller(ctx context.Context, sellerID string) ([]models.SellerStock, error) {
	var rows []models.SellerStock
	err := r.DB(ctx).
		Where("seller_id = ?", sellerID).
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}

// PlanCeiling returns max_stock_per_product of the seller's current plan.
func (r *Repository) PlanCeiling(ctx context.Context, sellerID string) (int, error) {
	var plan models.SubscriptionPlan
	err := r.DB(ctx).
		Model(&models.SubscriptionPlan{}).
		Joins("JOIN seller_subscription ON seller_subscription.plan_id = subscription_plans.plan_id").
		Where("seller_subscription.seller_id = ?", sellerID).
		Take(&plan).Error
	if err != nil {
		return 0, err
	}
	return plan.MaxStockPerProduct, nil
}

// ApplyDelta adds delta to an existing entry when the result stays within
// [0, plan ceiling]. Zero rows affected means the entry is missing or the
// bounds check failed.
func (r *Repository) ApplyDelta(ctx context.Context, sellerID, productID string, delta int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.SellerStock{}).
		Where("seller_id = ? AND product_id = ?", sellerID, productID).
		Where("stock_count + ? >= 0", delta).
		Where("stock_count + ? <= "+stockCeiling, delta).
		Update("stock_count", gorm.Expr("stock_count + ?", delta))
	return repo.Affected(res)
}

// InsertIfAbsent creates the entry unless one already exists. Zero rows
// affected means another writer created it first.
func (r *Repository) InsertIfAbsent(ctx context.Context, row *models.SellerStock) (int64, error) {
	res := r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	return repo.Affected(res)
}

// Decrement removes qty units when at least qty are held.
func (r *Repository) Decrement(ctx context.Context, sellerID, productID string, qty int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.SellerStock{}).
		Where("seller_id = ? AND product_id = ? AND stock_count >= ?", sellerID, productID, qty).
		Update("stock_count", gorm.Expr("stock_count - ?", qty))
	return repo.Affected(res)
}

// Covers reports whether at least qty units are held, without changing them.
func (r *Repository) Covers(ctx context.Context, sellerID, productID string, qty int) (bool, error) {
	var n int64
	err := r.DB(ctx).
		Model(&models.SellerStock{}).
		Where("seller_id = ? AND product_id = ? AND stock_count >= ?", sellerID, productID, qty).
		Count(&n).Error
	return n > 0, err
}
