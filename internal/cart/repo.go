package cart

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

type cartRepository struct {
	repo.Base
}

// NewRepository builds a cart repository around the provided DB handle.
func NewRepository(db *gorm.DB) CartRepository {
	return &cartRepository{Base: repo.NewBase(db)}
}

func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *cartRepository) FindLine(ctx context.Context, key LineKey) (*models.CartLine, error) {
	var line models.CartLine
	err := r.DB(ctx).
		Where("customer_id = ? AND product_id = ? AND seller_id = ?", key.CustomerID, key.ProductID, key.SellerID).
		Take(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// ListLines returns the customer's lines in cart-iteration order.
func (r *cartRepository) ListLines(ctx context.Context, customerID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.DB(ctx).
		Where("customer_id = ?", customerID).
		Order("seller_id ASC, product_id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *cartRepository) InsertLine(ctx context.Context, key LineKey, amount int) (int64, error) {
	res := r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CartLine{
			CustomerID: key.CustomerID,
			ProductID:  key.ProductID,
			SellerID:   key.SellerID,
			Amount:     amount,
		})
	return repo.Affected(res)
}

func (r *cartRepository) SwapAmount(ctx context.Context, key LineKey, observed, amount int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.CartLine{}).
		Where("customer_id = ? AND product_id = ? AND seller_id = ? AND amount = ?", key.CustomerID, key.ProductID, key.SellerID, observed).
		Update("amount", amount)
	return repo.Affected(res)
}

func (r *cartRepository) DeleteLine(ctx context.Context, key LineKey, observed int) (int64, error) {
	res := r.DB(ctx).
		Where("customer_id = ? AND product_id = ? AND seller_id = ? AND amount = ?", key.CustomerID, key.ProductID, key.SellerID, observed).
		Delete(&models.CartLine{})
	return repo.Affected(res)
}

// StockCount returns the seller's current count for the product; an
// untracked product counts as zero.
func (r *cartRepository) StockCount(ctx context.Context, sellerID, productID string) (int, error) {
	var row models.SellerStock
	err := r.DB(ctx).
		Where("seller_id = ? AND product_id = ?", sellerID, productID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.StockCount, nil
}
