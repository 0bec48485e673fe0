package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

type saleRow struct {
	PurchasedAt time.Time       `gorm:"column:order_purchase_timestamp"`
	Price       decimal.Decimal `gorm:"column:price"`
}

// Repository reads sales history.
type Repository struct {
	repo.Base
}

// NewRepository constructs a reports repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) sellerExists(ctx context.Context, sellerID string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Seller{}).Where("seller_id = ?", sellerID).Count(&count).Error
	return count > 0, err
}

// sellerSales returns every order line the seller sold with its purchase time.
func (r *Repository) sellerSales(ctx context.Context, sellerID string) ([]saleRow, error) {
	var rows []saleRow
	err := r.DB(ctx).
		Table("order_items").
		Select("orders.order_purchase_timestamp, order_items.price").
		Joins("JOIN orders ON orders.order_id = order_items.order_id").
		Where("order_items.seller_id = ?", sellerID).
		Scan(&rows).Error
	return rows, err
}
