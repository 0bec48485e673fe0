package checkout

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// Repository writes order headers and lines.
type Repository struct {
	repo.Base
}

// NewRepository constructs an orders repository bound to the provided DB.
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

// CreateOrder inserts the order header and its lines.
func (r *Repository) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	db := r.DB(ctx)
	if err := db.Create(order).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.Create(&items).Error
}

// FindOrder loads an order header with its lines ordered by sequence.
func (r *Repository) FindOrder(ctx context.Context, orderID string) (*models.Order, []models.OrderItem, error) {
	var order models.Order
	if err := r.DB(ctx).Where("order_id = ?", orderID).Take(&order).Error; err != nil {
		return nil, nil, err
	}
	var items []models.OrderItem
	if err := r.DB(ctx).Where("order_id = ?", orderID).Order("order_item_id ASC").Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return &order, items, nil
}
