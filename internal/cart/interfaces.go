package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// LineKey identifies one cart line.
type LineKey struct {
	CustomerID string
	ProductID  string
	SellerID   string
}

// CartRepository defines the persistence surface required by the cart service.
// Every write is conditional on the amount the caller last observed.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindLine(ctx context.Context, key LineKey) (*models.CartLine, error)
	ListLines(ctx context.Context, customerID string) ([]models.CartLine, error)
	InsertLine(ctx context.Context, key LineKey, amount int) (int64, error)
	SwapAmount(ctx context.Context, key LineKey, observed, amount int) (int64, error)
	DeleteLine(ctx context.Context, key LineKey, observed int) (int64, error)
	StockCount(ctx context.Context, sellerID, productID string) (int, error)
}
