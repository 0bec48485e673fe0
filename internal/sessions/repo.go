package sessions

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// planSessionCeiling resolves the seller's current max_parallel_sessions.
const planSessionCeiling = "(SELECT p.max_parallel_sessions FROM subscription_plans p WHERE p.plan_id = seller_subscription.plan_id)"

// Repository moves the per-seller session counter.
type Repository struct {
	repo.Base
}

// NewRepository constructs a sessions repository bound to the provided DB.
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

// FindSubscription loads the seller's subscription row.
func (r *Repository) FindSubscription(ctx context.Context, sellerID string) (*models.SellerSubscription, error) {
	var sub models.SellerSubscription
	if err := r.DB(ctx).Where("seller_id = ?", sellerID).Take(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// AcquireSlot increments session_count when the plan still has a free slot.
// Zero rows affected means every slot is taken.
func (r *Repository) AcquireSlot(ctx context.Context, sellerID string) (int64, error) {
	res := r.DB(ctx).
		Model(&models.SellerSubscription{}).
		Where("seller_id = ?", sellerID).
		Where("session_count < "+planSessionCeiling).
		Update("session_count", gorm.Expr("session_count + 1"))
	return repo.Affected(res)
}

// ReleaseSlot decrements session_count, never below zero.
func (r *Repository) ReleaseSlot(ctx context.Context, sellerID string) (int64, error) {
	res := r.DB(ctx).
		Model(&models.SellerSubscription{}).
		Where("seller_id = ? AND session_count > 0", sellerID).
		Update("session_count", gorm.Expr("session_count - 1"))
	return repo.Affected(res)
}
