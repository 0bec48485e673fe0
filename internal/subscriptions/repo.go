package subscriptions

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// Repository persists sellers, their subscriptions and reads plans.
type Repository struct {
	repo.Base
}

// NewRepository constructs a subscriptions repository bound to the provided DB.
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

// FindPlan loads a plan by id.
func (r *Repository) FindPlan(ctx context.Context, planID int) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.DB(ctx).Where("plan_id = ?", planID).Take(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListPlans returns every plan ordered by id.
func (r *Repository) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := r.DB(ctx).Order("plan_id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// FindSubscription loads the subscription row for a seller.
func (r *Repository) FindSubscription(ctx context.Context, sellerID string) (*models.SellerSubscription, error) {
	var sub models.SellerSubscription
	if err := r.DB(ctx).Where("seller_id = ?", sellerID).Take(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindPlanForSeller loads the plan the seller is currently subscribed to.
func (r *Repository) FindPlanForSeller(ctx context.Context, sellerID string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.DB(ctx).
		Model(&models.SubscriptionPlan{}).
		Joins("JOIN seller_subscription ON seller_subscription.plan_id = subscription_plans.plan_id").
		Where("seller_subscription.seller_id = ?", sellerID).
		Take(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// SellerExists reports whether a seller row is present.
func (r *Repository) SellerExists(ctx context.Context, sellerID string) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Seller{}).Where("seller_id = ?", sellerID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateSeller inserts the seller and its subscription. Callers run it inside
// a transaction.
func (r *Repository) CreateSeller(ctx context.Context, seller *models.Seller, sub *models.SellerSubscription) error {
	db := r.DB(ctx)
	if err := db.Create(seller).Error; err != nil {
		return err
	}
	return db.Create(sub).Error
}

// SwitchPlan points the subscription at newPlanID provided the current plan
// allows no more parallel sessions than maxSessions. It returns the number of
// rows changed; zero means the seller is missing or the guard failed.
func (r *Repository) SwitchPlan(ctx context.Context, sellerID string, newPlanID, maxSessions int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.SellerSubscription{}).
		Where("seller_id = ?", sellerID).
		Where("(SELECT p.max_parallel_sessions FROM subscription_plans p WHERE p.plan_id = seller_subscription.plan_id) <= ?", maxSessions).
		Update("plan_id", newPlanID)
	return repo.Affected(res)
}
