package models

// SellerSubscription binds a seller to a plan and tracks the number of
// sessions currently open for that seller.
type SellerSubscription struct {
	SellerID      string `gorm:"column:seller_id;type:varchar(64);primaryKey"`
	SubscriberKey string `gorm:"column:subscriber_key;type:text;not null"`
	SessionCount  int    `gorm:"column:session_count;not null;default:0"`
	PlanID        int    `gorm:"column:plan_id;not null"`
}

func (SellerSubscription) TableName() string { return "seller_subscription" }
