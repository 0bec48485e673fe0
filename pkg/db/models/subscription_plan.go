package models

// SubscriptionPlan is a pre-existing tier. Its two limits bound the
// seller's parallel sessions and the stock held per product.
type SubscriptionPlan struct {
	PlanID              int    `gorm:"column:plan_id;primaryKey;autoIncrement:false"`
	Name                string `gorm:"column:name;type:varchar(64);not null"`
	MaxParallelSessions int    `gorm:"column:max_parallel_sessions;not null"`
	MaxStockPerProduct  int    `gorm:"column:max_stock_per_product;not null"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }
