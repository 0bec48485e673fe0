package models

// CartLine is a customer's intent to buy Amount units of a product from a
// specific seller. A line never persists with Amount <= 0.
type CartLine struct {
	CustomerID string `gorm:"column:customer_id;type:varchar(64);primaryKey"`
	ProductID  string `gorm:"column:product_id;type:varchar(64);primaryKey"`
	SellerID   string `gorm:"column:seller_id;type:varchar(64);primaryKey"`
	Amount     int    `gorm:"column:amount;not null"`
}

func (CartLine) TableName() string { return "customer_carts" }
