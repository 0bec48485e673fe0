package models

import "github.com/shopspring/decimal"

// OrderItem is one purchased line. OrderItemID is a 1-based sequence
// number within the order.
type OrderItem struct {
	OrderID     string          `gorm:"column:order_id;type:varchar(64);primaryKey"`
	OrderItemID int             `gorm:"column:order_item_id;primaryKey;autoIncrement:false"`
	ProductID   string          `gorm:"column:product_id;type:varchar(64);not null"`
	SellerID    string          `gorm:"column:seller_id;type:varchar(64);not null;index"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
}

func (OrderItem) TableName() string { return "order_items" }
