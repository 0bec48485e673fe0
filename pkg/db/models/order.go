package models

import "time"

// Order is the immutable header written by checkout.
type Order struct {
	OrderID     string    `gorm:"column:order_id;type:varchar(64);primaryKey"`
	CustomerID  string    `gorm:"column:customer_id;type:varchar(64);not null;index"`
	PurchasedAt time.Time `gorm:"column:order_purchase_timestamp;not null"`
}

func (Order) TableName() string { return "orders" }
