package models

// SellerStock is the quantity of one product a seller holds.
type SellerStock struct {
	SellerID   string `gorm:"column:seller_id;type:varchar(64);primaryKey"`
	ProductID  string `gorm:"column:product_id;type:varchar(64);primaryKey"`
	StockCount int    `gorm:"column:stock_count;not null"`
}

func (SellerStock) TableName() string { return "seller_stocks" }
