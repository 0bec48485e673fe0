package models

// Product is reference data; this service never writes it.
type Product struct {
	ProductID    string  `gorm:"column:product_id;type:varchar(64);primaryKey"`
	CategoryName *string `gorm:"column:product_category_name;type:varchar(128)"`
}

func (Product) TableName() string { return "products" }
