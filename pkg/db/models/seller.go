package models

// Seller is a marketplace vendor. Rows are created by sign-up.
type Seller struct {
	SellerID      string `gorm:"column:seller_id;type:varchar(64);primaryKey"`
	ZipCodePrefix string `gorm:"column:seller_zip_code_prefix;type:varchar(16)"`
	City          string `gorm:"column:seller_city;type:varchar(128)"`
	State         string `gorm:"column:seller_state;type:varchar(8)"`
}

func (Seller) TableName() string { return "sellers" }
