package models

// Customer is reference data; this service never writes it.
type Customer struct {
	CustomerID    string  `gorm:"column:customer_id;type:varchar(64);primaryKey"`
	ZipCodePrefix *string `gorm:"column:customer_zip_code_prefix;type:varchar(16)"`
	City          *string `gorm:"column:customer_city;type:varchar(128)"`
	State         *string `gorm:"column:customer_state;type:varchar(8)"`
}

func (Customer) TableName() string { return "customers" }
