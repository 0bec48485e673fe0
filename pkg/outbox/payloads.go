package outbox

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	PurchasedAt time.Time       `json:"purchasedAt"`
	Lines       []OrderLineData `json:"lines"`
}

type OrderLineData struct {
	OrderItemID int             `json:"orderItemId"`
	SellerID    string          `json:"sellerId"`
	ProductID   string          `json:"productId"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type SellerRegisteredEvent struct {
	SellerID string `json:"sellerId"`
	PlanID   int    `json:"planId"`
}

type SubscriptionChangedEvent struct {
	SellerID       string `json:"sellerId"`
	PreviousPlanID int    `json:"previousPlanId"`
	PlanID         int    `json:"planId"`
}

type StockShippedEvent struct {
	SellerID string         `json:"sellerId"`
	Shipped  map[string]int `json:"shipped"`
}
