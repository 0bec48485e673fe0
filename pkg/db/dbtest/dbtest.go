// Package dbtest provides isolated SQLite databases and fixture helpers for
// package tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// Open returns a client bound to a fresh in-memory database with every model
// migrated. The pool is capped at one connection so concurrent callers queue
// on transactions the same way they would contend on row locks.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := "file:sellerhub_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db.NewFromGorm(conn)
}

// SeedPlan inserts a subscription plan.
func SeedPlan(t testing.TB, client *db.Client, planID int, name string, maxSessions, maxStock int) models.SubscriptionPlan {
	t.Helper()
	plan := models.SubscriptionPlan{
		PlanID:              planID,
		Name:                name,
		MaxParallelSessions: maxSessions,
		MaxStockPerProduct:  maxStock,
	}
	mustCreate(t, client, &plan)
	return plan
}

// SeedSeller inserts a seller and its subscription with the given stored key
// and session count.
func SeedSeller(t testing.TB, client *db.Client, sellerID, subscriberKey string, planID, sessionCount int) models.SellerSubscription {
	t.Helper()
	mustCreate(t, client, &models.Seller{SellerID: sellerID, ZipCodePrefix: "01001", City: "sao paulo", State: "SP"})
	sub := models.SellerSubscription{
		SellerID:      sellerID,
		SubscriberKey: subscriberKey,
		SessionCount:  sessionCount,
		PlanID:        planID,
	}
	mustCreate(t, client, &sub)
	return sub
}

// SeedCustomer inserts a customer.
func SeedCustomer(t testing.TB, client *db.Client, customerID string) {
	t.Helper()
	mustCreate(t, client, &models.Customer{CustomerID: customerID})
}

// SeedProduct inserts a product.
func SeedProduct(t testing.TB, client *db.Client, productID string) {
	t.Helper()
	mustCreate(t, client, &models.Product{ProductID: productID})
}

// SeedStock inserts a stock entry.
func SeedStock(t testing.TB, client *db.Client, sellerID, productID string, count int) {
	t.Helper()
	mustCreate(t, client, &models.SellerStock{SellerID: sellerID, ProductID: productID, StockCount: count})
}

// SeedCartLine inserts a cart line.
func SeedCartLine(t testing.TB, client *db.Client, customerID, productID, sellerID string, amount int) {
	t.Helper()
	mustCreate(t, client, &models.CartLine{CustomerID: customerID, ProductID: productID, SellerID: sellerID, Amount: amount})
}

// SeedOrderItem inserts an order line with a recorded price.
func SeedOrderItem(t testing.TB, client *db.Client, orderID string, seq int, productID, sellerID string, price decimal.Decimal) {
	t.Helper()
	mustCreate(t, client, &models.OrderItem{OrderID: orderID, OrderItemID: seq, ProductID: productID, SellerID: sellerID, Price: price})
}

// StockCount returns the stored count, or -1 when no entry exists.
func StockCount(t testing.TB, client *db.Client, sellerID, productID string) int {
	t.Helper()
	var rows []models.SellerStock
	if err := client.DB().Where("seller_id = ? AND product_id = ?", sellerID, productID).Find(&rows).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if len(rows) == 0 {
		return -1
	}
	return rows[0].StockCount
}

// SessionCount returns the seller's current session count.
func SessionCount(t testing.TB, client *db.Client, sellerID string) int {
	t.Helper()
	var sub models.SellerSubscription
	if err := client.DB().Where("seller_id = ?", sellerID).First(&sub).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	return sub.SessionCount
}

// CartLines returns a customer's stored lines ordered by seller and product.
func CartLines(t testing.TB, client *db.Client, customerID string) []models.CartLine {
	t.Helper()
	var lines []models.CartLine
	if err := client.DB().Where("customer_id = ?", customerID).Order("seller_id, product_id").Find(&lines).Error; err != nil {
		t.Fatalf("load cart: %v", err)
	}
	return lines
}

// Count returns the number of rows of the given model.
func Count(t testing.TB, client *db.Client, model any) int64 {
	t.Helper()
	var n int64
	if err := client.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func mustCreate(t testing.TB, client *db.Client, value any) {
	t.Helper()
	if err := client.DB().Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
