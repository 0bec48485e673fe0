package checkout

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	"github.com/angelmondragon/sellerhub-backend/internal/stock"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
)

var fixedNow = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	dbtest.SeedPlan(t, client, 1, "basic", 1, 10)
	dbtest.SeedSeller(t, client, "s1", "k", 1, 0)
	dbtest.SeedSeller(t, client, "s2", "k", 1, 0)
	dbtest.SeedCustomer(t, client, "c1")
	dbtest.SeedProduct(t, client, "p1")
	dbtest.SeedProduct(t, client, "p2")

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	catalogRepo := catalog.NewRepository(client.DB())
	publisher := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	stockSvc, err := stock.NewService(stock.ServiceParams{
		Tx:      client,
		Repo:    stock.NewRepository(client.DB()),
		Catalog: catalogRepo,
		Outbox:  publisher,
		Logger:  logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:        client,
		CartRepo:  cart.NewRepository(client.DB()),
		Orders:    NewRepository(client.DB()),
		Customers: catalogRepo,
		Stock:     stockSvc,
		Outbox:    publisher,
		Logger:    logg,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, client
}

func TestPurchaseCartSingleLine(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 3)
	dbtest.SeedCartLine(t, client, "c1", "p1", "s1", 3)

	res, err := svc.PurchaseCart(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, res.Empty)
	assert.Equal(t, 1, res.LineCount)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), res.OrderID)

	assert.Equal(t, 0, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Empty(t, dbtest.CartLines(t, client, "c1"))

	order, items, err := NewRepository(client.DB()).FindOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "c1", order.CustomerID)
	assert.True(t, fixedNow.Equal(order.PurchasedAt))
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].OrderItemID)
	assert.Equal(t, "s1", items[0].SellerID)
	assert.True(t, items[0].Price.IsZero())

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
	assert.Equal(t, res.OrderID, events[0].AggregateID)
}

func TestPurchaseCartLinesFollowCartOrder(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p2", 5)
	dbtest.SeedStock(t, client, "s2", "p1", 5)
	dbtest.SeedStock(t, client, "s1", "p1", 5)
	dbtest.SeedCartLine(t, client, "c1", "p1", "s2", 1)
	dbtest.SeedCartLine(t, client, "c1", "p2", "s1", 2)
	dbtest.SeedCartLine(t, client, "c1", "p1", "s1", 4)

	res, err := svc.PurchaseCart(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.LineCount)

	_, items, err := NewRepository(client.DB()).FindOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	got := [][2]string{}
	for _, item := range items {
		got = append(got, [2]string{item.SellerID, item.ProductID})
	}
	assert.Equal(t, [][2]string{{"s1", "p1"}, {"s1", "p2"}, {"s2", "p1"}}, got)

	assert.Equal(t, 1, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, 3, dbtest.StockCount(t, client, "s1", "p2"))
	assert.Equal(t, 4, dbtest.StockCount(t, client, "s2", "p1"))
}

func TestPurchaseCartEmpty(t *testing.T) {
	svc, client := newTestService(t)

	res, err := svc.PurchaseCart(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Empty(t, res.OrderID)
	assert.Equal(t, int64(0), dbtest.Count(t, client, &models.Order{}))
	assert.Equal(t, int64(0), dbtest.Count(t, client, &models.OutboxEvent{}))
}

func TestPurchaseCartInsufficientStockRollsBack(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 5)
	dbtest.SeedStock(t, client, "s2", "p2", 1)
	dbtest.SeedCartLine(t, client, "c1", "p1", "s1", 2)
	dbtest.SeedCartLine(t, client, "c1", "p2", "s2", 2)

	_, err := svc.PurchaseCart(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "p2", details["product_id"])

	assert.Equal(t, 5, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, 1, dbtest.StockCount(t, client, "s2", "p2"))
	assert.Len(t, dbtest.CartLines(t, client, "c1"), 2)
	assert.Equal(t, int64(0), dbtest.Count(t, client, &models.Order{}))
	assert.Equal(t, int64(0), dbtest.Count(t, client, &models.OrderItem{}))
	assert.Equal(t, int64(0), dbtest.Count(t, client, &models.OutboxEvent{}))
}

func TestPurchaseCartUntrackedStock(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedCartLine(t, client, "c1", "p1", "s1", 1)

	_, err := svc.PurchaseCart(context.Background(), "c1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Len(t, dbtest.CartLines(t, client, "c1"), 1)
}

func TestPurchaseCartUnknownCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PurchaseCart(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentPurchasesCompetingForStockPlaceOneOrder(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 4)

	const buyers = 6
	customers := make([]string, buyers)
	for i := range customers {
		customers[i] = fmt.Sprintf("buyer-%d", i)
		dbtest.SeedCustomer(t, client, customers[i])
		dbtest.SeedCartLine(t, client, customers[i], "p1", "s1", 4)
	}

	var (
		wg     sync.WaitGroup
		start  = make(chan struct{})
		orders = make([]*PurchaseResult, buyers)
		errs   = make([]error, buyers)
	)
	for i := range customers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			orders[i], errs[i] = svc.PurchaseCart(context.Background(), customers[i])
		}(i)
	}
	close(start)
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "only one purchase may succeed")
			winner = i
			continue
		}
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "unexpected error: %v", err)
	}
	require.NotEqual(t, -1, winner)
	assert.Equal(t, 1, orders[winner].LineCount)

	assert.Equal(t, 0, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, int64(1), dbtest.Count(t, client, &models.Order{}))
	assert.Equal(t, int64(1), dbtest.Count(t, client, &models.OrderItem{}))
	for i, customerID := range customers {
		lines := dbtest.CartLines(t, client, customerID)
		if i == winner {
			assert.Empty(t, lines)
			continue
		}
		require.Len(t, lines, 1)
		assert.Equal(t, 4, lines[0].Amount)
	}
}
