package stock

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
)

// newTestService seeds a seller "s1" on a plan with a ceiling of 10 units.
func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	dbtest.SeedPlan(t, client, 1, "basic", 1, 10)
	dbtest.SeedSeller(t, client, "s1", "key", 1, 0)
	for _, p := range []string{"p1", "p2", "p3"} {
		dbtest.SeedProduct(t, client, p)
	}

	svc, err := NewService(ServiceParams{
		Tx:      client,
		Repo:    NewRepository(client.DB()),
		Catalog: catalog.NewRepository(client.DB()),
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, client
}

func TestAdjustStockWithinCeiling(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 5)

	row, err := svc.AdjustStock(context.Background(), "s1", "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 8, row.StockCount)

	_, err = svc.AdjustStock(context.Background(), "s1", "p1", 5)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 8, details["current"])
	assert.Equal(t, 10, details["ceiling"])
	assert.Equal(t, 8, dbtest.StockCount(t, client, "s1", "p1"))
}

func TestAdjustStockNeverBelowZero(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 2)

	_, err := svc.AdjustStock(context.Background(), "s1", "p1", -3)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded))
	assert.Equal(t, 2, dbtest.StockCount(t, client, "s1", "p1"))

	row, err := svc.AdjustStock(context.Background(), "s1", "p1", -2)
	require.NoError(t, err)
	assert.Equal(t, 0, row.StockCount)
	assert.Equal(t, 0, dbtest.StockCount(t, client, "s1", "p1"), "entry is kept at zero")
}

func TestAdjustStockFirstInsert(t *testing.T) {
	svc, client := newTestService(t)

	row, err := svc.AdjustStock(context.Background(), "s1", "p2", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, row.StockCount)
	assert.Equal(t, 4, dbtest.StockCount(t, client, "s1", "p2"))

	_, err = svc.AdjustStock(context.Background(), "s1", "p3", 11)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded))
	assert.Equal(t, -1, dbtest.StockCount(t, client, "s1", "p3"))
}

func TestAdjustStockNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, "s1", "p1", -1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "product not tracked", pkgerrors.As(err).Message())

	_, err = svc.AdjustStock(ctx, "s1", "p1", 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.AdjustStock(ctx, "s1", "unknown", 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "product not found", pkgerrors.As(err).Message())

	_, err = svc.AdjustStock(ctx, "ghost", "p1", 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "subscription not found", pkgerrors.As(err).Message())
}

func TestConcurrentAdjustStockRespectsCeiling(t *testing.T) {
	svc, client := newTestService(t)

	const writers = 25
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AdjustStock(context.Background(), "s1", "p1", 1)
			if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, oks)
	assert.Equal(t, 10, dbtest.StockCount(t, client, "s1", "p1"))
}

func TestReserveAndDecrement(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 5)
	dbtest.SeedStock(t, client, "s1", "p2", 2)

	err := svc.ReserveAndDecrement(context.Background(), "s1", []LineQuantity{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 2},
		{ProductID: "p1", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, 0, dbtest.StockCount(t, client, "s1", "p2"))
}

func TestReserveAndDecrementIsAllOrNothing(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 5)
	dbtest.SeedStock(t, client, "s1", "p2", 1)

	err := svc.ReserveAndDecrement(context.Background(), "s1", []LineQuantity{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 2},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "p2", details["product_id"])
	assert.Equal(t, "s1", details["seller_id"])

	assert.Equal(t, 5, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, 1, dbtest.StockCount(t, client, "s1", "p2"))
}

func TestReserveAndDecrementNamesFirstListedFailure(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 1)
	dbtest.SeedStock(t, client, "s1", "p2", 1)
	dbtest.SeedStock(t, client, "s1", "p3", 4)

	// rows are written p1, p2, p3 but the caller listed p2 first
	err := svc.ReserveAndDecrement(context.Background(), "s1", []LineQuantity{
		{ProductID: "p3", Quantity: 2},
		{ProductID: "p2", Quantity: 5},
		{ProductID: "p1", Quantity: 5},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "p2", details["product_id"])
	assert.Equal(t, 5, details["requested"])

	assert.Equal(t, 1, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, 1, dbtest.StockCount(t, client, "s1", "p2"))
	assert.Equal(t, 4, dbtest.StockCount(t, client, "s1", "p3"))
}

func TestInterleavedReserveAndAdjustStayWithinBounds(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 6)

	const rounds = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		added    int
	)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := svc.ReserveAndDecrement(context.Background(), "s1", []LineQuantity{{ProductID: "p1", Quantity: 3}})
			if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
				t.Errorf("unexpected reserve error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			_, err := svc.AdjustStock(context.Background(), "s1", "p1", 2)
			if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded) {
				t.Errorf("unexpected adjust error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	final := dbtest.StockCount(t, client, "s1", "p1")
	assert.GreaterOrEqual(t, final, 0)
	assert.LessOrEqual(t, final, 10)
	assert.Equal(t, 6-3*reserved+2*added, final)
}

func TestReserveAndDecrementTxUntrackedAndInvalid(t *testing.T) {
	svc, client := newTestService(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.ReserveAndDecrementTx(context.Background(), tx, []StockLine{{SellerID: "s1", ProductID: "p3", Quantity: 1}})
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.ReserveAndDecrementTx(context.Background(), tx, []StockLine{{SellerID: "s1", ProductID: "p1", Quantity: 0}})
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQuotaSnapshot(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p2", 1)
	dbtest.SeedStock(t, client, "s1", "p1", 7)

	rows, err := svc.QuotaSnapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p1", rows[0].ProductID)
	assert.Equal(t, 7, rows[0].StockCount)
	assert.Equal(t, "p2", rows[1].ProductID)

	_, err = svc.QuotaSnapshot(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestShipDecrementsPerOccurrence(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 3)
	dbtest.SeedStock(t, client, "s1", "p2", 1)

	require.NoError(t, svc.Ship(context.Background(), "s1", []string{"p1", "p2", "p1"}))
	assert.Equal(t, 1, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, 0, dbtest.StockCount(t, client, "s1", "p2"))

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventStockShipped, events[0].EventType)

	var envelope struct {
		Data outbox.StockShippedEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, envelope.Data.Shipped)
}

func TestShipIsAllOrNothing(t *testing.T) {
	svc, client := newTestService(t)
	dbtest.SeedStock(t, client, "s1", "p1", 3)
	dbtest.SeedStock(t, client, "s1", "p2", 1)

	err := svc.Ship(context.Background(), "s1", []string{"p1", "p2", "p2"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 3, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, 1, dbtest.StockCount(t, client, "s1", "p2"))

	err = svc.Ship(context.Background(), "s1", []string{"p1", "p3"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, 3, dbtest.StockCount(t, client, "s1", "p1"))
	assert.Equal(t, int64(0), dbtest.Count(t, client, &models.OutboxEvent{}))
}
