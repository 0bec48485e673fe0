package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	dbpkg "github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
)

// maxInsertRaces bounds how often a first insert may lose to a concurrent
// writer before the update path is retried.
const maxInsertRaces = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the stock ledger. Every count stays within [0, ceiling of the
// seller's current plan] at every commit.
type Service interface {
	AdjustStock(ctx context.Context, sellerID, productID string, delta int) (*models.SellerStock, error)
	ReserveAndDecrement(ctx context.Context, sellerID string, lines []LineQuantity) error
	ReserveAndDecrementTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error
	QuotaSnapshot(ctx context.Context, sellerID string) ([]models.SellerStock, error)
	Ship(ctx context.Context, sellerID string, productIDs []string) error
}

// ServiceParams wires the stock ledger dependencies.
type ServiceParams struct {
	Tx      txRunner
	Repo    *Repository
	Catalog *catalog.Repository
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Metrics *metrics.OperationMetrics
}

type service struct {
	tx      txRunner
	repo    *Repository
	catalog *catalog.Repository
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.OperationMetrics
}

// NewService builds the stock ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      params.Tx,
		repo:    params.Repo,
		catalog: params.Catalog,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) AdjustStock(ctx context.Context, sellerID, productID string, delta int) (row *models.SellerStock, err error) {
	defer s.observe("update_stock", time.Now(), &err)

	sellerID = strings.TrimSpace(sellerID)
	productID = strings.TrimSpace(productID)
	if sellerID == "" || productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id and product id required")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ceiling, err := repo.PlanCeiling(ctx, sellerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return dbpkg.Classify(err, "load plan ceiling")
		}

		for attempt := 0; attempt < maxInsertRaces; attempt++ {
			current, err := repo.FindStock(ctx, sellerID, productID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if delta <= 0 {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not tracked").
						WithDetails(map[string]any{"seller_id": sellerID, "product_id": productID})
				}
				if delta > ceiling {
					return outOfBounds(0, delta, ceiling)
				}
				if err := s.catalog.WithTx(tx).RequireProduct(ctx, productID); err != nil {
					return dbpkg.Classify(err, "check product")
				}
				created := &models.SellerStock{SellerID: sellerID, ProductID: productID, StockCount: delta}
				inserted, err := repo.InsertIfAbsent(ctx, created)
				if err != nil {
					return dbpkg.Classify(err, "insert stock")
				}
				if inserted == 1 {
					row = created
					return nil
				}
				continue
			case err != nil:
				return dbpkg.Classify(err, "load stock")
			}

			applied, err := repo.ApplyDelta(ctx, sellerID, productID, delta)
			if err != nil {
				return dbpkg.Classify(err, "apply stock delta")
			}
			if applied == 0 {
				return outOfBounds(current.StockCount, delta, ceiling)
			}
			row, err = repo.FindStock(ctx, sellerID, productID)
			if err != nil {
				return dbpkg.Classify(err, "reload stock")
			}
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeDependency, "stock entry contention, retry")
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithSellerID(ctx, sellerID), map[string]any{
		"product_id":  productID,
		"delta":       delta,
		"stock_count": row.StockCount,
	})
	s.logg.Info(logCtx, "stock adjusted")
	return row, nil
}

func (s *service) ReserveAndDecrement(ctx context.Context, sellerID string, lines []LineQuantity) (err error) {
	defer s.observe("reserve_stock", time.Now(), &err)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReserveAndDecrementTx(ctx, tx, sellerLines(sellerID, lines))
	})
}

// ReserveAndDecrementTx decrements every line inside the caller's
// transaction. Rows are written in key order; when some lines cannot be
// covered the error names the one the caller listed first, and the caller
// must roll back so no line stays decremented.
func (s *service) ReserveAndDecrementTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	var failed *mergedLine
	for i := range merged {
		line := &merged[i]
		if failed != nil {
			if line.first > failed.first {
				continue
			}
			covered, err := repo.Covers(ctx, line.SellerID, line.ProductID, line.Quantity)
			if err != nil {
				return dbpkg.Classify(err, "check stock")
			}
			if !covered {
				failed = line
			}
			continue
		}

		decremented, err := repo.Decrement(ctx, line.SellerID, line.ProductID, line.Quantity)
		if err != nil {
			return dbpkg.Classify(err, "decrement stock")
		}
		if decremented == 0 {
			failed = line
		}
	}
	if failed != nil {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"seller_id":  failed.SellerID,
				"product_id": failed.ProductID,
				"requested":  failed.Quantity,
			})
	}
	return nil
}

func (s *service) QuotaSnapshot(ctx context.Context, sellerID string) ([]models.SellerStock, error) {
	sellerID = strings.TrimSpace(sellerID)
	if _, err := s.repo.PlanCeiling(ctx, sellerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, dbpkg.Classify(err, "load plan ceiling")
	}
	rows, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, dbpkg.Classify(err, "list stock")
	}
	if rows == nil {
		rows = []models.SellerStock{}
	}
	return rows, nil
}

// Ship removes one unit per listed product occurrence. Every product must be
// tracked and the whole shipment succeeds or none of it does.
func (s *service) Ship(ctx context.Context, sellerID string, productIDs []string) (err error) {
	defer s.observe("ship", time.Now(), &err)

	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if len(productIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one product required")
	}

	shipped := make(map[string]int, len(productIDs))
	lines := make([]StockLine, 0, len(productIDs))
	for _, productID := range productIDs {
		productID = strings.TrimSpace(productID)
		if productID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		shipped[productID]++
		lines = append(lines, StockLine{SellerID: sellerID, ProductID: productID, Quantity: 1})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		tracked := make([]string, 0, len(shipped))
		for productID := range shipped {
			tracked = append(tracked, productID)
		}
		sort.Strings(tracked)
		for _, productID := range tracked {
			if _, err := repo.FindStock(ctx, sellerID, productID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not tracked").
						WithDetails(map[string]any{"seller_id": sellerID, "product_id": productID})
				}
				return dbpkg.Classify(err, "load stock")
			}
		}

		if err := s.ReserveAndDecrementTx(ctx, tx, lines); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockShipped,
			AggregateType: enums.AggregateSellerStock,
			AggregateID:   sellerID,
			Actor:         &outbox.ActorRef{SellerID: sellerID},
			Data:          outbox.StockShippedEvent{SellerID: sellerID, Shipped: shipped},
			Version:       1,
		}); err != nil {
			return dbpkg.Classify(err, "emit stock shipped")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithField(s.logg.WithSellerID(ctx, sellerID), "units", len(lines)), "stock shipped")
	return nil
}

func (s *service) observe(op string, started time.Time, errp *error) {
	s.metrics.Observe(op, started, *errp)
}

func outOfBounds(current, delta, ceiling int) error {
	return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "stock out of bounds").
		WithDetails(map[string]any{"current": current, "delta": delta, "ceiling": ceiling})
}
