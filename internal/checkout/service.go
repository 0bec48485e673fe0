package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/stock"
	dbpkg "github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerChecker interface {
	RequireCustomer(ctx context.Context, customerID string) error
}

type stockReserver interface {
	ReserveAndDecrementTx(ctx context.Context, tx *gorm.DB, lines []stock.StockLine) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PurchaseResult summarises a checkout. Empty is set when the cart had no
// lines and nothing was written.
type PurchaseResult struct {
	OrderID   string `json:"order_id,omitempty"`
	LineCount int    `json:"line_count"`
	Empty     bool   `json:"empty"`
}

// Service executes checkout orchestration.
type Service interface {
	PurchaseCart(ctx context.Context, customerID string) (*PurchaseResult, error)
}

// ServiceParams wires checkout dependencies.
type ServiceParams struct {
	Tx        txRunner
	CartRepo  cart.CartRepository
	Orders    *Repository
	Customers customerChecker
	Stock     stockReserver
	Outbox    outboxPublisher
	Logger    *logger.Logger
	Metrics   *metrics.OperationMetrics
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	cartRepo  cart.CartRepository
	orders    *Repository
	customers customerChecker
	stock     stockReserver
	outbox    outboxPublisher
	logg      *logger.Logger
	metrics   *metrics.OperationMetrics
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer checker required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        params.Tx,
		cartRepo:  params.CartRepo,
		orders:    params.Orders,
		customers: params.Customers,
		stock:     params.Stock,
		outbox:    params.Outbox,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

// PurchaseCart turns the customer's cart into an order in one transaction:
// stock for every line is decremented, the order and its lines are written
// and the cart is emptied, or none of that happens.
func (s *service) PurchaseCart(ctx context.Context, customerID string) (result *PurchaseResult, err error) {
	defer s.observe("purchase", time.Now(), &err)

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if err := s.customers.RequireCustomer(ctx, customerID); err != nil {
		return nil, dbpkg.Classify(err, "check customer")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)

		lines, err := cartRepo.ListLines(ctx, customerID)
		if err != nil {
			return dbpkg.Classify(err, "load cart")
		}
		if len(lines) == 0 {
			result = &PurchaseResult{Empty: true}
			return nil
		}

		stockLines := make([]stock.StockLine, len(lines))
		for i, line := range lines {
			stockLines[i] = stock.StockLine{SellerID: line.SellerID, ProductID: line.ProductID, Quantity: line.Amount}
		}
		if err := s.stock.ReserveAndDecrementTx(ctx, tx, stockLines); err != nil {
			return err
		}

		order := &models.Order{
			OrderID:     newOrderID(),
			CustomerID:  customerID,
			PurchasedAt: s.now().UTC(),
		}
		items := make([]models.OrderItem, len(lines))
		eventLines := make([]outbox.OrderLineData, len(lines))
		for i, line := range lines {
			items[i] = models.OrderItem{
				OrderID:     order.OrderID,
				OrderItemID: i + 1,
				ProductID:   line.ProductID,
				SellerID:    line.SellerID,
				Price:       decimal.Zero,
			}
			eventLines[i] = outbox.OrderLineData{
				OrderItemID: i + 1,
				SellerID:    line.SellerID,
				ProductID:   line.ProductID,
				Quantity:    line.Amount,
				Price:       decimal.Zero,
			}
		}
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order, items); err != nil {
			return dbpkg.Classify(err, "create order")
		}

		for _, line := range lines {
			key := cart.LineKey{CustomerID: customerID, ProductID: line.ProductID, SellerID: line.SellerID}
			deleted, err := cartRepo.DeleteLine(ctx, key, line.Amount)
			if err != nil {
				return dbpkg.Classify(err, "clear cart")
			}
			if deleted == 0 {
				return pkgerrors.New(pkgerrors.CodeDependency, "cart changed during checkout, retry")
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.OrderID,
			Actor:         &outbox.ActorRef{CustomerID: customerID},
			Data: outbox.OrderCreatedEvent{
				OrderID:     order.OrderID,
				CustomerID:  customerID,
				PurchasedAt: order.PurchasedAt,
				Lines:       eventLines,
			},
			Version: 1,
		}); err != nil {
			return dbpkg.Classify(err, "emit order created")
		}

		result = &PurchaseResult{OrderID: order.OrderID, LineCount: len(items)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Empty {
		logCtx := s.logg.WithFields(s.logg.WithCustomerID(ctx, customerID), map[string]any{
			"order_id": result.OrderID,
			"lines":    result.LineCount,
		})
		s.logg.Info(logCtx, "order placed")
	}
	return result, nil
}

func (s *service) observe(op string, started time.Time, errp *error) {
	s.metrics.Observe(op, started, *errp)
}

// newOrderID returns a random UUID rendered as 32 lowercase hex characters.
func newOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
