package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
)

const defaultMaxAttempts = 5

type referenceChecker interface {
	RequireCustomer(ctx context.Context, customerID string) error
	RequireProduct(ctx context.Context, productID string) error
}

// CartLineView is the public shape of a cart line.
type CartLineView struct {
	SellerID  string `json:"seller_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Service exposes cart persistence operations.
type Service interface {
	AdjustCart(ctx context.Context, customerID, productID, sellerID string, delta int) (*CartLineView, error)
	ViewCart(ctx context.Context, customerID string) ([]CartLineView, error)
}

// ServiceParams bundles cart dependencies. MaxAttempts bounds the
// compare-and-swap retries of a single adjustment.
type ServiceParams struct {
	Repo        CartRepository
	Catalog     referenceChecker
	Logger      *logger.Logger
	Metrics     *metrics.OperationMetrics
	MaxAttempts int
}

type service struct {
	repo        CartRepository
	catalog     referenceChecker
	logg        *logger.Logger
	metrics     *metrics.OperationMetrics
	maxAttempts int
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &service{
		repo:        params.Repo,
		catalog:     params.Catalog,
		logg:        params.Logger,
		metrics:     params.Metrics,
		maxAttempts: attempts,
	}, nil
}

// AdjustCart applies delta to the customer's line for (product, seller).
// A nil view with a nil error means the line does not exist afterwards.
// Increases are only accepted while the seller holds enough stock for the
// whole resulting amount; nothing is reserved.
func (s *service) AdjustCart(ctx context.Context, customerID, productID, sellerID string, delta int) (view *CartLineView, err error) {
	defer s.observe("update_cart", time.Now(), &err)

	key := LineKey{
		CustomerID: strings.TrimSpace(customerID),
		ProductID:  strings.TrimSpace(productID),
		SellerID:   strings.TrimSpace(sellerID),
	}
	if key.CustomerID == "" || key.ProductID == "" || key.SellerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id, product id and seller id required")
	}
	if err := s.catalog.RequireCustomer(ctx, key.CustomerID); err != nil {
		return nil, dbpkg.Classify(err, "check customer")
	}
	if err := s.catalog.RequireProduct(ctx, key.ProductID); err != nil {
		return nil, dbpkg.Classify(err, "check product")
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		view, done, err := s.applyOnce(ctx, key, delta)
		if err != nil {
			return nil, err
		}
		if done {
			s.logg.Info(s.logg.WithFields(s.logg.WithCustomerID(ctx, key.CustomerID), map[string]any{
				"product_id": key.ProductID,
				"seller_id":  key.SellerID,
				"delta":      delta,
			}), "cart adjusted")
			return view, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart line contention, retry")
}

// applyOnce reads the line and issues one conditional write. done is false
// when a concurrent writer changed the line in between.
func (s *service) applyOnce(ctx context.Context, key LineKey, delta int) (*CartLineView, bool, error) {
	line, err := s.repo.FindLine(ctx, key)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, dbpkg.Classify(err, "load cart line")
	}

	if line == nil {
		if delta <= 0 {
			return nil, true, nil
		}
		if err := s.requireStock(ctx, key, delta); err != nil {
			return nil, false, err
		}
		inserted, err := s.repo.InsertLine(ctx, key, delta)
		if err != nil {
			return nil, false, dbpkg.Classify(err, "insert cart line")
		}
		return viewOf(key, delta), inserted == 1, nil
	}

	if delta == 0 {
		return viewOf(key, line.Amount), true, nil
	}

	amount := line.Amount + delta
	if amount <= 0 {
		deleted, err := s.repo.DeleteLine(ctx, key, line.Amount)
		if err != nil {
			return nil, false, dbpkg.Classify(err, "delete cart line")
		}
		return nil, deleted == 1, nil
	}
	if amount > line.Amount {
		if err := s.requireStock(ctx, key, amount); err != nil {
			return nil, false, err
		}
	}
	swapped, err := s.repo.SwapAmount(ctx, key, line.Amount, amount)
	if err != nil {
		return nil, false, dbpkg.Classify(err, "update cart line")
	}
	return viewOf(key, amount), swapped == 1, nil
}

func (s *service) requireStock(ctx context.Context, key LineKey, wanted int) error {
	available, err := s.repo.StockCount(ctx, key.SellerID, key.ProductID)
	if err != nil {
		return dbpkg.Classify(err, "load stock")
	}
	if available < wanted {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"seller_id":  key.SellerID,
				"product_id": key.ProductID,
				"requested":  wanted,
				"available":  available,
			})
	}
	return nil
}

func (s *service) ViewCart(ctx context.Context, customerID string) ([]CartLineView, error) {
	customerID = strings.TrimSpace(customerID)
	if err := s.catalog.RequireCustomer(ctx, customerID); err != nil {
		return nil, dbpkg.Classify(err, "check customer")
	}
	lines, err := s.repo.ListLines(ctx, customerID)
	if err != nil {
		return nil, dbpkg.Classify(err, "list cart")
	}
	return Views(lines), nil
}

// Views converts stored lines, preserving their order.
func Views(lines []models.CartLine) []CartLineView {
	out := make([]CartLineView, 0, len(lines))
	for _, line := range lines {
		out = append(out, CartLineView{SellerID: line.SellerID, ProductID: line.ProductID, Quantity: line.Amount})
	}
	return out
}

func viewOf(key LineKey, amount int) *CartLineView {
	return &CartLineView{SellerID: key.SellerID, ProductID: key.ProductID, Quantity: amount}
}

func (s *service) observe(op string, started time.Time, errp *error) {
	s.metrics.Observe(op, started, *errp)
}
