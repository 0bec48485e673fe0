package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sellerhub-backend/api/responses"
	"github.com/angelmondragon/sellerhub-backend/api/validators"
	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

type cartService interface {
	AdjustCart(ctx context.Context, customerID, productID, sellerID string, delta int) (*cart.CartLineView, error)
	ViewCart(ctx context.Context, customerID string) ([]cart.CartLineView, error)
}

type purchaser interface {
	PurchaseCart(ctx context.Context, customerID string) (*checkout.PurchaseResult, error)
}

type cartDeltaRequest struct {
	ProductID string `json:"product_id" validate:"required,entity_id"`
	SellerID  string `json:"seller_id" validate:"required,entity_id"`
	Delta     *int   `json:"delta" validate:"required"`
}

type cartResponse struct {
	CustomerID string              `json:"customer_id"`
	Lines      []cart.CartLineView `json:"lines"`
}

func CartFetch(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, err := validators.PathID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := svc.ViewCart(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if lines == nil {
			lines = []cart.CartLineView{}
		}
		responses.WriteSuccess(w, cartResponse{CustomerID: customerID, Lines: lines})
	}
}

// CartAdjust changes the quantity of one cart line by a signed delta. A
// line that drops to zero is removed and answered with 204.
func CartAdjust(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, err := validators.PathID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartDeltaRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.AdjustCart(r.Context(), customerID, payload.ProductID, payload.SellerID, *payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if line == nil {
			responses.WriteNoContent(w)
			return
		}
		responses.WriteSuccess(w, line)
	}
}

// CartPurchase checks the customer's cart out into an order.
func CartPurchase(svc purchaser, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		customerID, err := validators.PathID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PurchaseCart(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.Empty {
			responses.WriteSuccess(w, result)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
