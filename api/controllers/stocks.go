package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sellerhub-backend/api/responses"
	"github.com/angelmondragon/sellerhub-backend/api/validators"
	"github.com/angelmondragon/sellerhub-backend/internal/subscriptions"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

type stockAdjuster interface {
	AdjustStock(ctx context.Context, sellerID, productID string, delta int) (*models.SellerStock, error)
}

type quotaReader interface {
	QuotaSnapshot(ctx context.Context, sellerID string) ([]models.SellerStock, error)
}

type planLimitsReader interface {
	CurrentPlanLimits(ctx context.Context, sellerID string) (*subscriptions.PlanLimits, error)
}

type shipper interface {
	Ship(ctx context.Context, sellerID string, productIDs []string) error
}

type stockDeltaRequest struct {
	Delta *int `json:"delta" validate:"required"`
}

type shipRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,required,entity_id"`
}

type stockEntry struct {
	ProductID  string `json:"product_id"`
	StockCount int    `json:"stock_count"`
}

type quotaResponse struct {
	SellerID string `json:"seller_id"`
	subscriptions.PlanLimits
	Stocks []stockEntry `json:"stocks"`
}

func newStockEntry(row models.SellerStock) stockEntry {
	return stockEntry{ProductID: row.ProductID, StockCount: row.StockCount}
}

// StockAdjust applies a signed delta to one of the seller's products.
func StockAdjust(svc stockAdjuster, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}
		sellerID, err := requireSeller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.PathID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockDeltaRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.AdjustStock(r.Context(), sellerID, productID, *payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStockEntry(*row))
	}
}

// StockQuota lists the seller's stock next to the plan's per-product ceiling.
func StockQuota(stock quotaReader, limits planLimitsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stock == nil || limits == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}
		sellerID, err := requireSeller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		planLimits, err := limits.CurrentPlanLimits(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := stock.QuotaSnapshot(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := quotaResponse{SellerID: sellerID, PlanLimits: *planLimits, Stocks: make([]stockEntry, len(rows))}
		for i, row := range rows {
			resp.Stocks[i] = newStockEntry(row)
		}
		responses.WriteSuccess(w, resp)
	}
}

// StockShip takes one unit of stock per listed product id.
func StockShip(svc shipper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}
		sellerID, err := requireSeller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shipRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Ship(r.Context(), sellerID, payload.ProductIDs); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "shipped", "units": len(payload.ProductIDs)})
	}
}
