package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sellerhub-backend/api/responses"
	"github.com/angelmondragon/sellerhub-backend/internal/reports"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

type grossIncomeReader interface {
	GrossIncome(ctx context.Context, sellerID string) ([]reports.MonthlyGross, error)
}

func GrossIncome(svc grossIncomeReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		sellerID, err := requireSeller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		months, err := svc.GrossIncome(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, months)
	}
}
