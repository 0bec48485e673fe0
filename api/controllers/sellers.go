package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sellerhub-backend/api/middleware"
	"github.com/angelmondragon/sellerhub-backend/api/responses"
	"github.com/angelmondragon/sellerhub-backend/api/validators"
	"github.com/angelmondragon/sellerhub-backend/internal/subscriptions"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

type sellerRegistrar interface {
	Register(ctx context.Context, input subscriptions.RegisterInput) (*subscriptions.SubscriptionView, error)
}

type planCatalog interface {
	ListPlans(ctx context.Context) ([]subscriptions.PlanView, error)
}

type subscriptionManager interface {
	GetSubscription(ctx context.Context, sellerID string) (*subscriptions.SubscriptionView, error)
	ChangePlan(ctx context.Context, sellerID string, planID int) (*subscriptions.PlanView, error)
}

type signUpRequest struct {
	SellerID      string `json:"seller_id" validate:"required,entity_id"`
	SubscriberKey string `json:"subscriber_key" validate:"required,min=1,max=256"`
	ZipCode       string `json:"zip_code" validate:"max=16"`
	City          string `json:"city" validate:"max=128"`
	State         string `json:"state" validate:"max=8"`
	PlanID        int    `json:"plan_id" validate:"required,min=1"`
}

type changePlanRequest struct {
	PlanID int `json:"plan_id" validate:"required,min=1"`
}

// SellerSignUp registers a seller together with its subscription.
func SellerSignUp(svc sellerRegistrar, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload signUpRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Register(r.Context(), subscriptions.RegisterInput{
			SellerID:      payload.SellerID,
			SubscriberKey: payload.SubscriberKey,
			ZipCode:       payload.ZipCode,
			City:          payload.City,
			State:         payload.State,
			PlanID:        payload.PlanID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func PlansList(svc planCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		plans, err := svc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plans)
	}
}

func SubscriptionFetch(svc subscriptionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		sellerID, err := requireSeller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetSubscription(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// SubscriptionChange moves the seller to another plan.
func SubscriptionChange(svc subscriptionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		sellerID, err := requireSeller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload changePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.ChangePlan(r.Context(), sellerID, payload.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

func requireSeller(r *http.Request) (string, error) {
	sellerID := middleware.SellerIDFromContext(r.Context())
	if sellerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "seller context missing")
	}
	return sellerID, nil
}
