package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sellerhub-backend/api/middleware"
	"github.com/angelmondragon/sellerhub-backend/api/responses"
	"github.com/angelmondragon/sellerhub-backend/api/validators"
	"github.com/angelmondragon/sellerhub-backend/internal/sessions"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

type sessionService interface {
	SignIn(ctx context.Context, sellerID, credential string) (*sessions.SignInResult, error)
	SignOut(ctx context.Context, sellerID, sessionID string) error
}

type signInRequest struct {
	SellerID      string `json:"seller_id" validate:"required,entity_id"`
	SubscriberKey string `json:"subscriber_key" validate:"required"`
}

// SessionSignIn exchanges seller credentials for a session token.
func SessionSignIn(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}

		var payload signInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SignIn(r.Context(), payload.SellerID, payload.SubscriberKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// SessionSignOut releases the session slot held by the presented token.
func SessionSignOut(svc sessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		sellerID, err := requireSeller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SignOut(r.Context(), sellerID, middleware.SessionIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "signed_out"})
	}
}
