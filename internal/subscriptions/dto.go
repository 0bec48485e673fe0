package subscriptions

import (
	"strings"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// RegisterInput carries the sign-up payload.
type RegisterInput struct {
	SellerID      string
	SubscriberKey string
	ZipCode       string
	City          string
	State         string
	PlanID        int
}

func (in RegisterInput) normalize() (RegisterInput, error) {
	in.SellerID = strings.TrimSpace(in.SellerID)
	in.ZipCode = strings.TrimSpace(in.ZipCode)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)

	missing := []string{}
	if in.SellerID == "" {
		missing = append(missing, "seller_id")
	}
	if in.SubscriberKey == "" {
		missing = append(missing, "subscriber_key")
	}
	if len(missing) > 0 {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}
	return in, nil
}

// PlanLimits are the two ceilings a plan imposes.
type PlanLimits struct {
	MaxParallelSessions int `json:"max_parallel_sessions"`
	MaxStockPerProduct  int `json:"max_stock_per_product"`
}

// SubscriptionView describes a seller's current subscription.
type SubscriptionView struct {
	SellerID     string `json:"seller_id"`
	PlanID       int    `json:"plan_id"`
	PlanName     string `json:"plan_name"`
	SessionCount int    `json:"session_count"`
	PlanLimits
}

// PlanView is the public representation of a plan.
type PlanView struct {
	PlanID int    `json:"plan_id"`
	Name   string `json:"name"`
	PlanLimits
}

func limitsOf(plan *models.SubscriptionPlan) PlanLimits {
	return PlanLimits{
		MaxParallelSessions: plan.MaxParallelSessions,
		MaxStockPerProduct:  plan.MaxStockPerProduct,
	}
}

func planView(plan *models.SubscriptionPlan) PlanView {
	return PlanView{PlanID: plan.PlanID, Name: plan.Name, PlanLimits: limitsOf(plan)}
}
