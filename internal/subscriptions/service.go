package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

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

type keyHasher interface {
	Hash(key string) (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the subscription registry: it owns seller sign-up and the
// seller-to-plan binding.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*SubscriptionView, error)
	CurrentPlanLimits(ctx context.Context, sellerID string) (*PlanLimits, error)
	ChangePlan(ctx context.Context, sellerID string, planID int) (*PlanView, error)
	ListPlans(ctx context.Context) ([]PlanView, error)
	GetSubscription(ctx context.Context, sellerID string) (*SubscriptionView, error)
}

// ServiceParams wires the registry dependencies.
type ServiceParams struct {
	Tx      txRunner
	Repo    *Repository
	Hasher  keyHasher
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Metrics *metrics.OperationMetrics
}

type service struct {
	tx      txRunner
	repo    *Repository
	hasher  keyHasher
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.OperationMetrics
}

// NewService builds the subscription registry.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("key hasher required")
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
		hasher:  params.Hasher,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (view *SubscriptionView, err error) {
	defer s.observe("sign_up", time.Now(), &err)

	input, err = input.normalize()
	if err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.SubscriberKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash subscriber key")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.SellerExists(ctx, input.SellerID)
		if err != nil {
			return dbpkg.Classify(err, "check seller")
		}
		if exists {
			return errSellerExists(input.SellerID)
		}

		plan, err := repo.FindPlan(ctx, input.PlanID)
		if err != nil {
			return notFoundOr(err, "plan not found", "load plan")
		}

		seller := &models.Seller{
			SellerID:      input.SellerID,
			ZipCodePrefix: input.ZipCode,
			City:          input.City,
			State:         input.State,
		}
		sub := &models.SellerSubscription{
			SellerID:      input.SellerID,
			SubscriberKey: hashed,
			SessionCount:  0,
			PlanID:        plan.PlanID,
		}
		if err := repo.CreateSeller(ctx, seller, sub); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return errSellerExists(input.SellerID)
			}
			return dbpkg.Classify(err, "create seller")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerRegistered,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   input.SellerID,
			Actor:         &outbox.ActorRef{SellerID: input.SellerID},
			Data:          outbox.SellerRegisteredEvent{SellerID: input.SellerID, PlanID: plan.PlanID},
			Version:       1,
		}); err != nil {
			return dbpkg.Classify(err, "emit seller registered")
		}

		view = &SubscriptionView{
			SellerID:     input.SellerID,
			PlanID:       plan.PlanID,
			PlanName:     plan.Name,
			SessionCount: 0,
			PlanLimits:   limitsOf(plan),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithSellerID(ctx, input.SellerID), "seller registered")
	return view, nil
}

func (s *service) CurrentPlanLimits(ctx context.Context, sellerID string) (*PlanLimits, error) {
	plan, err := s.repo.FindPlanForSeller(ctx, sellerID)
	if err != nil {
		return nil, notFoundOr(err, "subscription not found", "load seller plan")
	}
	limits := limitsOf(plan)
	return &limits, nil
}

// ChangePlan switches the seller to planID. The move is refused when the
// current plan allows more parallel sessions than the new one; open sessions
// are never evicted and stock above the new ceiling is left as is.
func (s *service) ChangePlan(ctx context.Context, sellerID string, planID int) (view *PlanView, err error) {
	defer s.observe("subscribe", time.Now(), &err)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		plan, err := repo.FindPlan(ctx, planID)
		if err != nil {
			return notFoundOr(err, "plan not found", "load plan")
		}

		current, err := repo.FindSubscription(ctx, sellerID)
		if err != nil {
			return notFoundOr(err, "subscription not found", "load subscription")
		}

		changed, err := repo.SwitchPlan(ctx, sellerID, plan.PlanID, plan.MaxParallelSessions)
		if err != nil {
			return dbpkg.Classify(err, "switch plan")
		}
		if changed == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "session capacity conflict").
				WithDetails(map[string]any{"plan_id": plan.PlanID})
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionChanged,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sellerID,
			Actor:         &outbox.ActorRef{SellerID: sellerID},
			Data: outbox.SubscriptionChangedEvent{
				SellerID:       sellerID,
				PreviousPlanID: current.PlanID,
				PlanID:         plan.PlanID,
			},
			Version: 1,
		}); err != nil {
			return dbpkg.Classify(err, "emit plan changed")
		}

		v := planView(plan)
		view = &v
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"seller_id": sellerID, "plan_id": planID})
	s.logg.Info(logCtx, "subscription plan changed")
	return view, nil
}

func (s *service) ListPlans(ctx context.Context) ([]PlanView, error) {
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, dbpkg.Classify(err, "list plans")
	}
	views := make([]PlanView, 0, len(plans))
	for i := range plans {
		views = append(views, planView(&plans[i]))
	}
	return views, nil
}

func (s *service) GetSubscription(ctx context.Context, sellerID string) (*SubscriptionView, error) {
	sub, err := s.repo.FindSubscription(ctx, sellerID)
	if err != nil {
		return nil, notFoundOr(err, "subscription not found", "load subscription")
	}
	plan, err := s.repo.FindPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, notFoundOr(err, "plan not found", "load plan")
	}
	return &SubscriptionView{
		SellerID:     sub.SellerID,
		PlanID:       plan.PlanID,
		PlanName:     plan.Name,
		SessionCount: sub.SessionCount,
		PlanLimits:   limitsOf(plan),
	}, nil
}

func (s *service) observe(op string, started time.Time, errp *error) {
	s.metrics.Observe(op, started, *errp)
}

func errSellerExists(sellerID string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "seller already exists").
		WithDetails(map[string]any{"seller_id": sellerID})
}

func notFoundOr(err error, notFoundMsg, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return dbpkg.Classify(err, op)
}
