package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/sellerhub-backend/pkg/auth"
	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	dbpkg "github.com/angelmondragon/sellerhub-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
)

const invalidCredentialMessage = "invalid seller id or subscriber key"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type keyVerifier interface {
	Verify(presented, stored string) (bool, error)
}

// sessionRegistry is satisfied by *session.Manager.
type sessionRegistry interface {
	Register(ctx context.Context, sellerID, sessionID string, ttl time.Duration) error
	Claim(ctx context.Context, sellerID, sessionID string) (bool, error)
}

// SignInResult is handed back to a seller that obtained a session slot.
type SignInResult struct {
	SellerID  string    `json:"seller_id"`
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service limits how many sessions a seller may hold at once.
type Service interface {
	SignIn(ctx context.Context, sellerID, credential string) (*SignInResult, error)
	SignOut(ctx context.Context, sellerID, sessionID string) error
}

// ServiceParams bundles the session manager dependencies. Registry is
// optional; without it session ids are not tracked beyond the token itself.
type ServiceParams struct {
	Tx        txRunner
	Repo      *Repository
	Verifier  keyVerifier
	Registry  sessionRegistry
	JWTConfig config.JWTConfig
	Logger    *logger.Logger
	Metrics   *metrics.OperationMetrics
	Now       func() time.Time
}

type service struct {
	tx       txRunner
	repo     *Repository
	verifier keyVerifier
	registry sessionRegistry
	jwtCfg   config.JWTConfig
	logg     *logger.Logger
	metrics  *metrics.OperationMetrics
	now      func() time.Time
}

// NewService constructs the session manager.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sessions repository required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("key verifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.JWTConfig.SessionTTL() <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repo,
		verifier: params.Verifier,
		registry: params.Registry,
		jwtCfg:   params.JWTConfig,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

func (s *service) SignIn(ctx context.Context, sellerID, credential string) (result *SignInResult, err error) {
	defer s.observe("sign_in", time.Now(), &err)

	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" || credential == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredential, invalidCredentialMessage)
	}

	sub, err := s.repo.FindSubscription(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidCredential, invalidCredentialMessage)
		}
		return nil, dbpkg.Classify(err, "load subscription")
	}
	ok, err := s.verifier.Verify(credential, sub.SubscriberKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify subscriber key")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredential, invalidCredentialMessage)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		acquired, err := s.repo.WithTx(tx).AcquireSlot(ctx, sellerID)
		if err != nil {
			return dbpkg.Classify(err, "acquire session slot")
		}
		if acquired == 0 {
			return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "all sessions are in use").
				WithDetails(map[string]any{"seller_id": sellerID})
		}

		sessionID := pkgAuth.NewSessionID()
		token, expiresAt, err := pkgAuth.MintSessionToken(s.jwtCfg, s.now(), pkgAuth.SessionPayload{
			SellerID:  sellerID,
			SessionID: sessionID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
		}
		result = &SignInResult{
			SellerID:  sellerID,
			Token:     token,
			SessionID: sessionID,
			ExpiresAt: expiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithSellerID(ctx, sellerID)
	// registered only after the slot commits; a failed registration hands
	// the slot back
	if s.registry != nil {
		if regErr := s.registry.Register(ctx, sellerID, result.SessionID, s.jwtCfg.SessionTTL()); regErr != nil {
			if relErr := s.releaseSlot(context.WithoutCancel(ctx), sellerID); relErr != nil {
				s.logg.Error(logCtx, "failed to release slot of unregistered session", relErr)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, regErr, "register session")
		}
	}

	s.logg.Info(logCtx, "seller signed in")
	return result, nil
}

// SignOut releases one of the seller's session slots. With a registry and a
// session id, ending the session gates the release: only the caller that
// removes the seller's live registration decrements the counter, so a token
// releases at most one slot.
func (s *service) SignOut(ctx context.Context, sellerID, sessionID string) (err error) {
	defer s.observe("sign_out", time.Now(), &err)

	sellerID = strings.TrimSpace(sellerID)
	sessionID = strings.TrimSpace(sessionID)
	if sellerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}

	tracked := s.registry != nil && sessionID != ""
	claimed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if tracked {
			ok, err := s.registry.Claim(ctx, sellerID, sessionID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "end session")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "no active session")
			}
			claimed = true
		}

		repo := s.repo.WithTx(tx)
		released, err := repo.ReleaseSlot(ctx, sellerID)
		if err != nil {
			return dbpkg.Classify(err, "release session slot")
		}
		if released > 0 {
			return nil
		}
		if _, err := repo.FindSubscription(ctx, sellerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return dbpkg.Classify(err, "load subscription")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no active session")
	})

	logCtx := s.logg.WithSellerID(ctx, sellerID)
	if err != nil {
		if claimed && retryable(err) {
			// the slot is still held, so the session must stay usable
			if regErr := s.registry.Register(context.WithoutCancel(ctx), sellerID, sessionID, s.jwtCfg.SessionTTL()); regErr != nil {
				s.logg.Error(logCtx, "failed to restore session after aborted sign out", regErr)
			}
		}
		return err
	}

	s.logg.Info(logCtx, "seller signed out")
	return nil
}

func (s *service) releaseSlot(ctx context.Context, sellerID string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.WithTx(tx).ReleaseSlot(ctx, sellerID)
		return err
	})
}

// retryable reports whether err is an infrastructure failure rather than a
// business rejection.
func retryable(err error) bool {
	typed := pkgerrors.As(err)
	return typed == nil || pkgerrors.MetadataFor(typed.Code()).Retryable
}

func (s *service) observe(op string, started time.Time, errp *error) {
	s.metrics.Observe(op, started, *errp)
}
