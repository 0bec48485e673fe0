package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/sellerhub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

// Credential bodies are tiny; anything bigger is not worth parsing here.
const maxRateLimitBody = 64 << 10

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one credential surface by client address
// and by the seller named in the request body. A zero limit disables that
// counter; a zero window disables the policy.
type AuthRateLimitPolicy struct {
	Name        string
	Window      time.Duration
	IPLimit     int
	SellerLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, sellerLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{Name: name, Window: window, IPLimit: ipLimit, SellerLimit: sellerLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.SellerLimit > 0)
}

type rateCounter struct {
	kind  string
	scope string
	limit int
}

// counters lists the windows a request is charged against, address first.
func (p AuthRateLimitPolicy) counters(ip, sellerHash string) []rateCounter {
	var out []rateCounter
	if p.IPLimit > 0 && ip != "" {
		out = append(out, rateCounter{kind: "ip", scope: "auth:" + p.Name + ":ip:" + ip, limit: p.IPLimit})
	}
	if p.SellerLimit > 0 && sellerHash != "" {
		out = append(out, rateCounter{kind: "seller", scope: "auth:" + p.Name + ":seller:" + sellerHash, limit: p.SellerLimit})
	}
	return out
}

// AuthRateLimit rejects credential requests over the policy's limits with
// 429 and a Retry-After of one window.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var sellerHash string
			if policy.SellerLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
				if sellerID := extractSellerID(body); sellerID != "" {
					sellerHash = hashValue(sellerID)
				}
			}

			for _, counter := range policy.counters(clientIP(r), sellerHash) {
				allowed, count, err := limiter.FixedWindowAllow(ctx, counter.scope, int64(counter.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectRateLimited(ctx, logg, w, policy, counter, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, counter rateCounter, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.Name,
			"counter":        counter.kind,
			"attempts":       count,
			"limit":          counter.limit,
			"window_seconds": int(policy.Window.Seconds()),
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Round(time.Second).Seconds())))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(counter.limit))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP prefers the first valid forwarded address and falls back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractSellerID(payload []byte) string {
	var body struct {
		SellerID string `json:"seller_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.SellerID)
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
