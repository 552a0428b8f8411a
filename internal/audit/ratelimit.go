package audit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"sites-spectral/internal/observability/metrics"
)

// Limits configures the admin sliding window.
type Limits struct {
	Window   time.Duration
	Delete   int
	Mutation int
}

// DefaultLimits allows 10 deletes and 50 other mutations per admin per 5 minutes.
func DefaultLimits() Limits {
	return Limits{Window: 5 * time.Minute, Delete: 10, Mutation: 50}
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Exceeded          bool `json:"exceeded"`
	RetryAfterSeconds int  `json:"retry_after"`
	CurrentCount      int  `json:"current_count"`
	Limit             int  `json:"limit"`
}

// RateLimitError is returned to callers whose window is exhausted.
type RateLimitError struct {
	Decision
	Action string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d/%d, retry after %ds", e.Action, e.CurrentCount, e.Limit, e.RetryAfterSeconds)
}

// RateLimiter counts an admin's recent audit entries per action.
type RateLimiter struct {
	counter Counter
	limits  Limits
	log     *logrus.Logger
	now     func() time.Time
}

// NewRateLimiter constructs a limiter. Zero limits take their defaults.
func NewRateLimiter(counter Counter, limits Limits, log *logrus.Logger) *RateLimiter {
	defaults := DefaultLimits()
	if limits.Window <= 0 {
		limits.Window = defaults.Window
	}
	if limits.Delete <= 0 {
		limits.Delete = defaults.Delete
	}
	if limits.Mutation <= 0 {
		limits.Mutation = defaults.Mutation
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RateLimiter{counter: counter, limits: limits, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// LimitFor returns the per-window limit of a method; reads are unlimited.
func (l *RateLimiter) LimitFor(method string) int {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return 0
	case http.MethodDelete:
		return l.limits.Delete
	default:
		return l.limits.Mutation
	}
}

// Check evaluates the window for adminUser and method. Counting failures
// let the operation through.
func (l *RateLimiter) Check(ctx context.Context, adminUser, method string) Decision {
	limit := l.LimitFor(method)
	if limit == 0 {
		return Decision{}
	}
	action := ActionForMethod(method)
	now := l.now().UTC()
	count, oldest, err := l.counter.CountSince(ctx, adminUser, action, now.Add(-l.limits.Window))
	if err != nil {
		metrics.IncRateLimitFailOpen()
		l.log.WithFields(logrus.Fields{
			"admin_user": adminUser,
			"action":     action,
		}).WithError(err).Warn("rate limit check failed, allowing operation")
		return Decision{Limit: limit}
	}
	decision := Decision{CurrentCount: count, Limit: limit}
	if count < limit {
		return decision
	}
	decision.Exceeded = true
	retry := 1
	if !oldest.IsZero() {
		remaining := oldest.Add(l.limits.Window).Sub(now).Seconds()
		if r := int(math.Ceil(remaining)); r > retry {
			retry = r
		}
	}
	decision.RetryAfterSeconds = retry
	metrics.IncRateLimitRejected(action)
	return decision
}

// Enforce is Check returning a RateLimitError when the window is exhausted.
func (l *RateLimiter) Enforce(ctx context.Context, adminUser, method string) error {
	decision := l.Check(ctx, adminUser, method)
	if !decision.Exceeded {
		return nil
	}
	return &RateLimitError{Decision: decision, Action: ActionForMethod(method)}
}
