package echoapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
)

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// accessMiddleware authenticates the request when it carries a token, then applies the access policy.
// On public routes a failing token check falls back to an anonymous request.
// API requests are rejected with 401/403, page requests are redirected.
func (s *server) accessMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		path := ctx.Request().URL.Path
		lvl := s.Policy.Lookup(path)

		_, authErr := s.authenticateRequest(ctx)
		if authErr != nil && errors.Cause(authErr) != errMissingToken && errors.Cause(authErr) != errInvalidToken {
			if lvl != access.Public {
				return authErr
			}
			// public routes stay reachable, anonymously, when the token cannot be verified
			s.Logger.Error(fmt.Sprintf("authenticating public request %s: %v", path, authErr), authErr)
			authErr = errInvalidToken
		}

		switch access.Check(lvl, getContextIdentity(ctx)) {
		case access.Allow:
			return next(ctx)
		case access.Unauthenticated:
			if isAPIPath(path) {
				if authErr != nil {
					return authErr
				}
				return core.ErrUnauthenticated
			}
			return ctx.Redirect(http.StatusSeeOther, loginPath)
		default:
			if isAPIPath(path) {
				return core.ErrForbidden
			}
			return ctx.Redirect(http.StatusSeeOther, dashboardPath)
		}
	}
}

// newAuthRateLimiter limits the rate of login, registration and password reset requests per IP.
// It is a no-op when conf.Server.AuthRateLimit is not set.
func newAuthRateLimiter(conf *core.Config) echo.MiddlewareFunc {
	if conf.Server.AuthRateLimit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(conf.Server.AuthRateLimit),
		Burst:     conf.Server.AuthRateBurst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiter(store)
}

// newMetricsMiddleware counts requests and observes their latency by method, route and status.
func newMetricsMiddleware(reg prometheus.Registerer) echo.MiddlewareFunc {
	labels := []string{"method", "route", "status"}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academia",
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests.",
	}, labels)
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "academia",
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, labels)
	reg.MustRegister(requests, latency)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			lvs := []string{ctx.Request().Method, route, strconv.Itoa(ctx.Response().Status)}
			requests.WithLabelValues(lvs...).Inc()
			latency.WithLabelValues(lvs...).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
