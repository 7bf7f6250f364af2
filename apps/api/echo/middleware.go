package echoapi

import (
	"fmt"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/darasahq/darasa/core/user"
)

// roleMiddleware restricts a route to the given roles. Admins always pass.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return echo.NewHTTPError(
				errHttpForbidden.Code,
				fmt.Sprintf("requires one of roles: %s", strings.Join(append([]string{user.RoleAdmin}, roles...), ", ")),
			)
		}
	}
}

// rateLimiter hands out a token bucket per key (user ID or client IP).
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(limit float64, burst int) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*rate.Limiter),
		limit:    rate.Limit(limit),
		burst:    burst,
	}
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.visitors[key]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.visitors[key] = lim
	}
	return lim
}

// userRateLimitMiddleware throttles per authenticated identity, falling back
// to the client IP when no claims are present yet.
func userRateLimitMiddleware(rl *rateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			key := ctx.RealIP()
			if claims, err := getContextClaims(ctx); err == nil {
				key = claims.Subject
			}
			if !rl.get(key).Allow() {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// anonRateLimitMiddleware throttles unauthenticated endpoints by client IP.
func anonRateLimitMiddleware(rl *rateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.get(ctx.RealIP()).Allow() {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

func noopMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}
