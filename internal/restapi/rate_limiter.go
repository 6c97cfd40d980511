package restapi

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// EndpointType names a remote source with its own request budget.
type EndpointType string

const (
	EndpointCatalog EndpointType = "catalog"
	EndpointRates   EndpointType = "rates"
)

// DefaultRequestsPerMinute applies when no budget is configured.
const DefaultRequestsPerMinute = 30

// SafeRateLimiter spaces requests per endpoint so repeated sessions stay
// under the remote quotas.
type SafeRateLimiter struct {
	limiters map[EndpointType]*rate.Limiter
	perMin   int
}

// NewSafeRateLimiter allows perMinute requests per endpoint with a burst of 1.
func NewSafeRateLimiter(perMinute int) *SafeRateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	every := rate.Every(time.Minute / time.Duration(perMinute))

	return &SafeRateLimiter{
		limiters: map[EndpointType]*rate.Limiter{
			EndpointCatalog: rate.NewLimiter(every, 1),
			EndpointRates:   rate.NewLimiter(every, 1),
		},
		perMin: perMinute,
	}
}

// Wait blocks until endpoint may issue a request or ctx ends.
func (s *SafeRateLimiter) Wait(ctx context.Context, endpoint EndpointType) error {
	limiter, ok := s.limiters[endpoint]
	if !ok {
		return fmt.Errorf("no limiter configured for %s", endpoint)
	}
	return limiter.Wait(ctx)
}

// Allow checks if a request is allowed without waiting.
func (s *SafeRateLimiter) Allow(endpoint EndpointType) bool {
	limiter, ok := s.limiters[endpoint]
	if !ok {
		return false
	}
	return limiter.Allow()
}

// GetLimitInfo returns human-readable rate limit info
func (s *SafeRateLimiter) GetLimitInfo(endpoint EndpointType) string {
	if _, ok := s.limiters[endpoint]; !ok {
		return "Unknown endpoint"
	}
	return fmt.Sprintf("%d req/min", s.perMin)
}
