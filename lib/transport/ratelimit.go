package transport

import (
	"github.com/falconpay/falcon/lib/responses"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// CreateRateLimitMiddleware limits how often the decorated endpoints can be
// called. Used with a strict limit on order creation, which is the only
// endpoint that costs a quote and an address per call.
func CreateRateLimitMiddleware(requestsPerSecond int, burst int) echo.MiddlewareFunc {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				return c.JSON(responses.TooManyRequestsError.HttpStatusCode, &responses.TooManyRequestsError)
			}
			return next(c)
		}
	}
}
